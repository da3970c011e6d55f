package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds capture store configuration.
type Config struct {
	// Root is the directory the local store keeps its capture log and
	// manifest under. Defaults to the workspace captures directory.
	Root string `koanf:"root"`
}

// Validate checks the configuration and normalizes Root to an absolute
// path, expanding a leading tilde.
func (c *Config) Validate() error {
	if c.Root == "" {
		return NewInvalidInputError("root", "store root directory is required")
	}

	if strings.HasPrefix(c.Root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Root = filepath.Join(home, c.Root[2:])
	}

	absPath, err := filepath.Abs(c.Root)
	if err != nil {
		return NewInvalidInputError("root", fmt.Sprintf("invalid path: %v", err))
	}
	c.Root = absPath
	return nil
}
