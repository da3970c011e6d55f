package signals

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Allowlists bundles the generic-signal sets handed to the bias detector
// and recommendation engine.
type Allowlists struct {
	Headers  *Set
	MetaTags *Set
}

// Defaults returns the built-in allowlists.
func Defaults() Allowlists {
	return Allowlists{
		Headers:  GenericHTTPHeaders(),
		MetaTags: GenericMetaTags(),
	}
}

// allowlistFile is the YAML schema for an allowlist override file.
type allowlistFile struct {
	HTTPHeaders []string `yaml:"http_headers"`
	MetaTags    []string `yaml:"meta_tags"`
}

// LoadAllowlists reads an allowlist override file. Names listed in the file
// are merged with the built-in sets; the file can only widen the allowlists,
// never shrink them, so a partial override cannot accidentally turn generic
// transport headers into recommendation candidates.
func LoadAllowlists(path string) (Allowlists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Allowlists{}, fmt.Errorf("read allowlist file: %w", err)
	}

	var file allowlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Allowlists{}, fmt.Errorf("parse allowlist file %s: %w", path, err)
	}

	return Allowlists{
		Headers:  NewSet(append(file.HTTPHeaders, genericHTTPHeaders...)...),
		MetaTags: NewSet(append(file.MetaTags, genericMetaTags...)...),
	}, nil
}
