package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/pkg/appctx"
	"github.com/cmslens/cmslens/pkg/config"
	"github.com/cmslens/cmslens/pkg/logging"
	"github.com/cmslens/cmslens/pkg/storage"
	"github.com/cmslens/cmslens/pkg/workspace"
)

const cliExecutable = "cmslens"

// NewCommand constructs the top-level cmslens CLI command, wiring global
// flags, configuration loading, and shared workspace preparation.
func NewCommand() *cobra.Command {
	var (
		configFile        string
		workspaceDir      string
		workspaceDisabled bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "CMSLens analyzes CMS detection corpora for bias, patterns, and rule recommendations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			cfg := manager.Get()
			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx := appctx.WithConfig(cmd.Context(), manager)

			if !workspaceDisabled {
				prepared, err := workspace.Prepare(workspaceDir)
				if err != nil {
					return fmt.Errorf("prepare workspace: %w", err)
				}
				ctx = workspace.WithContext(ctx, prepared)

				storeRoot := cfg.Storage.Root
				if storeRoot == "" {
					storeRoot = workspace.CapturesDir(prepared)
				}
				ctx = storage.WithConfig(ctx, &storage.Config{Root: storeRoot})

				log.Info().Str("workspace", prepared).Msg("workspace ready")
			} else {
				if cfg.Storage.Root != "" {
					ctx = storage.WithConfig(ctx, &storage.Config{Root: cfg.Storage.Root})
				}
				log.Info().Msg("workspace disabled for this run")
			}

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&workspaceDir, "workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().BoolVar(&workspaceDisabled, "no-workspace", false, "Disable workspace persistence for this run")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "analysis", Title: "Analysis Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(NewAnalyzeCommand())
	cmd.AddCommand(NewDiscoverCommand())
	cmd.AddCommand(NewRecommendCommand())
	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// reportPath resolves a report file location under the workspace, falling
// back to the working directory when the workspace is disabled.
func reportPath(cmd *cobra.Command, name string) string {
	if ws, ok := workspace.FromContext(cmd.Context()); ok {
		return filepath.Join(ws, "reports", name)
	}
	return name
}
