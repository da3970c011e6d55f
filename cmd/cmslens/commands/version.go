package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/cmd/cmslens/internal/format"
	"github.com/cmslens/cmslens/pkg/version"
)

// NewVersionCommand reports build version information.
func NewVersionCommand() *cobra.Command {
	var outputMode string

	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return err
			}
			if format.ParseMode(outputMode) == format.ModeJSON {
				f := format.New(os.Stdout, os.Stderr, format.ModeJSON, false, false)
				return f.PrintJSON(version.Get())
			}
			fmt.Println(version.Info())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "Output format: table or json")

	return cmd
}
