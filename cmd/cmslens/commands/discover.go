package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/cmd/cmslens/internal/format"
	"github.com/cmslens/cmslens/pkg/analysis/discovery"
	"github.com/cmslens/cmslens/pkg/storage"
	"github.com/cmslens/cmslens/pkg/stringutil"
)

// NewDiscoverCommand mines the stored corpus for unrecognized signal
// naming patterns, emerging vendors, and semantic anomalies.
func NewDiscoverCommand() *cobra.Command {
	var (
		outputMode string
		quiet      bool
		noColor    bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:     "discover",
		Short:   "Mine the corpus for new signal naming patterns",
		GroupID: "analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return err
			}
			f := format.New(os.Stdout, os.Stderr, format.ParseMode(outputMode), quiet, !noColor)

			cfg, err := currentConfig(cmd)
			if err != nil {
				return err
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			dataPoints, err := loadCorpus(cmd.Context(), store, storage.Query{})
			if err != nil {
				return err
			}

			opts := analysisOptions(cfg)
			if limit > 0 {
				opts.Discovery.MaxPatterns = limit
			}

			discoverer := discovery.NewDiscoverer(opts.Discovery, log.Logger)
			result := discoverer.Run(dataPoints)

			if format.ParseMode(outputMode) == format.ModeJSON {
				return f.PrintJSON(result)
			}
			return printDiscovery(f, result)
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "Output format: table or json")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress summary output")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the number of reported patterns")

	return cmd
}

func printDiscovery(f format.Formatter, result discovery.Result) error {
	if len(result.DiscoveredPatterns) == 0 {
		return f.PrintSummary("No naming patterns discovered")
	}

	if err := f.PrintSection("Discovered patterns"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(result.DiscoveredPatterns))
	for _, p := range result.DiscoveredPatterns {
		rows = append(rows, []string{
			p.Pattern,
			string(p.Type),
			fmt.Sprintf("%.2f", p.Frequency),
			fmt.Sprintf("%.2f", p.Confidence),
			p.PotentialVendor,
			stringutil.Ellipsis(strings.Join(p.Examples, ", "), 60),
		})
	}
	if err := f.PrintTable([]string{"Pattern", "Type", "Frequency", "Confidence", "Vendor", "Examples"}, rows); err != nil {
		return err
	}

	if len(result.EmergingVendors) > 0 {
		if err := f.PrintSection("Emerging vendors"); err != nil {
			return err
		}
		vendorRows := make([][]string, 0, len(result.EmergingVendors))
		for _, v := range result.EmergingVendors {
			vendorRows = append(vendorRows, []string{
				v.Vendor,
				fmt.Sprintf("%d", len(v.Patterns)),
				fmt.Sprintf("%.2f", v.Confidence),
			})
		}
		if err := f.PrintTable([]string{"Vendor", "Patterns", "Confidence"}, vendorRows); err != nil {
			return err
		}
	}

	if len(result.Evolutions) > 0 {
		if err := f.PrintSection("Signal evolution"); err != nil {
			return err
		}
		for _, e := range result.Evolutions {
			if err := f.PrintSummary(fmt.Sprintf("  [%s] %s", e.Kind, e.Detail)); err != nil {
				return err
			}
		}
	}

	if len(result.Anomalies) > 0 {
		if err := f.PrintSection("Semantic anomalies"); err != nil {
			return err
		}
		for _, a := range result.Anomalies {
			if err := f.PrintWarning(fmt.Sprintf("%s: %s", a.Signal, a.Detail)); err != nil {
				return err
			}
		}
	}

	for _, insight := range result.Insights {
		if err := f.PrintSummary(insight); err != nil {
			return err
		}
	}
	return nil
}
