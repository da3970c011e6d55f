package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/cmd/cmslens/internal/format"
	"github.com/cmslens/cmslens/pkg/analysis"
	"github.com/cmslens/cmslens/pkg/analysis/bias"
	"github.com/cmslens/cmslens/pkg/capture"
	"github.com/cmslens/cmslens/pkg/signals"
	"github.com/cmslens/cmslens/pkg/storage"
)

// topCorrelations bounds the correlation table in human-readable output.
const topCorrelations = 15

// NewAnalyzeCommand runs the full analysis pipeline over the stored corpus
// and reports distribution, bias, discovery, and recommendations.
func NewAnalyzeCommand() *cobra.Command {
	var (
		outputMode string
		quiet      bool
		noColor    bool
		cmsFilter  string
		inputPath  string
		saveReport bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:     "analyze",
		Short:   "Run the full corpus analysis pipeline",
		GroupID: "analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return err
			}
			f := format.New(os.Stdout, os.Stderr, format.ParseMode(outputMode), quiet, !noColor)

			result, err := runPipeline(cmd, cmsFilter, inputPath)
			if err != nil {
				return err
			}

			if saveReport {
				path := reportPath(cmd, fmt.Sprintf("analysis-%s.json", time.Now().UTC().Format("20060102-150405")))
				if err := writeReport(path, result); err != nil {
					return err
				}
				log.Info().Str("path", path).Msg("analysis report written")
			}

			if format.ParseMode(outputMode) == format.ModeJSON {
				if err := f.PrintJSON(result); err != nil {
					return err
				}
			} else if err := printAnalysis(f, result); err != nil {
				return err
			}

			if watch {
				return watchAndRerun(cmd, f, outputMode, cmsFilter, inputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "Output format: table or json")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress summary output")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&cmsFilter, "cms", "", "Restrict the corpus to one effective CMS label")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Analyze a JSON/JSONL capture file instead of the store")
	cmd.Flags().BoolVar(&saveReport, "save-report", false, "Write the full JSON report to the workspace reports directory")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run the analysis when the allowlist override file changes")

	return cmd
}

// watchAndRerun blocks watching the configured allowlist file, re-running
// the pipeline after each change until the context is cancelled.
func watchAndRerun(cmd *cobra.Command, f format.Formatter, outputMode, cmsFilter, inputPath string) error {
	cfg, err := currentConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Allowlist.File == "" {
		return fmt.Errorf("--watch requires allowlist.file to be configured")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := signals.NewAllowlistWatcher(cfg.Allowlist.File, func(signals.Allowlists) {
		result, err := runPipeline(cmd, cmsFilter, inputPath)
		if err != nil {
			_ = f.PrintError(err)
			return
		}
		if format.ParseMode(outputMode) == format.ModeJSON {
			_ = f.PrintJSON(result)
		} else {
			_ = printAnalysis(f, result)
		}
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("create allowlist watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start allowlist watcher: %w", err)
	}

	log.Info().Str("path", cfg.Allowlist.File).Msg("watching allowlist file; press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

// runPipeline loads the corpus, from a capture file when inputPath is set
// and the store otherwise, and executes one full analysis run.
func runPipeline(cmd *cobra.Command, cmsFilter, inputPath string) (*analysis.Result, error) {
	cfg, err := currentConfig(cmd)
	if err != nil {
		return nil, err
	}

	var dataPoints []capture.DetectionDataPoint
	if inputPath != "" {
		loaded, skipped, err := readCaptures(inputPath)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			log.Warn().Int("skipped", skipped).Str("path", inputPath).Msg("dropped records without a URL")
		}
		dataPoints = filterByCMS(loaded, cmsFilter, cfg.Analysis.MinDetectionConfidence)
	} else {
		store, err := openStore(cmd)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		dataPoints, err = loadCorpus(cmd.Context(), store, storage.Query{
			CMS:           cmsFilter,
			MinConfidence: cfg.Analysis.MinDetectionConfidence,
		})
		if err != nil {
			return nil, err
		}
	}

	opts := analysisOptions(cfg)
	opts.Allowlists, err = resolveAllowlists(cfg)
	if err != nil {
		return nil, err
	}

	runner := analysis.NewRunner(opts, log.Logger)
	return runner.Run(dataPoints), nil
}

func writeReport(path string, result *analysis.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func printAnalysis(f format.Formatter, result *analysis.Result) error {
	if err := f.PrintSummary(fmt.Sprintf("Analyzed %d sites in %s (run %s)",
		result.CorpusSize, result.Duration.Round(time.Millisecond), result.RunID)); err != nil {
		return err
	}

	if result.Bias != nil {
		if err := printDistribution(f, result.Bias); err != nil {
			return err
		}
		if err := printCorrelations(f, result.Bias); err != nil {
			return err
		}
	}

	if len(result.Discovery.Insights) > 0 {
		if err := f.PrintSection("Insights"); err != nil {
			return err
		}
		for _, insight := range result.Discovery.Insights {
			if err := f.PrintSummary("  " + insight); err != nil {
				return err
			}
		}
	}

	recs := result.Recommendations
	return f.PrintSummary(fmt.Sprintf("\nRecommendations: %d keep, %d filter, %d opportunities (run `cmslens recommend` for details)",
		len(recs.Learn.RecommendToKeep), len(recs.Learn.RecommendToFilter), len(recs.Detect.NewPatternOpportunities)))
}

func printDistribution(f format.Formatter, analysis *bias.Analysis) error {
	if err := f.PrintSection("Corpus composition"); err != nil {
		return err
	}

	rows := make([][]string, 0, len(analysis.CMSDistribution))
	for _, cms := range analysis.CMSDistribution.Platforms() {
		stats := analysis.CMSDistribution[cms]
		rows = append(rows, []string{cms, fmt.Sprintf("%d", stats.Count), fmt.Sprintf("%.1f%%", stats.Percentage)})
	}
	if err := f.PrintTable([]string{"CMS", "Sites", "Share"}, rows); err != nil {
		return err
	}

	if err := f.PrintSummary(fmt.Sprintf("Concentration score: %.3f", analysis.ConcentrationScore)); err != nil {
		return err
	}
	for _, warning := range analysis.BiasWarnings {
		if err := f.PrintWarning(warning); err != nil {
			return err
		}
	}
	return nil
}

func printCorrelations(f format.Formatter, analysis *bias.Analysis) error {
	if len(analysis.HeaderCorrelations) == 0 {
		return nil
	}

	if err := f.PrintSection("Header correlations"); err != nil {
		return err
	}

	correlations := make([]*bias.Correlation, 0, len(analysis.HeaderCorrelations))
	for _, c := range analysis.HeaderCorrelations {
		correlations = append(correlations, c)
	}
	sort.Slice(correlations, func(i, j int) bool {
		if correlations[i].PlatformSpecificity != correlations[j].PlatformSpecificity {
			return correlations[i].PlatformSpecificity > correlations[j].PlatformSpecificity
		}
		return correlations[i].Signal < correlations[j].Signal
	})
	if len(correlations) > topCorrelations {
		correlations = correlations[:topCorrelations]
	}

	rows := make([][]string, 0, len(correlations))
	for _, c := range correlations {
		rows = append(rows, []string{
			c.Signal,
			fmt.Sprintf("%.2f", c.OverallFrequency),
			fmt.Sprintf("%.2f", c.BiasAdjustedFrequency),
			fmt.Sprintf("%.2f", c.PlatformSpecificity),
			string(c.RecommendationConfidence),
		})
	}
	return f.PrintTable([]string{"Header", "Frequency", "Adjusted", "Specificity", "Confidence"}, rows)
}
