package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/cmd/cmslens/internal/format"
	"github.com/cmslens/cmslens/pkg/analysis/recommend"
)

// surface names accepted by --surface.
const (
	surfaceAll         = "all"
	surfaceLearn       = "learn"
	surfaceDetect      = "detect"
	surfaceGroundTruth = "ground-truth"
)

// NewRecommendCommand runs the pipeline and reports the recommendation
// surfaces.
func NewRecommendCommand() *cobra.Command {
	var (
		outputMode string
		quiet      bool
		noColor    bool
		surface    string
		cmsFilter  string
		inputPath  string
	)

	cmd := &cobra.Command{
		Use:     "recommend",
		Short:   "Recommend detector rule and filter list changes",
		GroupID: "analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return err
			}
			switch surface {
			case surfaceAll, surfaceLearn, surfaceDetect, surfaceGroundTruth:
			default:
				return fmt.Errorf("invalid surface: %s (must be all, learn, detect, or ground-truth)", surface)
			}

			f := format.New(os.Stdout, os.Stderr, format.ParseMode(outputMode), quiet, !noColor)

			result, err := runPipeline(cmd, cmsFilter, inputPath)
			if err != nil {
				return err
			}
			recs := result.Recommendations

			if format.ParseMode(outputMode) == format.ModeJSON {
				switch surface {
				case surfaceLearn:
					return f.PrintJSON(recs.Learn)
				case surfaceDetect:
					return f.PrintJSON(recs.Detect)
				case surfaceGroundTruth:
					return f.PrintJSON(recs.GroundTruth)
				default:
					return f.PrintJSON(recs)
				}
			}
			return printRecommendations(f, recs, surface)
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "Output format: table or json")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress summary output")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&surface, "surface", surfaceAll, "Surface to report: all, learn, detect, or ground-truth")
	cmd.Flags().StringVar(&cmsFilter, "cms", "", "Restrict the corpus to one effective CMS label")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Analyze a JSON/JSONL capture file instead of the store")

	return cmd
}

func printRecommendations(f format.Formatter, recs recommend.Recommendations, surface string) error {
	if surface == surfaceAll || surface == surfaceLearn {
		if err := printLearnSurface(f, recs.Learn); err != nil {
			return err
		}
	}
	if surface == surfaceAll || surface == surfaceDetect {
		if err := printDetectSurface(f, recs.Detect); err != nil {
			return err
		}
	}
	if surface == surfaceAll || surface == surfaceGroundTruth {
		if err := printGroundTruthSurface(f, recs.GroundTruth); err != nil {
			return err
		}
	}
	return nil
}

func printLearnSurface(f format.Formatter, learn recommend.LearnSurface) error {
	if err := f.PrintSection("Learn: filter list"); err != nil {
		return err
	}
	if err := f.PrintSummary(fmt.Sprintf("Currently filtered: %s", strings.Join(learn.CurrentlyFiltered, ", "))); err != nil {
		return err
	}

	if len(learn.RecommendToFilter) > 0 {
		if err := f.PrintSection("Recommend to filter"); err != nil {
			return err
		}
		if err := f.PrintTable(recommendationHeaders(), recommendationRows(learn.RecommendToFilter)); err != nil {
			return err
		}
	}

	if len(learn.RecommendToKeep) > 0 {
		if err := f.PrintSection("Recommend to keep"); err != nil {
			return err
		}
		if err := f.PrintTable(recommendationHeaders(), recommendationRows(learn.RecommendToKeep)); err != nil {
			return err
		}
	}
	return nil
}

func printDetectSurface(f format.Formatter, detect recommend.DetectSurface) error {
	if len(detect.NewPatternOpportunities) > 0 {
		if err := f.PrintSection("Detect: new pattern opportunities"); err != nil {
			return err
		}
		if err := f.PrintTable(recommendationHeaders(), recommendationRows(detect.NewPatternOpportunities)); err != nil {
			return err
		}
	}
	if len(detect.PatternsToRefine) > 0 {
		if err := f.PrintSection("Detect: patterns to refine"); err != nil {
			return err
		}
		if err := f.PrintTable(recommendationHeaders(), recommendationRows(detect.PatternsToRefine)); err != nil {
			return err
		}
	}
	return nil
}

func printGroundTruthSurface(f format.Formatter, gt recommend.GroundTruthSurface) error {
	if len(gt.PotentialNewRules) == 0 {
		return nil
	}
	if err := f.PrintSection("Ground truth: potential new rules"); err != nil {
		return err
	}
	return f.PrintTable(recommendationHeaders(), recommendationRows(gt.PotentialNewRules))
}

func recommendationHeaders() []string {
	return []string{"Pattern", "Frequency", "Diversity", "Confidence", "Reason"}
}

func recommendationRows(recs []recommend.Recommendation) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Pattern,
			fmt.Sprintf("%.2f", r.Frequency),
			fmt.Sprintf("%d", r.Diversity),
			string(r.Confidence),
			r.Reason,
		})
	}
	return rows
}
