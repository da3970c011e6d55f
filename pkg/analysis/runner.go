// Package analysis orchestrates one full pipeline run over a corpus
// snapshot: aggregation, bias analysis, pattern discovery, and
// recommendations. The components stay pure; the runner owns run identity
// and progress logging.
package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cmslens/cmslens/pkg/analysis/bias"
	"github.com/cmslens/cmslens/pkg/analysis/corpus"
	"github.com/cmslens/cmslens/pkg/analysis/discovery"
	"github.com/cmslens/cmslens/pkg/analysis/recommend"
	"github.com/cmslens/cmslens/pkg/capture"
	"github.com/cmslens/cmslens/pkg/signals"
)

// Options carries the per-component configuration for a run.
type Options struct {
	Bias       bias.Thresholds
	Discovery  discovery.Config
	Recommend  recommend.Config
	Allowlists signals.Allowlists
}

// DefaultOptions returns production configuration with built-in allowlists.
func DefaultOptions() Options {
	return Options{
		Bias:       bias.DefaultThresholds(),
		Discovery:  discovery.DefaultConfig(),
		Recommend:  recommend.DefaultConfig(),
		Allowlists: signals.Defaults(),
	}
}

// Result bundles everything one run produced.
type Result struct {
	RunID           string                    `json:"runId"`
	StartedAt       time.Time                 `json:"startedAt"`
	Duration        time.Duration             `json:"duration"`
	CorpusSize      int                       `json:"corpusSize"`
	Aggregated      corpus.Result             `json:"-"`
	Bias            *bias.Analysis            `json:"bias"`
	Discovery       discovery.Result          `json:"discovery"`
	Recommendations recommend.Recommendations `json:"recommendations"`
}

// Runner executes analysis pipelines. Safe for concurrent use: each Run
// reads only its input and writes only its own freshly allocated result.
type Runner struct {
	opts   Options
	logger zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts Options, logger zerolog.Logger) *Runner {
	return &Runner{opts: opts, logger: logger.With().Str("component", "analysis").Logger()}
}

// Run executes the full pipeline over the corpus snapshot.
func (r *Runner) Run(dataPoints []capture.DetectionDataPoint) *Result {
	started := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("data_points", len(dataPoints)).Msg("analysis run started")

	aggregator := corpus.NewAggregator(r.opts.Bias.MinDetectionConfidence)
	aggregated := aggregator.Aggregate(dataPoints)

	detector := bias.NewDetector(r.opts.Bias, logger)
	biasAnalysis := detector.Analyze(dataPoints, aggregated)

	discoverer := discovery.NewDiscoverer(r.opts.Discovery, logger)
	discovered := discoverer.Run(dataPoints)

	engine := recommend.NewEngine(r.opts.Recommend, r.opts.Allowlists, logger)
	recommendations := engine.Recommend(recommend.Input{
		DataPoints: dataPoints,
		Aggregated: aggregated,
		Bias:       biasAnalysis,
		Discovery:  &discovered,
	})

	result := &Result{
		RunID:           runID,
		StartedAt:       started,
		Duration:        time.Since(started),
		CorpusSize:      aggregated.CorpusSize,
		Aggregated:      aggregated,
		Bias:            biasAnalysis,
		Discovery:       discovered,
		Recommendations: recommendations,
	}

	logger.Info().
		Int("corpus_size", result.CorpusSize).
		Int("header_signals", len(aggregated.Headers)).
		Int("discovered_patterns", len(discovered.DiscoveredPatterns)).
		Dur("duration", result.Duration).
		Msg("analysis run complete")

	return result
}
