package recommend

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/cmslens/cmslens/pkg/analysis/bias"
	"github.com/cmslens/cmslens/pkg/analysis/corpus"
	"github.com/cmslens/cmslens/pkg/analysis/discovery"
	"github.com/cmslens/cmslens/pkg/capture"
	"github.com/cmslens/cmslens/pkg/signals"
)

// Config carries the engine's decision thresholds.
type Config struct {
	// MinDetectionConfidence is the verdict floor used when the engine
	// has to label data points itself (no bias analysis supplied).
	MinDetectionConfidence float64 `koanf:"min_detection_confidence"`

	// FilterFrequency and FilterDiversity gate filter recommendations:
	// a signal this frequent with this many distinct values and no
	// discriminative power is noise.
	FilterFrequency float64 `koanf:"filter_frequency"`
	FilterDiversity int     `koanf:"filter_diversity"`

	// KeepCorrelation is the dominant single-CMS correlation at which an
	// unlisted signal earns a keep recommendation on raw correlation
	// alone.
	KeepCorrelation float64 `koanf:"keep_correlation"`

	// SpecificityThreshold marks a signal platform-specific. Such signals
	// bypass the keep cap and always rank first.
	SpecificityThreshold float64 `koanf:"specificity_threshold"`

	// MaxKeep caps non-platform-specific keep recommendations.
	MaxKeep int `koanf:"max_keep"`

	// OpportunityCorrelation and OpportunityFrequency gate new-rule
	// candidates on the detect surface.
	OpportunityCorrelation float64 `koanf:"opportunity_correlation"`
	OpportunityFrequency   float64 `koanf:"opportunity_frequency"`

	// RefineCorrelation is the dominant correlation below which a
	// frequent signal is flagged too generic.
	RefineCorrelation float64 `koanf:"refine_correlation"`

	// GroundTruthCorrelation gates meta-tag rule suggestions.
	GroundTruthCorrelation float64 `koanf:"ground_truth_correlation"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinDetectionConfidence: capture.DefaultMinConfidence,
		FilterFrequency:        0.3,
		FilterDiversity:        3,
		KeepCorrelation:        0.7,
		SpecificityThreshold:   0.7,
		MaxKeep:                10,
		OpportunityCorrelation: 0.8,
		OpportunityFrequency:   0.05,
		RefineCorrelation:      0.3,
		GroundTruthCorrelation: 0.8,
	}
}

// Input is one corpus snapshot plus the optional upstream analyses. Bias
// and Discovery may be nil: without a bias analysis the engine computes
// correlations directly from DataPoints, with identical results on
// well-formed input.
type Input struct {
	DataPoints []capture.DetectionDataPoint
	Aggregated corpus.Result
	Bias       *bias.Analysis
	Discovery  *discovery.Result
}

// Engine produces recommendations from analyzed corpus data.
type Engine struct {
	cfg        Config
	allowlists signals.Allowlists
	detector   *bias.Detector
	logger     zerolog.Logger
}

// NewEngine creates an Engine. The allowlists are injected rather than read
// from globals so tests can substitute alternates.
func NewEngine(cfg Config, allowlists signals.Allowlists, logger zerolog.Logger) *Engine {
	thresholds := bias.DefaultThresholds()
	thresholds.MinDetectionConfidence = cfg.MinDetectionConfidence
	return &Engine{
		cfg:        cfg,
		allowlists: allowlists,
		detector:   bias.NewDetector(thresholds, logger),
		logger:     logger.With().Str("component", "recommend").Logger(),
	}
}

// Recommend builds all three recommendation surfaces.
func (e *Engine) Recommend(in Input) Recommendations {
	correlations := e.resolveCorrelations(in)

	recs := Recommendations{
		Learn:       e.learnSurface(in, correlations),
		Detect:      e.detectSurface(in, correlations),
		GroundTruth: e.groundTruthSurface(in),
	}

	e.logger.Debug().
		Int("keep", len(recs.Learn.RecommendToKeep)).
		Int("filter", len(recs.Learn.RecommendToFilter)).
		Int("opportunities", len(recs.Detect.NewPatternOpportunities)).
		Int("refine", len(recs.Detect.PatternsToRefine)).
		Int("ground_truth", len(recs.GroundTruth.PotentialNewRules)).
		Msg("recommendations built")

	return recs
}

// resolveCorrelations returns the per-header bias-corrected correlations,
// either from the supplied analysis or recomputed from the raw data points.
func (e *Engine) resolveCorrelations(in Input) map[string]*bias.Correlation {
	if in.Bias != nil && len(in.Bias.HeaderCorrelations) > 0 {
		return in.Bias.HeaderCorrelations
	}

	dist := bias.BuildDistribution(in.DataPoints, e.cfg.MinDetectionConfidence)
	out := make(map[string]*bias.Correlation, len(in.Aggregated.Headers))
	for signal, sp := range in.Aggregated.Headers {
		if corr := e.detector.CorrelateSignal(sp, dist); corr != nil {
			out[signal] = corr
		}
	}
	return out
}

// signalName returns the allowlist lookup key for a pattern: for meta
// composites the key part before the colon, otherwise the pattern itself.
func signalName(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ':' {
			return pattern[:i]
		}
	}
	return pattern
}

// sortedPatterns returns the map's patterns sorted by name for stable
// iteration order.
func sortedPatterns(m map[string]*corpus.SignalPattern) []*corpus.SignalPattern {
	out := make([]*corpus.SignalPattern, 0, len(m))
	for _, sp := range m {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}
