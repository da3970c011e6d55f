package bias

import (
	"github.com/rs/zerolog"

	"github.com/cmslens/cmslens/pkg/analysis/corpus"
	"github.com/cmslens/cmslens/pkg/capture"
)

// SpecificityBands maps a platform specificity score to a recommendation
// confidence band.
type SpecificityBands struct {
	High   float64 `koanf:"high"`
	Medium float64 `koanf:"medium"`
}

// Band classifies a specificity score.
func (b SpecificityBands) Band(specificity float64) Confidence {
	switch {
	case specificity > b.High:
		return ConfidenceHigh
	case specificity > b.Medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Thresholds carries the detector's tunables. Zero value is not usable;
// start from DefaultThresholds.
type Thresholds struct {
	// MinDetectionConfidence is the verdict floor for effective CMS labels.
	MinDetectionConfidence float64 `koanf:"min_detection_confidence"`

	// ConcentrationWarnShare flags platforms holding more than this share
	// of the corpus.
	ConcentrationWarnShare float64 `koanf:"concentration_warn_share"`

	// Bands maps specificity to confidence.
	Bands SpecificityBands `koanf:"bands"`
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDetectionConfidence: capture.DefaultMinConfidence,
		ConcentrationWarnShare: 0.6,
		Bands:                  SpecificityBands{High: 0.7, Medium: 0.4},
	}
}

// Analysis is the output of one detector run: corpus composition, skew
// score, and per-signal bias-corrected correlations. Recomputed from the
// full corpus each run and read-only afterwards.
type Analysis struct {
	CMSDistribution    Distribution            `json:"cmsDistribution"`
	TotalSites         int                     `json:"totalSites"`
	ConcentrationScore float64                 `json:"concentrationScore"`
	BiasWarnings       []string                `json:"biasWarnings,omitempty"`
	HeaderCorrelations map[string]*Correlation `json:"headerCorrelations"`
}

// Detector computes bias-corrected signal statistics for a corpus snapshot.
type Detector struct {
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewDetector creates a Detector with the given thresholds.
func NewDetector(thresholds Thresholds, logger zerolog.Logger) *Detector {
	return &Detector{
		thresholds: thresholds,
		logger:     logger.With().Str("component", "bias").Logger(),
	}
}

// Analyze builds the full bias analysis for the corpus: label distribution,
// concentration score and warnings, and one Correlation per header signal in
// the aggregated result. Signals present on zero sites are skipped.
func (d *Detector) Analyze(dataPoints []capture.DetectionDataPoint, aggregated corpus.Result) *Analysis {
	dist := BuildDistribution(dataPoints, d.thresholds.MinDetectionConfidence)

	analysis := &Analysis{
		CMSDistribution:    dist,
		TotalSites:         dist.TotalSites(),
		ConcentrationScore: Concentration(dist),
		BiasWarnings:       ConcentrationWarnings(dist, d.thresholds.ConcentrationWarnShare),
		HeaderCorrelations: make(map[string]*Correlation, len(aggregated.Headers)),
	}

	for signal, sp := range aggregated.Headers {
		if corr := correlate(sp, dist, d.thresholds.Bands); corr != nil {
			analysis.HeaderCorrelations[signal] = corr
		}
	}

	d.logger.Debug().
		Int("sites", analysis.TotalSites).
		Int("platforms", len(dist)).
		Int("signals", len(analysis.HeaderCorrelations)).
		Float64("concentration", analysis.ConcentrationScore).
		Msg("bias analysis complete")

	for _, warning := range analysis.BiasWarnings {
		d.logger.Warn().Msg(warning)
	}

	return analysis
}

// CorrelateSignal exposes the per-signal computation for callers that
// already hold a distribution (the recommendation engine's raw-data-point
// fallback path).
func (d *Detector) CorrelateSignal(sp *corpus.SignalPattern, dist Distribution) *Correlation {
	return correlate(sp, dist, d.thresholds.Bands)
}
