package bias

import (
	"math"

	"github.com/cmslens/cmslens/pkg/analysis/corpus"
)

// Confidence bands a correlation's reliability for recommendation purposes.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// PerCMSFrequency is one CMS bucket's view of a signal: how often the
// signal appears within sites of that CMS, not within sites exhibiting the
// signal. This inversion is the bias correction.
type PerCMSFrequency struct {
	Frequency        float64 `json:"frequency"`
	Occurrences      int     `json:"occurrences"`
	TotalSitesForCMS int     `json:"totalSitesForCMS"`
}

// Correlation holds the bias-corrected statistics for one signal.
type Correlation struct {
	Signal                   string                     `json:"signal"`
	OverallFrequency         float64                    `json:"overallFrequency"`
	OverallOccurrences       int                        `json:"overallOccurrences"`
	PerCMS                   map[string]PerCMSFrequency `json:"perCMSFrequency"`
	PlatformSpecificity      float64                    `json:"platformSpecificity"`
	BiasAdjustedFrequency    float64                    `json:"biasAdjustedFrequency"`
	RecommendationConfidence Confidence                 `json:"recommendationConfidence"`
}

// correlate computes the Correlation for one signal against the corpus
// distribution. Returns nil for signals present on zero sites.
func correlate(sp *corpus.SignalPattern, dist Distribution, bands SpecificityBands) *Correlation {
	if sp == nil || sp.Occurrences == 0 {
		return nil
	}

	perCMS := make(map[string]PerCMSFrequency, len(dist))
	frequencies := make([]float64, 0, len(dist))
	for _, cms := range dist.Platforms() {
		bucket := dist[cms]
		if bucket.Count == 0 {
			// Empty buckets cannot define a frequency; excluding them is
			// the division-by-zero guard.
			continue
		}
		share := sp.CMSCorrelation[cms]
		occurrences := int(math.Round(share * float64(sp.Occurrences)))
		freq := float64(occurrences) / float64(bucket.Count)
		perCMS[cms] = PerCMSFrequency{
			Frequency:        freq,
			Occurrences:      occurrences,
			TotalSitesForCMS: bucket.Count,
		}
		frequencies = append(frequencies, freq)
	}

	specificity := coefficientOfVariation(frequencies)

	return &Correlation{
		Signal:                   sp.Pattern,
		OverallFrequency:         sp.Frequency,
		OverallOccurrences:       sp.Occurrences,
		PerCMS:                   perCMS,
		PlatformSpecificity:      specificity,
		BiasAdjustedFrequency:    mean(frequencies),
		RecommendationConfidence: bands.Band(specificity),
	}
}

// coefficientOfVariation returns min(1, stddev/mean) over the bucket
// frequencies. Buckets where the signal never appears contribute a zero
// frequency, which is exactly what drives the score up for vendor-exclusive
// signals. A zero mean resolves to zero specificity.
func coefficientOfVariation(frequencies []float64) float64 {
	m := mean(frequencies)
	if m == 0 {
		return 0
	}
	cv := stddev(frequencies, m) / m
	if cv > 1 {
		return 1
	}
	return cv
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation around the supplied mean.
func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
