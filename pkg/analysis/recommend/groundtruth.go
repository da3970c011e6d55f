package recommend

import (
	"fmt"
	"strings"

	"github.com/cmslens/cmslens/pkg/analysis/bias"
)

// groundTruthSurface suggests meta-tag detection rules (e.g.
// "generator:Joomla!") where a meta pattern correlates strongly with one
// CMS and the raw data points corroborate the pairing.
func (e *Engine) groundTruthSurface(in Input) GroundTruthSurface {
	var surface GroundTruthSurface

	for _, sp := range sortedPatterns(in.Aggregated.MetaTags) {
		dominantCMS, dominantShare := sp.DominantCMS()
		if dominantCMS == "" || dominantShare <= e.cfg.GroundTruthCorrelation {
			continue
		}
		if sp.Occurrences < 2 {
			continue
		}
		if !e.corroborate(in, sp.Pattern) {
			continue
		}

		surface.PotentialNewRules = append(surface.PotentialNewRules, Recommendation{
			Pattern: sp.Pattern,
			Reason: fmt.Sprintf("Meta tag identifies %s (%.0f%% of %d occurrences)",
				dominantCMS, dominantShare*100, sp.Occurrences),
			Frequency:  sp.Frequency,
			Diversity:  sp.DistinctValues,
			Confidence: bias.ConfidenceHigh,
		})
	}
	return surface
}

// corroborate re-checks the meta pattern against the raw data points: the
// key:value pair must actually appear on at least one capture. Guards
// against suggesting rules from aggregation artifacts when the engine is
// handed mismatched inputs.
func (e *Engine) corroborate(in Input, pattern string) bool {
	if len(in.DataPoints) == 0 {
		// No raw data supplied; trust the aggregation.
		return true
	}
	key, value, found := strings.Cut(pattern, ":")
	if !found {
		return false
	}
	for i := range in.DataPoints {
		for _, tag := range in.DataPoints[i].MetaTags {
			if tag.Key() == key && strings.TrimSpace(tag.Content) == value {
				return true
			}
		}
	}
	return false
}
