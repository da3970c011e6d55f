package recommend

import (
	"fmt"

	"github.com/cmslens/cmslens/pkg/analysis/bias"
	"github.com/cmslens/cmslens/pkg/analysis/corpus"
)

// detectSurface proposes detector rule changes: signals worth new rules and
// existing rules that fire too broadly to discriminate anything.
func (e *Engine) detectSurface(in Input, correlations map[string]*bias.Correlation) DetectSurface {
	var surface DetectSurface

	scan := func(sp *corpus.SignalPattern) {
		dominantCMS, dominantShare := sp.DominantCMS()
		if dominantCMS == "" {
			return
		}

		if dominantShare >= e.cfg.OpportunityCorrelation && sp.Frequency >= e.cfg.OpportunityFrequency {
			confidence := bias.ConfidenceMedium
			if corr := correlations[sp.Pattern]; corr != nil {
				confidence = corr.RecommendationConfidence
			}
			surface.NewPatternOpportunities = append(surface.NewPatternOpportunities, Recommendation{
				Pattern:    sp.Pattern,
				Reason:     fmt.Sprintf("Correlates with %s (%.0f%%) - candidate detection rule", dominantCMS, dominantShare*100),
				Frequency:  sp.Frequency,
				Diversity:  sp.DistinctValues,
				Confidence: confidence,
			})
			return
		}

		if sp.Frequency >= e.cfg.FilterFrequency && dominantShare < e.cfg.RefineCorrelation {
			surface.PatternsToRefine = append(surface.PatternsToRefine, Recommendation{
				Pattern: sp.Pattern,
				Reason: fmt.Sprintf("Too generic: %.0f%% of sites, best CMS correlation only %.0f%%",
					sp.Frequency*100, dominantShare*100),
				Frequency:  sp.Frequency,
				Diversity:  sp.DistinctValues,
				Confidence: bias.ConfidenceLow,
			})
		}
	}

	for _, sp := range sortedPatterns(in.Aggregated.Headers) {
		scan(sp)
	}
	for _, sp := range sortedPatterns(in.Aggregated.MetaTags) {
		scan(sp)
	}
	for _, sp := range sortedPatterns(in.Aggregated.Scripts) {
		scan(sp)
	}

	surface.NewPatternOpportunities = append(surface.NewPatternOpportunities, e.discoveredOpportunities(in)...)
	return surface
}

// discoveredOpportunities folds PatternDiscovery output into the detect
// surface: mined naming patterns whose averaged CMS correlation is
// dominated by a single platform are rule candidates too.
func (e *Engine) discoveredOpportunities(in Input) []Recommendation {
	if in.Discovery == nil {
		return nil
	}

	var out []Recommendation
	for _, dp := range in.Discovery.DiscoveredPatterns {
		dominantCMS := ""
		dominantShare := 0.0
		for cms, share := range dp.CMSCorrelation {
			if share > dominantShare || (share == dominantShare && cms < dominantCMS) {
				dominantCMS = cms
				dominantShare = share
			}
		}
		if dominantCMS == "" || dominantShare < e.cfg.OpportunityCorrelation {
			continue
		}
		if dp.Frequency < e.cfg.OpportunityFrequency {
			continue
		}
		out = append(out, Recommendation{
			Pattern: dp.Pattern,
			Reason: fmt.Sprintf("Discovered %s pattern correlates with %s (%.0f%%)",
				dp.Type, dominantCMS, dominantShare*100),
			Frequency:  dp.Frequency,
			Diversity:  len(dp.Examples),
			Confidence: bias.ConfidenceMedium,
		})
	}
	return out
}
