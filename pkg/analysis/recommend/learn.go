package recommend

import (
	"fmt"
	"sort"

	"github.com/cmslens/cmslens/pkg/analysis/bias"
	"github.com/cmslens/cmslens/pkg/analysis/corpus"
	"github.com/cmslens/cmslens/pkg/signals"
)

// keepCandidate pairs a recommendation with the scores that rank it.
type keepCandidate struct {
	rec              Recommendation
	specificity      float64
	dominantShare    float64
	platformSpecific bool
}

// learnSurface builds the keep/filter recommendations for the detector's
// generic filter list.
//
// The one rule that never bends: a signal already on the generic allowlist
// is neither kept nor filtered, whatever its numbers look like. An
// allowlisted signal near 100% cross-platform frequency shows high raw
// per-CMS percentages purely because of corpus composition; specificity
// computed from per-CMS-bucket frequencies is the only score trusted here.
func (e *Engine) learnSurface(in Input, correlations map[string]*bias.Correlation) LearnSurface {
	surface := LearnSurface{
		CurrentlyFiltered: e.currentlyFiltered(),
	}

	dist := e.resolveDistribution(in)

	var keeps []keepCandidate
	process := func(sp *corpus.SignalPattern, allowlist *signals.Set) {
		name := signalName(sp.Pattern)
		if allowlist.Contains(name) {
			return
		}

		corr := correlations[sp.Pattern]
		if corr == nil {
			corr = e.detector.CorrelateSignal(sp, dist)
		}

		if cand, ok := e.keepCandidate(sp, corr); ok {
			keeps = append(keeps, cand)
			return
		}

		if rec, ok := e.filterCandidate(sp, corr); ok {
			surface.RecommendToFilter = append(surface.RecommendToFilter, rec)
		}
	}

	for _, sp := range sortedPatterns(in.Aggregated.Headers) {
		process(sp, e.allowlists.Headers)
	}
	for _, sp := range sortedPatterns(in.Aggregated.MetaTags) {
		process(sp, e.allowlists.MetaTags)
	}

	surface.RecommendToKeep = rankKeeps(keeps, e.cfg.MaxKeep)
	return surface
}

// currentlyFiltered lists the allowlisted signal names. Purely static: an
// empty corpus still reports the full allowlists.
func (e *Engine) currentlyFiltered() []string {
	names := append(e.allowlists.Headers.Names(), e.allowlists.MetaTags.Names()...)
	sort.Strings(names)
	return names
}

// resolveDistribution reuses the bias analysis distribution when present,
// otherwise counts labels from the raw data points.
func (e *Engine) resolveDistribution(in Input) bias.Distribution {
	if in.Bias != nil && len(in.Bias.CMSDistribution) > 0 {
		return in.Bias.CMSDistribution
	}
	return bias.BuildDistribution(in.DataPoints, e.cfg.MinDetectionConfidence)
}

// keepCandidate decides whether the signal earns a keep recommendation:
// either a dominant single-CMS correlation at or above the threshold, or
// bias-corrected specificity above the platform-specific threshold.
func (e *Engine) keepCandidate(sp *corpus.SignalPattern, corr *bias.Correlation) (keepCandidate, bool) {
	dominantCMS, dominantShare := sp.DominantCMS()

	specificity := 0.0
	confidence := bias.ConfidenceLow
	citedPct := dominantShare * 100
	if corr != nil {
		specificity = corr.PlatformSpecificity
		confidence = corr.RecommendationConfidence
		// Cite the per-CMS bucket frequency: "99% of Duda sites", not the
		// share of this signal's occurrences.
		if cms, pct := dominantBucket(corr); cms != "" {
			dominantCMS = cms
			citedPct = pct * 100
		}
	}

	platformSpecific := specificity > e.cfg.SpecificityThreshold
	if dominantShare < e.cfg.KeepCorrelation && !platformSpecific {
		return keepCandidate{}, false
	}
	if dominantCMS == "" {
		return keepCandidate{}, false
	}

	return keepCandidate{
		rec: Recommendation{
			Pattern:    sp.Pattern,
			Reason:     fmt.Sprintf("Strong correlation with %s (%.0f%%)", dominantCMS, citedPct),
			Frequency:  sp.Frequency,
			Diversity:  sp.DistinctValues,
			Confidence: confidence,
		},
		specificity:      specificity,
		dominantShare:    dominantShare,
		platformSpecific: platformSpecific,
	}, true
}

// dominantBucket returns the CMS with the highest per-bucket frequency and
// that frequency. Alphabetical tiebreak for stable output.
func dominantBucket(corr *bias.Correlation) (string, float64) {
	names := make([]string, 0, len(corr.PerCMS))
	for cms := range corr.PerCMS {
		names = append(names, cms)
	}
	sort.Strings(names)

	best := ""
	bestFreq := 0.0
	for _, cms := range names {
		if f := corr.PerCMS[cms].Frequency; f > bestFreq {
			best = cms
			bestFreq = f
		}
	}
	return best, bestFreq
}

// filterCandidate decides whether the signal looks like noise: frequent,
// many distinct values, no discriminative power.
func (e *Engine) filterCandidate(sp *corpus.SignalPattern, corr *bias.Correlation) (Recommendation, bool) {
	if sp.Frequency < e.cfg.FilterFrequency || sp.DistinctValues < e.cfg.FilterDiversity {
		return Recommendation{}, false
	}
	if corr != nil && corr.RecommendationConfidence != bias.ConfidenceLow {
		return Recommendation{}, false
	}

	return Recommendation{
		Pattern: sp.Pattern,
		Reason: fmt.Sprintf("High frequency (%.0f%%) with %d distinct values and no CMS correlation",
			sp.Frequency*100, sp.DistinctValues),
		Frequency:  sp.Frequency,
		Diversity:  sp.DistinctValues,
		Confidence: bias.ConfidenceLow,
	}, true
}

// rankKeeps orders keep candidates and applies the cap. Platform-specific
// candidates are never dropped and always precede the rest; the cap only
// limits how many non-specific candidates ride along.
func rankKeeps(candidates []keepCandidate, maxKeep int) []Recommendation {
	var specific, rest []keepCandidate
	for _, c := range candidates {
		if c.platformSpecific {
			specific = append(specific, c)
		} else {
			rest = append(rest, c)
		}
	}

	sort.SliceStable(specific, func(i, j int) bool {
		if specific[i].specificity != specific[j].specificity {
			return specific[i].specificity > specific[j].specificity
		}
		return specific[i].rec.Pattern < specific[j].rec.Pattern
	})
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].dominantShare != rest[j].dominantShare {
			return rest[i].dominantShare > rest[j].dominantShare
		}
		return rest[i].rec.Pattern < rest[j].rec.Pattern
	})

	budget := maxKeep - len(specific)
	if budget < 0 {
		budget = 0
	}
	if len(rest) > budget {
		rest = rest[:budget]
	}

	out := make([]Recommendation, 0, len(specific)+len(rest))
	for _, c := range specific {
		out = append(out, c.rec)
	}
	for _, c := range rest {
		out = append(out, c.rec)
	}
	return out
}
