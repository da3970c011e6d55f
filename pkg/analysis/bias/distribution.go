// Package bias turns raw per-signal CMS breakdowns into bias-corrected
// discriminative scores. The corpus a signal is measured against is almost
// never balanced across platforms; everything in this package exists to keep
// that imbalance from being mistaken for signal.
package bias

import (
	"fmt"
	"sort"

	"github.com/cmslens/cmslens/pkg/capture"
)

// CMSStats describes one platform's share of the corpus.
type CMSStats struct {
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Sites      []string `json:"sites"`
}

// Distribution maps CMS name to its corpus share. Percentages sum to 100
// (within rounding) across all labels including Unknown.
type Distribution map[string]CMSStats

// TotalSites returns the number of sites counted into the distribution.
func (d Distribution) TotalSites() int {
	total := 0
	for _, stats := range d {
		total += stats.Count
	}
	return total
}

// Platforms returns the CMS names in sorted order.
func (d Distribution) Platforms() []string {
	names := make([]string, 0, len(d))
	for cms := range d {
		names = append(names, cms)
	}
	sort.Strings(names)
	return names
}

// BuildDistribution counts effective CMS labels across the corpus. Captures
// without a URL carry no site identity and are excluded, matching the
// aggregator's notion of corpus size.
func BuildDistribution(dataPoints []capture.DetectionDataPoint, minConfidence float64) Distribution {
	counts := make(map[string]int)
	sites := make(map[string][]string)
	total := 0
	for i := range dataPoints {
		dp := &dataPoints[i]
		if dp.URL == "" {
			continue
		}
		total++
		cms := dp.EffectiveCMS(minConfidence)
		counts[cms]++
		sites[cms] = append(sites[cms], dp.URL)
	}

	dist := make(Distribution, len(counts))
	for cms, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		dist[cms] = CMSStats{Count: count, Percentage: pct, Sites: sites[cms]}
	}
	return dist
}

// Concentration computes a Herfindahl-style score over the distribution's
// shares: 0 approaches an even split across many platforms, 1 is a
// monoculture.
func Concentration(d Distribution) float64 {
	total := d.TotalSites()
	if total == 0 {
		return 0
	}
	score := 0.0
	for _, stats := range d {
		share := float64(stats.Count) / float64(total)
		score += share * share
	}
	return score
}

// ConcentrationWarnings reports the platforms whose corpus share exceeds
// shareThreshold. Correlations computed against a corpus this skewed are
// flagged because the dominant platform's artifacts masquerade as universal.
func ConcentrationWarnings(d Distribution, shareThreshold float64) []string {
	var warnings []string
	total := d.TotalSites()
	if total == 0 {
		return nil
	}
	for _, cms := range d.Platforms() {
		stats := d[cms]
		share := float64(stats.Count) / float64(total)
		if share > shareThreshold {
			warnings = append(warnings, fmt.Sprintf(
				"%s accounts for %.0f%% of the corpus; correlations may reflect corpus composition rather than platform behavior",
				cms, share*100))
		}
	}
	return warnings
}
