// Package corpus aggregates per-site capture records into per-signal
// frequency records. Aggregation is a pure function of its input: no
// thresholding, no filtering, no side effects. Callers decide what is
// significant.
package corpus

import "sort"

// MaxExamples bounds the representative examples kept per signal.
const MaxExamples = 5

// SignalPattern is the frequency record for one observed signal (header
// name, meta key:value composite, or extracted script pattern). Built once
// per analysis run and never mutated afterwards.
type SignalPattern struct {
	// Pattern is the signal identifier within its namespace.
	Pattern string `json:"pattern"`

	// Frequency is |sites| / corpus size.
	Frequency float64 `json:"frequency"`

	// Occurrences is the number of distinct sites exhibiting the signal.
	Occurrences int `json:"occurrences"`

	// Sites lists the URLs exhibiting the signal, sorted.
	Sites []string `json:"sites"`

	// Examples holds up to MaxExamples representative observed values.
	Examples []string `json:"examples,omitempty"`

	// DistinctValues counts the distinct values observed for the signal
	// across all sites. High diversity marks noise (request IDs, dates)
	// rather than CMS evidence.
	DistinctValues int `json:"distinctValues"`

	// CMSCorrelation maps CMS name to the fraction of this signal's
	// occurrences attributable to sites labeled with that CMS.
	CMSCorrelation map[string]float64 `json:"cmsCorrelation"`
}

// DominantCMS returns the CMS with the highest correlation share and that
// share. Ties break alphabetically so results are stable across runs.
func (p *SignalPattern) DominantCMS() (string, float64) {
	best := ""
	bestShare := 0.0
	names := make([]string, 0, len(p.CMSCorrelation))
	for cms := range p.CMSCorrelation {
		names = append(names, cms)
	}
	sort.Strings(names)
	for _, cms := range names {
		if share := p.CMSCorrelation[cms]; share > bestShare {
			best = cms
			bestShare = share
		}
	}
	return best, bestShare
}

// accumulator collects per-signal state during a pass over the corpus.
type accumulator struct {
	sites     map[string]struct{}
	cmsCounts map[string]int
	examples  []string
	values    map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{
		sites:     make(map[string]struct{}),
		cmsCounts: make(map[string]int),
		values:    make(map[string]struct{}),
	}
}

// observe records one sighting of the signal on a site. Repeat sightings on
// the same site update the value set but not the occurrence count.
func (a *accumulator) observe(site, cms, example string) {
	if _, seen := a.sites[site]; !seen {
		a.sites[site] = struct{}{}
		a.cmsCounts[cms]++
	}
	if example != "" {
		if _, dup := a.values[example]; !dup {
			a.values[example] = struct{}{}
			if len(a.examples) < MaxExamples {
				a.examples = append(a.examples, example)
			}
		}
	}
}

// finalize converts accumulated state into an immutable SignalPattern.
func (a *accumulator) finalize(pattern string, corpusSize int) *SignalPattern {
	occurrences := len(a.sites)
	if occurrences == 0 {
		return nil
	}

	sites := make([]string, 0, occurrences)
	for s := range a.sites {
		sites = append(sites, s)
	}
	sort.Strings(sites)

	correlation := make(map[string]float64, len(a.cmsCounts))
	for cms, count := range a.cmsCounts {
		correlation[cms] = float64(count) / float64(occurrences)
	}

	frequency := 0.0
	if corpusSize > 0 {
		frequency = float64(occurrences) / float64(corpusSize)
	}

	return &SignalPattern{
		Pattern:        pattern,
		Frequency:      frequency,
		Occurrences:    occurrences,
		Sites:          sites,
		Examples:       a.examples,
		DistinctValues: len(a.values),
		CMSCorrelation: correlation,
	}
}
