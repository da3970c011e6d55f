package discovery

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cmslens/cmslens/pkg/capture"
)

// Config carries the discovery tunables.
type Config struct {
	// MinDetectionConfidence is the verdict floor for effective CMS labels.
	MinDetectionConfidence float64 `koanf:"min_detection_confidence"`

	// LargeCorpusSize is the site count at which the stricter frequency
	// floor applies.
	LargeCorpusSize int `koanf:"large_corpus_size"`

	// MinFrequencyLarge / MinFrequencySmall are the pattern frequency
	// floors for large and small corpora. Small corpora need the looser
	// floor to surface anything at all.
	MinFrequencyLarge float64 `koanf:"min_frequency_large"`
	MinFrequencySmall float64 `koanf:"min_frequency_small"`

	// MaxPatterns caps the discovered-pattern output, by frequency.
	MaxPatterns int `koanf:"max_patterns"`
}

// DefaultConfig returns the production discovery configuration.
func DefaultConfig() Config {
	return Config{
		MinDetectionConfidence: capture.DefaultMinConfidence,
		LargeCorpusSize:        100,
		MinFrequencyLarge:      0.05,
		MinFrequencySmall:      0.10,
		MaxPatterns:            50,
	}
}

// minFrequency resolves the frequency floor for a corpus of the given size.
func (c Config) minFrequency(corpusSize int) float64 {
	if corpusSize >= c.LargeCorpusSize {
		return c.MinFrequencyLarge
	}
	return c.MinFrequencySmall
}

// minExamples is the smallest member-name count a pattern may report.
const minExamples = 2

// minEvolutionPoints is the smallest timestamped corpus the temporal
// analysis accepts.
const minEvolutionPoints = 10

// Discoverer runs unsupervised pattern mining over a corpus snapshot.
type Discoverer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(cfg Config, logger zerolog.Logger) *Discoverer {
	return &Discoverer{
		cfg:    cfg,
		logger: logger.With().Str("component", "discovery").Logger(),
	}
}

// nameInfo is the per-signal-name evidence the miners group over.
type nameInfo struct {
	sites     map[string]struct{}
	cmsCounts map[string]int
	values    []string
}

func (n *nameInfo) correlation() map[string]float64 {
	total := len(n.sites)
	if total == 0 {
		return nil
	}
	out := make(map[string]float64, len(n.cmsCounts))
	for cms, count := range n.cmsCounts {
		out[cms] = float64(count) / float64(total)
	}
	return out
}

// Run executes the full discovery pipeline. The pipeline is deterministic:
// the same corpus yields the same patterns with the same frequencies.
func (d *Discoverer) Run(dataPoints []capture.DetectionDataPoint) Result {
	names, corpusSize := collectNames(dataPoints, d.cfg.MinDetectionConfidence)

	mined := mineAll(names, corpusSize)
	patterns := d.filterAndRank(mined, corpusSize)
	inferVendors(patterns)

	result := Result{
		DiscoveredPatterns: patterns,
		EmergingVendors:    emergingVendors(patterns),
		Evolutions:         detectEvolution(dataPoints),
		Anomalies:          detectAnomalies(names, corpusSize, d.cfg.minFrequency(corpusSize)),
	}
	result.Insights = buildInsights(result)

	d.logger.Debug().
		Int("names", len(names)).
		Int("patterns", len(result.DiscoveredPatterns)).
		Int("emerging_vendors", len(result.EmergingVendors)).
		Int("evolutions", len(result.Evolutions)).
		Int("anomalies", len(result.Anomalies)).
		Msg("discovery run complete")

	return result
}

// collectNames builds the raw signal-name space: every header name observed
// anywhere in the corpus, with its site set, CMS label counts, and observed
// values. Names are lowercased; empty and whitespace-only names are kept
// out since they group nothing.
func collectNames(dataPoints []capture.DetectionDataPoint, minConfidence float64) (map[string]*nameInfo, int) {
	names := make(map[string]*nameInfo)
	corpusSize := 0
	for i := range dataPoints {
		dp := &dataPoints[i]
		if strings.TrimSpace(dp.URL) == "" {
			continue
		}
		corpusSize++
		cms := dp.EffectiveCMS(minConfidence)
		for name, value := range dp.AllHeaders() {
			info := names[name]
			if info == nil {
				info = &nameInfo{
					sites:     make(map[string]struct{}),
					cmsCounts: make(map[string]int),
				}
				names[name] = info
			}
			if _, seen := info.sites[dp.URL]; !seen {
				info.sites[dp.URL] = struct{}{}
				info.cmsCounts[cms]++
				info.values = append(info.values, value)
			}
		}
	}
	return names, corpusSize
}

// filterAndRank applies the frequency floor and the example minimum, then
// sorts by frequency (pattern name as tiebreak) and caps the output.
func (d *Discoverer) filterAndRank(mined []DiscoveredPattern, corpusSize int) []DiscoveredPattern {
	floor := d.cfg.minFrequency(corpusSize)

	kept := mined[:0]
	for _, p := range mined {
		if p.Frequency < floor || len(p.Examples) < minExamples {
			continue
		}
		kept = append(kept, p)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Frequency != kept[j].Frequency {
			return kept[i].Frequency > kept[j].Frequency
		}
		return kept[i].Pattern < kept[j].Pattern
	})

	if len(kept) > d.cfg.MaxPatterns {
		kept = kept[:d.cfg.MaxPatterns]
	}
	return kept
}
