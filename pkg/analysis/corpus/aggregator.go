package corpus

import (
	"strings"

	"github.com/cmslens/cmslens/pkg/capture"
)

// Result holds the three per-namespace signal maps produced by one
// aggregation pass, plus the corpus size the frequencies are relative to.
type Result struct {
	Headers    map[string]*SignalPattern
	MetaTags   map[string]*SignalPattern
	Scripts    map[string]*SignalPattern
	CorpusSize int
}

// Aggregator scans capture records and builds per-signal frequency records.
type Aggregator struct {
	minConfidence float64
}

// NewAggregator creates an Aggregator. minConfidence is the verdict
// threshold used when resolving each capture's effective CMS label.
func NewAggregator(minConfidence float64) *Aggregator {
	return &Aggregator{minConfidence: minConfidence}
}

// Aggregate performs one pass over the corpus. Records with missing or
// malformed fields contribute whatever portions of them are usable; a
// capture with no URL is skipped entirely since site identity is what the
// frequencies count.
func (a *Aggregator) Aggregate(dataPoints []capture.DetectionDataPoint) Result {
	headers := make(map[string]*accumulator)
	metaTags := make(map[string]*accumulator)
	scripts := make(map[string]*accumulator)

	corpusSize := 0
	for i := range dataPoints {
		dp := &dataPoints[i]
		site := strings.TrimSpace(dp.URL)
		if site == "" {
			continue
		}
		corpusSize++
		cms := dp.EffectiveCMS(a.minConfidence)

		for name, value := range dp.AllHeaders() {
			acc := headers[name]
			if acc == nil {
				acc = newAccumulator()
				headers[name] = acc
			}
			acc.observe(site, cms, value)
		}

		for _, tag := range dp.MetaTags {
			key := tag.Key()
			if key == "" {
				continue
			}
			composite := key + ":" + strings.TrimSpace(tag.Content)
			acc := metaTags[composite]
			if acc == nil {
				acc = newAccumulator()
				metaTags[composite] = acc
			}
			acc.observe(site, cms, tag.Content)
		}

		for _, script := range dp.Scripts {
			for _, extracted := range ExtractScriptPatterns(script) {
				acc := scripts[extracted.Pattern]
				if acc == nil {
					acc = newAccumulator()
					scripts[extracted.Pattern] = acc
				}
				acc.observe(site, cms, extracted.Example)
			}
		}
	}

	return Result{
		Headers:    finalizeAll(headers, corpusSize),
		MetaTags:   finalizeAll(metaTags, corpusSize),
		Scripts:    finalizeAll(scripts, corpusSize),
		CorpusSize: corpusSize,
	}
}

func finalizeAll(accs map[string]*accumulator, corpusSize int) map[string]*SignalPattern {
	out := make(map[string]*SignalPattern, len(accs))
	for pattern, acc := range accs {
		if sp := acc.finalize(pattern, corpusSize); sp != nil {
			out[pattern] = sp
		}
	}
	return out
}
