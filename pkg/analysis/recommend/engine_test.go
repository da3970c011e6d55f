package recommend

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmslens/cmslens/pkg/analysis/bias"
	"github.com/cmslens/cmslens/pkg/analysis/corpus"
	"github.com/cmslens/cmslens/pkg/capture"
	"github.com/cmslens/cmslens/pkg/signals"
)

// corpusBuilder assembles synthetic capture corpora site by site.
type corpusBuilder struct {
	dataPoints []capture.DetectionDataPoint
	serial     int
}

func (b *corpusBuilder) add(cms string, n int, mutate func(i int, dp *capture.DetectionDataPoint)) *corpusBuilder {
	for i := 0; i < n; i++ {
		dp := capture.DetectionDataPoint{
			URL: fmt.Sprintf("https://site-%04d.example", b.serial),
		}
		b.serial++
		if cms != "" {
			dp.DetectionResults = []capture.DetectionResult{
				{Detector: "meta", CMS: cms, Confidence: 0.9},
			}
		}
		if mutate != nil {
			mutate(i, &dp)
		}
		b.dataPoints = append(b.dataPoints, dp)
	}
	return b
}

func setHeader(name, value string) func(int, *capture.DetectionDataPoint) {
	return func(_ int, dp *capture.DetectionDataPoint) {
		if dp.HTTPHeaders == nil {
			dp.HTTPHeaders = map[string]string{}
		}
		dp.HTTPHeaders[name] = value
	}
}

func recommendOver(t *testing.T, cfg Config, dataPoints []capture.DetectionDataPoint) Recommendations {
	t.Helper()
	aggregated := corpus.NewAggregator(cfg.MinDetectionConfidence).Aggregate(dataPoints)
	detector := bias.NewDetector(bias.DefaultThresholds(), zerolog.Nop())
	analysis := detector.Analyze(dataPoints, aggregated)

	engine := NewEngine(cfg, signals.Defaults(), zerolog.Nop())
	return engine.Recommend(Input{
		DataPoints: dataPoints,
		Aggregated: aggregated,
		Bias:       analysis,
	})
}

func patterns(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Pattern)
	}
	return out
}

func TestEmptyCorpusStillReportsAllowlists(t *testing.T) {
	recs := recommendOver(t, DefaultConfig(), nil)

	assert.Empty(t, recs.Learn.RecommendToKeep)
	assert.Empty(t, recs.Learn.RecommendToFilter)
	assert.Empty(t, recs.Detect.NewPatternOpportunities)
	assert.Empty(t, recs.Detect.PatternsToRefine)
	assert.Empty(t, recs.GroundTruth.PotentialNewRules)

	require.NotEmpty(t, recs.Learn.CurrentlyFiltered)
	assert.Contains(t, recs.Learn.CurrentlyFiltered, "set-cookie")
	assert.Contains(t, recs.Learn.CurrentlyFiltered, "viewport")
}

func TestAllowlistedSignalNeverRecommended(t *testing.T) {
	// set-cookie appears on every Duda site and nowhere else; raw numbers
	// scream keep, the allowlist says otherwise
	b := &corpusBuilder{}
	b.add("Duda", 50, setHeader("Set-Cookie", "dm_session=x"))
	b.add("WordPress", 50, nil)

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	assert.NotContains(t, patterns(recs.Learn.RecommendToKeep), "set-cookie")
	assert.NotContains(t, patterns(recs.Learn.RecommendToFilter), "set-cookie")
}

func TestVendorHeaderKeepReasonCitesBucketFrequency(t *testing.T) {
	b := &corpusBuilder{}
	// on 99 of 100 Duda sites, absent elsewhere
	b.add("Duda", 99, setHeader("X-Dm-Siteid", "123"))
	b.add("Duda", 1, nil)
	b.add("WordPress", 100, nil)

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	require.NotEmpty(t, recs.Learn.RecommendToKeep)
	keep := recs.Learn.RecommendToKeep[0]
	assert.Equal(t, "x-dm-siteid", keep.Pattern)
	assert.Equal(t, "Strong correlation with Duda (99%)", keep.Reason)
	assert.Equal(t, bias.ConfidenceHigh, keep.Confidence)
}

func TestForcedTransportHeaderKeptForDominantPlatform(t *testing.T) {
	// strict-transport-security on 99% of Duda, 20% of WordPress, none of
	// Drupal: near-exclusive adoption makes it a keep, citing the Duda
	// bucket percentage
	b := &corpusBuilder{}
	b.add("Duda", 99, setHeader("Strict-Transport-Security", "max-age=31536000"))
	b.add("Duda", 1, nil)
	b.add("WordPress", 20, setHeader("Strict-Transport-Security", "max-age=63072000"))
	b.add("WordPress", 80, nil)
	b.add("Drupal", 100, nil)

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	kept := patterns(recs.Learn.RecommendToKeep)
	require.Contains(t, kept, "strict-transport-security")
	var rec Recommendation
	for _, r := range recs.Learn.RecommendToKeep {
		if r.Pattern == "strict-transport-security" {
			rec = r
		}
	}
	assert.Equal(t, "Strong correlation with Duda (99%)", rec.Reason)
	assert.Equal(t, bias.ConfidenceHigh, rec.Confidence)
}

func TestNoisySignalRecommendedToFilter(t *testing.T) {
	b := &corpusBuilder{}
	for _, cms := range []string{"WordPress", "Drupal", "Joomla", "Duda"} {
		cms := cms
		b.add(cms, 20, func(i int, dp *capture.DetectionDataPoint) {
			setHeader("X-Request-Id", fmt.Sprintf("%s-%d", cms, i))(i, dp)
		})
	}

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	require.Contains(t, patterns(recs.Learn.RecommendToFilter), "x-request-id")
	var rec Recommendation
	for _, r := range recs.Learn.RecommendToFilter {
		if r.Pattern == "x-request-id" {
			rec = r
		}
	}
	assert.Contains(t, rec.Reason, "distinct values")
	assert.Equal(t, bias.ConfidenceLow, rec.Confidence)
	assert.GreaterOrEqual(t, rec.Diversity, 3)
}

func TestUniformBucketFrequenciesNotKept(t *testing.T) {
	// near-identical per-platform frequencies (0.58 / 0.60 / 0.65) on a
	// corpus skewed toward Joomla: no keep, and single-valued so no filter
	b := &corpusBuilder{}
	b.add("Joomla", 29, setHeader("X-Session-Mode", "standard"))
	b.add("Joomla", 21, nil)
	b.add("WordPress", 18, setHeader("X-Session-Mode", "standard"))
	b.add("WordPress", 12, nil)
	b.add("Drupal", 13, setHeader("X-Session-Mode", "standard"))
	b.add("Drupal", 7, nil)

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	assert.NotContains(t, patterns(recs.Learn.RecommendToKeep), "x-session-mode")
	assert.NotContains(t, patterns(recs.Learn.RecommendToFilter), "x-session-mode")
}

func TestPlatformSpecificKeepsBypassCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxKeep = 2

	b := &corpusBuilder{}
	b.add("Duda", 25, setHeader("X-Dm-One", "a"))
	b.add("Shopify", 25, setHeader("X-Shopify-Stage", "prod"))
	b.add("Wix", 25, setHeader("X-Wix-Ref", "r"))
	b.add("WordPress", 25, nil)

	recs := recommendOver(t, cfg, b.dataPoints)

	// three exclusive signals, all platform-specific, cap of two does not
	// drop any of them
	kept := patterns(recs.Learn.RecommendToKeep)
	assert.Contains(t, kept, "x-dm-one")
	assert.Contains(t, kept, "x-shopify-stage")
	assert.Contains(t, kept, "x-wix-ref")
}

func TestPlatformSpecificRankFirst(t *testing.T) {
	b := &corpusBuilder{}
	// exclusive to Duda: platform-specific
	b.add("Duda", 30, setHeader("X-Dm-Only", "a"))
	// strong raw correlation but present across platforms: not specific
	b.add("Duda", 20, setHeader("X-Broad", "b"))
	b.add("WordPress", 30, setHeader("X-Broad", "b"))
	b.add("Drupal", 20, setHeader("X-Broad", "b"))

	cfg := DefaultConfig()
	cfg.KeepCorrelation = 0.4
	recs := recommendOver(t, cfg, b.dataPoints)

	kept := patterns(recs.Learn.RecommendToKeep)
	require.NotEmpty(t, kept)
	assert.Equal(t, "x-dm-only", kept[0])
}

func TestDetectOpportunityAndRefine(t *testing.T) {
	b := &corpusBuilder{}
	b.add("Joomla", 10, setHeader("X-Content-Powered-By", "K2"))
	b.add("Joomla", 15, nil)
	// spread evenly so the best correlation stays under the refine floor
	for _, cms := range []string{"Joomla", "WordPress", "Drupal", "Duda", "Shopify"} {
		b.add(cms, 10, setHeader("X-Cdn", "pop-eu"))
	}

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	opportunities := patterns(recs.Detect.NewPatternOpportunities)
	assert.Contains(t, opportunities, "x-content-powered-by")

	refine := patterns(recs.Detect.PatternsToRefine)
	require.Contains(t, refine, "x-cdn")
	for _, r := range recs.Detect.PatternsToRefine {
		if r.Pattern == "x-cdn" {
			assert.True(t, strings.HasPrefix(r.Reason, "Too generic:"), "reason %q", r.Reason)
		}
	}
}

func TestGroundTruthMetaRule(t *testing.T) {
	b := &corpusBuilder{}
	b.add("Joomla", 40, func(i int, dp *capture.DetectionDataPoint) {
		dp.MetaTags = []capture.MetaTag{{Name: "generator", Content: "Joomla! - Open Source Content Management"}}
	})
	b.add("WordPress", 30, nil)
	b.add("Drupal", 30, nil)

	recs := recommendOver(t, DefaultConfig(), b.dataPoints)

	require.NotEmpty(t, recs.GroundTruth.PotentialNewRules)
	rule := recs.GroundTruth.PotentialNewRules[0]
	assert.Equal(t, "generator:Joomla! - Open Source Content Management", rule.Pattern)
	assert.Contains(t, rule.Reason, "Joomla")
	assert.Equal(t, bias.ConfidenceHigh, rule.Confidence)
}

func TestFallbackWithoutBiasAnalysisMatches(t *testing.T) {
	b := &corpusBuilder{}
	b.add("Duda", 40, setHeader("X-Dm-Siteid", "123"))
	b.add("WordPress", 60, nil)

	aggregated := corpus.NewAggregator(DefaultConfig().MinDetectionConfidence).Aggregate(b.dataPoints)
	detector := bias.NewDetector(bias.DefaultThresholds(), zerolog.Nop())
	analysis := detector.Analyze(b.dataPoints, aggregated)

	engine := NewEngine(DefaultConfig(), signals.Defaults(), zerolog.Nop())
	withBias := engine.Recommend(Input{DataPoints: b.dataPoints, Aggregated: aggregated, Bias: analysis})
	withoutBias := engine.Recommend(Input{DataPoints: b.dataPoints, Aggregated: aggregated})

	assert.Equal(t, withBias.Learn, withoutBias.Learn)
	assert.Equal(t, withBias.Detect, withoutBias.Detect)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "generator", signalName("generator:WordPress 6.4"))
	assert.Equal(t, "x-powered-by", signalName("x-powered-by"))
}
