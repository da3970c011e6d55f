package discovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmslens/cmslens/pkg/capture"
)

func dudaSite(i int, headers map[string]string) capture.DetectionDataPoint {
	return capture.DetectionDataPoint{
		URL:         fmt.Sprintf("https://duda-%d.example", i),
		HTTPHeaders: headers,
		DetectionResults: []capture.DetectionResult{
			{Detector: "meta", CMS: "Duda", Confidence: 0.9},
		},
	}
}

func TestDiscoverPrefixFamily(t *testing.T) {
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 10; i++ {
		dataPoints = append(dataPoints, dudaSite(i, map[string]string{
			"x-dmglobal-request": "abc",
			"x-dmglobal-region":  "eu",
		}))
	}

	result := NewDiscoverer(DefaultConfig(), zerolog.Nop()).Run(dataPoints)
	require.NotEmpty(t, result.DiscoveredPatterns)

	var prefix *DiscoveredPattern
	for i := range result.DiscoveredPatterns {
		if result.DiscoveredPatterns[i].Pattern == "x-dmglobal-*" {
			prefix = &result.DiscoveredPatterns[i]
		}
	}
	require.NotNil(t, prefix, "expected the shared x-dmglobal- prefix to be mined")
	assert.Equal(t, PatternPrefix, prefix.Type)
	assert.InDelta(t, 1.0, prefix.Frequency, 1e-9)
	assert.Equal(t, []string{"x-dmglobal-region", "x-dmglobal-request"}, prefix.Examples)
	assert.InDelta(t, 1.0, prefix.CMSCorrelation["Duda"], 1e-9)
	assert.Equal(t, "Dmglobal", prefix.PotentialVendor)
}

func TestDiscoveryIdempotent(t *testing.T) {
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 12; i++ {
		dataPoints = append(dataPoints, dudaSite(i, map[string]string{
			"x-acme-request": "1",
			"x-acme-zone":    "us",
			"x-other":        "x",
		}))
	}

	d := NewDiscoverer(DefaultConfig(), zerolog.Nop())
	first := d.Run(dataPoints)
	second := d.Run(dataPoints)
	assert.Equal(t, first, second)
}

func TestFrequencyFloorSmallCorpus(t *testing.T) {
	// 20 sites, pattern on 1 site = 0.05: below the small-corpus floor
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 20; i++ {
		headers := map[string]string{"server": "nginx"}
		if i == 0 {
			headers["x-rare-one"] = "a"
			headers["x-rare-two"] = "b"
		}
		dataPoints = append(dataPoints, dudaSite(i, headers))
	}

	result := NewDiscoverer(DefaultConfig(), zerolog.Nop()).Run(dataPoints)
	for _, p := range result.DiscoveredPatterns {
		assert.NotEqual(t, "x-rare-*", p.Pattern)
	}
}

func TestMaxPatternsCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPatterns = 2

	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 10; i++ {
		dataPoints = append(dataPoints, dudaSite(i, map[string]string{
			"x-aaa-one": "1",
			"x-aaa-two": "2",
			"x-bbb-one": "1",
			"x-bbb-two": "2",
		}))
	}

	result := NewDiscoverer(cfg, zerolog.Nop()).Run(dataPoints)
	assert.Len(t, result.DiscoveredPatterns, 2)
}

func TestEmergingVendorNeedsTwoPatterns(t *testing.T) {
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 10; i++ {
		dataPoints = append(dataPoints, dudaSite(i, map[string]string{
			"x-acmecdn-request": "1",
			"x-acmecdn-zone":    "us",
			"acmecdn-status":    "ok",
		}))
	}

	result := NewDiscoverer(DefaultConfig(), zerolog.Nop()).Run(dataPoints)
	require.NotEmpty(t, result.EmergingVendors)

	var acme *EmergingVendorPattern
	for i := range result.EmergingVendors {
		if result.EmergingVendors[i].Vendor == "Acmecdn" {
			acme = &result.EmergingVendors[i]
		}
	}
	require.NotNil(t, acme)
	assert.GreaterOrEqual(t, len(acme.Patterns), 2)
	assert.Greater(t, acme.Confidence, 0.0)
}

func TestKnownVendorNotEmerging(t *testing.T) {
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 10; i++ {
		dataPoints = append(dataPoints, dudaSite(i, map[string]string{
			"x-sucuri-id":    "1",
			"x-sucuri-cache": "hit",
		}))
	}

	result := NewDiscoverer(DefaultConfig(), zerolog.Nop()).Run(dataPoints)
	for _, v := range result.EmergingVendors {
		assert.NotEqual(t, "Sucuri", v.Vendor)
	}
}

func TestDetectEvolutionVersionMigration(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < 6; i++ {
		dp := dudaSite(i, map[string]string{"x-api-v1": "ok"})
		dp.Timestamp = base.AddDate(0, 0, i)
		dataPoints = append(dataPoints, dp)
	}
	for i := 6; i < 12; i++ {
		dp := dudaSite(i, map[string]string{"x-api-v2": "ok"})
		dp.Timestamp = base.AddDate(0, 1, i)
		dataPoints = append(dataPoints, dp)
	}

	evolutions := detectEvolution(dataPoints)
	require.NotEmpty(t, evolutions)

	var versioning *PatternEvolution
	for i := range evolutions {
		if evolutions[i].Kind == EvolutionVersioning {
			versioning = &evolutions[i]
		}
	}
	require.NotNil(t, versioning)
	assert.Equal(t, "x-api", versioning.Base)
	assert.Equal(t, "x-api-v1", versioning.Before)
	assert.Equal(t, "x-api-v2", versioning.After)
	assert.Contains(t, versioning.Detail, "upgraded")
}

func TestDetectEvolutionNeedsEnoughPoints(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var dataPoints []capture.DetectionDataPoint
	for i := 0; i < minEvolutionPoints-1; i++ {
		dp := dudaSite(i, map[string]string{"x-api-v1": "ok"})
		dp.Timestamp = base.AddDate(0, 0, i)
		dataPoints = append(dataPoints, dp)
	}
	assert.Nil(t, detectEvolution(dataPoints))
}

func TestDetectAnomaliesCategoryMismatch(t *testing.T) {
	names := map[string]*nameInfo{
		"x-tracking-mode": {
			sites:  map[string]struct{}{"a": {}, "b": {}, "c": {}},
			values: []string{"hit", "miss", "hit"},
		},
	}
	anomalies := detectAnomalies(names, 3, 0.1)
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyCategoryMismatch, anomalies[0].Kind)
	assert.Equal(t, "analytics", anomalies[0].Expected)
	assert.Equal(t, "caching", anomalies[0].Observed)
	assert.InDelta(t, 1.0, anomalies[0].Confidence, 1e-9)
}

func TestDetectAnomaliesVendorMismatch(t *testing.T) {
	names := map[string]*nameInfo{
		"x-drupal-cache-backend": {
			sites:  map[string]struct{}{"a": {}, "b": {}},
			values: []string{"cloudflare-tiered", "cloudflare-tiered"},
		},
	}
	anomalies := detectAnomalies(names, 2, 0.1)

	var vendorMismatch *SemanticAnomaly
	for i := range anomalies {
		if anomalies[i].Kind == AnomalyVendorMismatch {
			vendorMismatch = &anomalies[i]
		}
	}
	require.NotNil(t, vendorMismatch)
	assert.Equal(t, "Drupal", vendorMismatch.Expected)
	assert.Equal(t, "Cloudflare", vendorMismatch.Observed)
}

func TestDetectAnomaliesRespectsFrequencyFloor(t *testing.T) {
	names := map[string]*nameInfo{
		"x-tracking-mode": {
			sites:  map[string]struct{}{"a": {}},
			values: []string{"hit"},
		},
	}
	assert.Empty(t, detectAnomalies(names, 100, 0.05))
}

func TestEmptyCorpus(t *testing.T) {
	result := NewDiscoverer(DefaultConfig(), zerolog.Nop()).Run(nil)
	assert.Empty(t, result.DiscoveredPatterns)
	assert.Empty(t, result.EmergingVendors)
	assert.Empty(t, result.Evolutions)
	assert.Empty(t, result.Anomalies)
	assert.Empty(t, result.Insights)
}
