package capture

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveCMS(t *testing.T) {
	tests := []struct {
		name     string
		results  []DetectionResult
		expected string
	}{
		{
			name:     "no results",
			results:  nil,
			expected: UnknownCMS,
		},
		{
			name: "below threshold",
			results: []DetectionResult{
				{Detector: "meta", CMS: "WordPress", Confidence: 0.2},
			},
			expected: UnknownCMS,
		},
		{
			name: "highest confidence wins",
			results: []DetectionResult{
				{Detector: "meta", CMS: "WordPress", Confidence: 0.6},
				{Detector: "header", CMS: "Drupal", Confidence: 0.9},
			},
			expected: "Drupal",
		},
		{
			name: "exactly at threshold counts",
			results: []DetectionResult{
				{Detector: "meta", CMS: "Joomla", Confidence: 0.3},
			},
			expected: "Joomla",
		},
		{
			name: "nan confidence skipped",
			results: []DetectionResult{
				{Detector: "meta", CMS: "WordPress", Confidence: math.NaN()},
				{Detector: "header", CMS: "Duda", Confidence: 0.5},
			},
			expected: "Duda",
		},
		{
			name: "empty detector skipped",
			results: []DetectionResult{
				{Detector: "", CMS: "WordPress", Confidence: 0.9},
			},
			expected: UnknownCMS,
		},
		{
			name: "alias folded",
			results: []DetectionResult{
				{Detector: "meta", CMS: "joomla!", Confidence: 0.8},
			},
			expected: "Joomla",
		},
		{
			name: "versioned drupal folded",
			results: []DetectionResult{
				{Detector: "meta", CMS: "drupal 7", Confidence: 0.8},
			},
			expected: "Drupal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dp := DetectionDataPoint{URL: "https://example.com", DetectionResults: tt.results}
			assert.Equal(t, tt.expected, dp.EffectiveCMS(DefaultMinConfidence))
		})
	}
}

func TestAllHeadersMergesRobotsAndPage(t *testing.T) {
	dp := DetectionDataPoint{
		URL: "https://example.com",
		HTTPHeaders: map[string]string{
			"Server":       "nginx",
			"X-Powered-By": "WordPress",
		},
		RobotsTxt: RobotsTxt{
			HTTPHeaders: map[string]string{
				"Server":        "apache",
				"X-Robots-Only": "yes",
			},
		},
	}

	headers := dp.AllHeaders()
	// page headers win on conflict, keys are lowercased
	assert.Equal(t, "nginx", headers["server"])
	assert.Equal(t, "WordPress", headers["x-powered-by"])
	assert.Equal(t, "yes", headers["x-robots-only"])
	assert.Len(t, headers, 3)
}

func TestMetaTagKey(t *testing.T) {
	assert.Equal(t, "generator", MetaTag{Name: "Generator", Content: "WordPress"}.Key())
	assert.Equal(t, "og:site_name", MetaTag{Property: "og:site_name"}.Key())
	// name takes precedence over property
	assert.Equal(t, "generator", MetaTag{Name: "generator", Property: "og:type"}.Key())
	assert.Equal(t, "", MetaTag{Content: "orphan"}.Key())
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"HTTPS://Example.COM/", "https://example.com"},
		{"https://example.com:443/path/", "https://example.com/path"},
		{"http://example.com:80", "http://example.com"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com:8080/x", "https://example.com:8080/x"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeURL(tt.in), "input %q", tt.in)
	}
}

func TestFromMap(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := map[string]any{
		"url":       "https://example.com",
		"timestamp": ts.Format(time.RFC3339),
		"detectionResults": []any{
			map[string]any{"detector": "meta", "cms": "WordPress", "confidence": 0.85, "version": "6.4"},
		},
		"httpHeaders": map[string]any{"Server": "nginx"},
		"metaTags": []any{
			map[string]any{"name": "generator", "content": "WordPress 6.4"},
		},
		"scripts": []any{
			map[string]any{"src": "/wp-includes/js/jquery.js"},
		},
	}

	dp := FromMap(raw)
	require.Equal(t, "https://example.com", dp.URL)
	assert.Equal(t, ts, dp.Timestamp.UTC())
	require.Len(t, dp.DetectionResults, 1)
	assert.Equal(t, "WordPress", dp.DetectionResults[0].CMS)
	assert.InDelta(t, 0.85, dp.DetectionResults[0].Confidence, 1e-9)
	assert.Equal(t, "nginx", dp.HTTPHeaders["Server"])
	require.Len(t, dp.MetaTags, 1)
	assert.Equal(t, "generator", dp.MetaTags[0].Name)
	require.Len(t, dp.Scripts, 1)
}

func TestSliceFromMapsSkipsNonObjects(t *testing.T) {
	raw := []any{
		map[string]any{"url": "https://a.example"},
		"not an object",
		map[string]any{"url": "https://b.example"},
	}
	dps := SliceFromMaps(raw)
	require.Len(t, dps, 2)
	assert.Equal(t, "https://a.example", dps[0].URL)
	assert.Equal(t, "https://b.example", dps[1].URL)
}
