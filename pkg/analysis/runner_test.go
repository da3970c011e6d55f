package analysis

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmslens/cmslens/pkg/capture"
)

func buildCorpus() []capture.DetectionDataPoint {
	var dataPoints []capture.DetectionDataPoint
	add := func(cms string, n int, headers map[string]string) {
		for i := 0; i < n; i++ {
			dataPoints = append(dataPoints, capture.DetectionDataPoint{
				URL:         fmt.Sprintf("https://%s-%d.example", cms, i),
				HTTPHeaders: headers,
				DetectionResults: []capture.DetectionResult{
					{Detector: "meta", CMS: cms, Confidence: 0.9},
				},
			})
		}
	}
	add("Duda", 20, map[string]string{"X-Dm-Siteid": "1", "Server": "nginx"})
	add("WordPress", 50, map[string]string{"Server": "nginx", "Link": "</wp-json/>; rel=api"})
	add("Drupal", 30, map[string]string{"X-Drupal-Cache": "HIT", "Server": "apache"})
	return dataPoints
}

func TestRunnerFullPipeline(t *testing.T) {
	runner := NewRunner(DefaultOptions(), zerolog.Nop())
	result := runner.Run(buildCorpus())

	require.NotNil(t, result)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 100, result.CorpusSize)

	require.NotNil(t, result.Bias)
	assert.Equal(t, 100, result.Bias.TotalSites)
	assert.Equal(t, 3, len(result.Bias.CMSDistribution))
	assert.Greater(t, result.Bias.ConcentrationScore, 0.0)

	// the Duda-exclusive header survives the full pipeline into a keep
	kept := make([]string, 0)
	for _, rec := range result.Recommendations.Learn.RecommendToKeep {
		kept = append(kept, rec.Pattern)
	}
	assert.Contains(t, kept, "x-dm-siteid")
	assert.Contains(t, kept, "x-drupal-cache")
}

func TestRunnerEmptyCorpus(t *testing.T) {
	runner := NewRunner(DefaultOptions(), zerolog.Nop())
	result := runner.Run(nil)

	require.NotNil(t, result)
	assert.Zero(t, result.CorpusSize)
	assert.Empty(t, result.Recommendations.Learn.RecommendToKeep)
	assert.NotEmpty(t, result.Recommendations.Learn.CurrentlyFiltered)
}

func TestRunnerDistinctRunIDs(t *testing.T) {
	runner := NewRunner(DefaultOptions(), zerolog.Nop())
	first := runner.Run(nil)
	second := runner.Run(nil)
	assert.NotEqual(t, first.RunID, second.RunID)
}
