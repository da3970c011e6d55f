package commands

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmslens/cmslens/pkg/capture"
)

func writeCorpusFile(t *testing.T) string {
	t.Helper()

	dataPoints := []capture.DetectionDataPoint{
		{
			URL:         "https://duda-0.example",
			HTTPHeaders: map[string]string{"X-Dm-Siteid": "1"},
			DetectionResults: []capture.DetectionResult{
				{Detector: "meta", CMS: "Duda", Confidence: 0.9},
			},
		},
		{
			URL:         "https://duda-1.example",
			HTTPHeaders: map[string]string{"X-Dm-Siteid": "2"},
			DetectionResults: []capture.DetectionResult{
				{Detector: "meta", CMS: "Duda", Confidence: 0.9},
			},
		},
		{
			URL:         "https://wp-0.example",
			HTTPHeaders: map[string]string{"Server": "nginx"},
			DetectionResults: []capture.DetectionResult{
				{Detector: "meta", CMS: "WordPress", Confidence: 0.9},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	file, err := os.Create(path)
	require.NoError(t, err)
	enc := json.NewEncoder(file)
	for _, dp := range dataPoints {
		require.NoError(t, enc.Encode(dp))
	}
	require.NoError(t, file.Close())
	return path
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	runErr := fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), runErr
}

func TestRecommendCommandFromInputFile(t *testing.T) {
	corpus := writeCorpusFile(t)

	root := NewCommand()
	root.SetArgs([]string{
		"recommend",
		"--input", corpus,
		"--surface", "learn",
		"--output", "json",
		"--no-workspace",
		"--quiet",
	})

	out, err := captureStdout(t, root.Execute)
	require.NoError(t, err)

	var learn struct {
		CurrentlyFiltered []string `json:"currentlyFiltered"`
		RecommendToKeep   []struct {
			Pattern string `json:"pattern"`
		} `json:"recommendToKeep"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &learn))
	assert.NotEmpty(t, learn.CurrentlyFiltered)

	kept := make([]string, 0, len(learn.RecommendToKeep))
	for _, rec := range learn.RecommendToKeep {
		kept = append(kept, rec.Pattern)
	}
	assert.Contains(t, kept, "x-dm-siteid")
}

func TestRecommendCommandRejectsUnknownSurface(t *testing.T) {
	root := NewCommand()
	root.SetArgs([]string{"recommend", "--surface", "bogus", "--no-workspace"})
	_, err := captureStdout(t, root.Execute)
	assert.Error(t, err)
}
