package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmslens/cmslens/pkg/capture"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewStore(context.Background(), &Config{Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, root
}

func testCapture(url, cms string, ts time.Time) capture.DetectionDataPoint {
	return capture.DetectionDataPoint{
		URL:       url,
		Timestamp: ts,
		HTTPHeaders: map[string]string{
			"Server": "nginx",
		},
		DetectionResults: []capture.DetectionResult{
			{Detector: "meta", CMS: cms, Confidence: 0.9},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, testCapture("https://a.example", "WordPress", ts)))
	require.NoError(t, store.Save(ctx, testCapture("https://b.example", "Drupal", ts)))

	page, err := store.Load(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 2)
	assert.Empty(t, page.NextCursor)
	assert.Equal(t, "https://a.example", page.DataPoints[0].URL)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveRejectsEmptyURL(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Save(context.Background(), capture.DetectionDataPoint{})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestNewerCaptureWinsForQueries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	older := testCapture("https://a.example", "WordPress", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := testCapture("https://A.example/", "Drupal", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	// both captures normalize to the same site
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	page, err := store.Load(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 1)
	assert.Equal(t, "Drupal", page.DataPoints[0].EffectiveCMS(capture.DefaultMinConfidence))
}

func TestOlderCaptureDoesNotReplaceNewer(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	newer := testCapture("https://a.example", "Drupal", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	older := testCapture("https://a.example", "WordPress", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.Save(ctx, newer))
	require.NoError(t, store.Save(ctx, older))

	page, err := store.Load(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 1)
	assert.Equal(t, "Drupal", page.DataPoints[0].EffectiveCMS(capture.DefaultMinConfidence))
}

func TestSaveBatchReturnsBatchID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	batch := []capture.DetectionDataPoint{
		testCapture("https://a.example", "WordPress", ts),
		{URL: "  "}, // skipped, not fatal
		testCapture("https://b.example", "Drupal", ts),
	}

	batchID, err := store.SaveBatch(ctx, batch)
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLoadFilters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, testCapture("https://blog.example", "WordPress", jan)))
	require.NoError(t, store.Save(ctx, testCapture("https://shop.example", "Drupal", jun)))

	page, err := store.Load(ctx, Query{CMS: "wordpress"})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 1)
	assert.Equal(t, "https://blog.example", page.DataPoints[0].URL)

	page, err = store.Load(ctx, Query{Since: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 1)
	assert.Equal(t, "https://shop.example", page.DataPoints[0].URL)

	page, err = store.Load(ctx, Query{Until: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 1)
	assert.Equal(t, "https://blog.example", page.DataPoints[0].URL)

	page, err = store.Load(ctx, Query{URLPrefix: "https://shop"})
	require.NoError(t, err)
	require.Len(t, page.DataPoints, 1)
}

func TestLoadPagination(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	for i := 0; i < 25; i++ {
		url := fmt.Sprintf("https://site-%02d.example", i)
		require.NoError(t, store.Save(ctx, testCapture(url, "WordPress", ts)))
	}

	var all []capture.DetectionDataPoint
	q := Query{Limit: 10}
	pages := 0
	for {
		page, err := store.Load(ctx, q)
		require.NoError(t, err)
		all = append(all, page.DataPoints...)
		pages++
		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}

	assert.Equal(t, 25, len(all))
	assert.Equal(t, 3, pages)
	// no duplicates across pages
	seen := make(map[string]struct{})
	for _, dp := range all {
		_, dup := seen[dp.URL]
		assert.False(t, dup, "duplicate %s", dp.URL)
		seen[dp.URL] = struct{}{}
	}
}

func TestLoadRejectsMalformedCursor(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), Query{Cursor: "not-base64!!!"})
	assert.Error(t, err)
}

func TestReplayAcrossReopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	ts := time.Now().UTC()

	store, err := NewStore(ctx, &Config{Root: root})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testCapture("https://a.example", "WordPress", ts)))
	require.NoError(t, store.Save(ctx, testCapture("https://b.example", "Drupal", ts)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, &Config{Root: root})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReplaySkipsCorruptLines(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(ctx, &Config{Root: root})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testCapture("https://a.example", "WordPress", time.Now().UTC())))
	require.NoError(t, store.Close())

	logPath := filepath.Join(root, "captures.jsonl")
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString("{\"url\": \"https://trunc")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := NewStore(ctx, &Config{Root: root})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOperationsAfterClose(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Close())

	err := store.Save(ctx, testCapture("https://a.example", "WordPress", time.Now()))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.Load(ctx, Query{})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent
	assert.NoError(t, store.Close())
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	assert.True(t, IsInvalidInput(cfg.Validate()))

	cfg = &Config{Root: "relative/path"}
	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.Root))
}

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(&Cursor{LastURL: "https://a.example", LastTime: 42})
	require.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", decoded.LastURL)
	assert.Equal(t, int64(42), decoded.LastTime)

	first, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, first)

	assert.Empty(t, EncodeCursor(nil))
	assert.Empty(t, EncodeCursor(&Cursor{}))
}
