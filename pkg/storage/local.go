package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/cmslens/cmslens/pkg/capture"
)

const (
	captureLogName = "captures.jsonl"
	manifestName   = "manifest.yaml"
)

// manifest is the YAML sidecar describing the store's contents. Purely
// informational; the capture log is the source of truth.
type manifest struct {
	Records     int       `yaml:"records"`
	Sites       int       `yaml:"sites"`
	LastBatchID string    `yaml:"last_batch_id,omitempty"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// LocalStore is the file-backed Store: an append-only JSON-lines capture
// log plus an in-memory index keyed by normalized URL. The newest capture
// of a site wins for queries; older captures stay in the log.
type LocalStore struct {
	mu      sync.RWMutex
	root    string
	logFile *os.File
	index   map[string]capture.DetectionDataPoint
	records int
	batchID string
	closed  bool
}

// NewLocalStore opens (creating if needed) a local store rooted at
// cfg.Root and rebuilds the URL index from the capture log.
func NewLocalStore(ctx context.Context, cfg *Config) (Store, error) {
	if err := os.MkdirAll(cfg.Root, 0o750); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	s := &LocalStore{
		root:  cfg.Root,
		index: make(map[string]capture.DetectionDataPoint),
	}
	if err := s.replayLog(); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.Root, captureLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open capture log: %w", err)
	}
	s.logFile = logFile

	log.Debug().Str("root", cfg.Root).Int("sites", len(s.index)).Msg("capture store opened")
	return s, nil
}

// replayLog rebuilds the index from the capture log. Corrupt lines are
// skipped with a warning rather than failing the open; a partially written
// final line must not brick the store.
func (s *LocalStore) replayLog() error {
	path := filepath.Join(s.root, captureLogName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open capture log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var dp capture.DetectionDataPoint
		if err := json.Unmarshal(scanner.Bytes(), &dp); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("skipping corrupt capture log line")
			continue
		}
		s.indexRecord(dp)
		s.records++
	}
	return scanner.Err()
}

// indexRecord inserts the capture into the URL index; a newer timestamp
// replaces an existing entry for the same normalized URL.
func (s *LocalStore) indexRecord(dp capture.DetectionDataPoint) {
	key := capture.NormalizeURL(dp.URL)
	if key == "" {
		return
	}
	if existing, ok := s.index[key]; ok && existing.Timestamp.After(dp.Timestamp) {
		return
	}
	s.index[key] = dp
}

// Save persists one capture.
func (s *LocalStore) Save(ctx context.Context, dp capture.DetectionDataPoint) error {
	if strings.TrimSpace(dp.URL) == "" {
		return NewInvalidInputError("url", "capture URL is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.appendLocked(dp)
}

func (s *LocalStore) appendLocked(dp capture.DetectionDataPoint) error {
	data, err := json.Marshal(dp)
	if err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	if _, err := s.logFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append capture: %w", err)
	}
	s.indexRecord(dp)
	s.records++
	return s.writeManifestLocked()
}

// SaveBatch persists the batch atomically from the caller's point of view
// (one lock hold) and returns the generated batch ID.
func (s *LocalStore) SaveBatch(ctx context.Context, dps []capture.DetectionDataPoint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	batchID := uuid.NewString()
	s.batchID = batchID
	for _, dp := range dps {
		if strings.TrimSpace(dp.URL) == "" {
			continue
		}
		if err := s.appendLocked(dp); err != nil {
			return "", err
		}
	}
	return batchID, nil
}

// Load returns the indexed captures matching the query, ordered by
// normalized URL for stable pagination.
func (s *LocalStore) Load(ctx context.Context, q Query) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Page{}, ErrClosed
	}

	cursor, err := DecodeCursor(q.Cursor)
	if err != nil {
		return Page{}, err
	}

	minConfidence := q.MinConfidence
	if minConfidence == 0 {
		minConfidence = capture.DefaultMinConfidence
	}

	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var page Page
	for _, key := range keys {
		if cursor != nil && key <= cursor.LastURL {
			continue
		}
		if q.URLPrefix != "" && !strings.HasPrefix(key, q.URLPrefix) {
			continue
		}

		dp := s.index[key]
		if !q.Since.IsZero() && dp.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !dp.Timestamp.Before(q.Until) {
			continue
		}
		if q.CMS != "" && dp.EffectiveCMS(minConfidence) != capture.NormalizeCMS(q.CMS) {
			continue
		}

		if q.Limit > 0 && len(page.DataPoints) == q.Limit {
			page.NextCursor = EncodeCursor(&Cursor{
				LastURL:  capture.NormalizeURL(page.DataPoints[len(page.DataPoints)-1].URL),
				LastTime: page.DataPoints[len(page.DataPoints)-1].Timestamp.UnixNano(),
			})
			break
		}
		page.DataPoints = append(page.DataPoints, dp)
	}
	return page, nil
}

// Count returns the number of indexed sites.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.index), nil
}

// Close flushes and closes the capture log.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.logFile.Close()
}

func (s *LocalStore) writeManifestLocked() error {
	m := manifest{
		Records:     s.records,
		Sites:       len(s.index),
		LastBatchID: s.batchID,
		UpdatedAt:   time.Now().UTC(),
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(s.root, manifestName), data, 0o640)
}
