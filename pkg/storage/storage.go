// Package storage persists capture records and serves corpus queries. The
// analysis core never touches storage directly; it receives an in-memory
// slice assembled through the Store contract defined here.
package storage

import (
	"context"
	"time"

	"github.com/cmslens/cmslens/pkg/capture"
)

// Query filters a corpus load. Zero-value fields are ignored.
type Query struct {
	// CMS restricts results to captures whose effective label matches.
	CMS string

	// MinConfidence is the verdict floor applied when resolving the
	// effective label for the CMS filter. Zero means the default.
	MinConfidence float64

	// Since / Until bound the capture timestamp, inclusive / exclusive.
	Since time.Time
	Until time.Time

	// URLPrefix restricts results to normalized URLs with this prefix.
	URLPrefix string

	// Limit caps the result count; zero means unlimited.
	Limit int

	// Cursor resumes a previous page.
	Cursor string
}

// Page is one result page plus the cursor for the next one. NextCursor is
// empty on the last page.
type Page struct {
	DataPoints []capture.DetectionDataPoint
	NextCursor string
}

// Store is the capture persistence contract. The index is keyed by
// normalized URL; storing a newer capture of an already-indexed site
// replaces the older record for queries.
type Store interface {
	// Save persists one capture.
	Save(ctx context.Context, dp capture.DetectionDataPoint) error

	// SaveBatch persists a batch of captures and returns the batch ID.
	SaveBatch(ctx context.Context, dps []capture.DetectionDataPoint) (string, error)

	// Load returns the captures matching the query.
	Load(ctx context.Context, q Query) (Page, error)

	// Count returns the number of indexed sites.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources. Operations after Close
	// return ErrClosed.
	Close() error
}
