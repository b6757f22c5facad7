// Package vector provides common types for vector collection access.
package vector

import "context"

// Document is the unit written to a vector collection.
// Metadata values must be flat scalars (string, int, int64, float64, bool).
type Document struct {
	Metadata map[string]any
	ID       string
	Content  string
}

// Collection defines the operations the backfill needs from a vector collection.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Count returns the number of documents currently stored.
	Count(ctx context.Context) (int64, error)

	// GetIDs returns up to limit document ids starting at offset.
	GetIDs(ctx context.Context, limit, offset int) ([]string, error)

	// Add writes documents in a single call. Either all are accepted or an error is returned.
	Add(ctx context.Context, docs []Document) error
}
