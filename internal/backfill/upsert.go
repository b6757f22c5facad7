package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/chroma-backfill/internal/vector"
)

// DefaultBatchSize is the number of documents written per Add call.
const DefaultBatchSize = 50

// ErrBatchWrite is returned when the collection rejects a batch.
var ErrBatchWrite = errors.New("batch write failed")

// Result reports what Upsert did with one table's documents.
type Result struct {
	Candidates      int
	SkippedExisting int
	SkippedEmpty    int
	Pending         int
	Added           int
}

// Filter returns the documents that still need writing.
// A document is kept only if its id is not in existing, it was not already
// kept earlier in docs, and its content is not blank.
func Filter(docs []vector.Document, existing IDSet) (pending []vector.Document, skippedExisting, skippedEmpty int) {
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if existing.Has(doc.ID) {
			skippedExisting++
			continue
		}
		if _, dup := seen[doc.ID]; dup {
			skippedExisting++
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			skippedEmpty++
			continue
		}
		seen[doc.ID] = struct{}{}
		pending = append(pending, doc)
	}
	return pending, skippedExisting, skippedEmpty
}

// Upserter writes missing documents to a collection in fixed-size batches.
type Upserter struct {
	Collection vector.Collection
	BatchSize  int
	DryRun     bool
}

// Upsert filters docs against existing and writes the rest.
// In dry-run mode nothing is written and Added stays 0.
// existing is only read.
// The first failed batch aborts with an error wrapping ErrBatchWrite;
// batches written before it stay written.
func (u *Upserter) Upsert(ctx context.Context, label string, docs []vector.Document, existing IDSet) (Result, error) {
	pending, skippedExisting, skippedEmpty := Filter(docs, existing)
	result := Result{
		Candidates:      len(docs),
		SkippedExisting: skippedExisting,
		SkippedEmpty:    skippedEmpty,
		Pending:         len(pending),
	}

	logger := log.With().Str("table", label).Logger()

	if len(pending) == 0 {
		logger.Info().
			Int("candidates", result.Candidates).
			Int("skipped_existing", skippedExisting).
			Msg("Nothing to add")
		return result, nil
	}

	if u.DryRun {
		logger.Info().
			Int("candidates", result.Candidates).
			Int("skipped_existing", skippedExisting).
			Int("skipped_empty", skippedEmpty).
			Int("pending", result.Pending).
			Msg("Dry run, would add documents")
		return result, nil
	}

	batchSize := u.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		if err := u.Collection.Add(ctx, batch); err != nil {
			return result, fmt.Errorf("%w: %s documents %d-%d of %d: %w",
				ErrBatchWrite, label, start+1, end, len(pending), err)
		}

		result.Added += len(batch)

		logger.Info().
			Str("progress", fmt.Sprintf("%d/%d", result.Added, len(pending))).
			Msg("Added batch")
	}

	return result, nil
}
