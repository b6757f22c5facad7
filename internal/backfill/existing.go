// Package backfill copies memory store records into a Chroma collection.
package backfill

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/chroma-backfill/internal/vector"
)

// DefaultPageSize is the number of ids requested per page when reading the collection.
const DefaultPageSize = 10000

// IDSet is the set of document ids already present in the collection.
type IDSet map[string]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Len returns the number of ids in the set.
func (s IDSet) Len() int {
	return len(s)
}

// IDs returns the ids in no particular order.
func (s IDSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// FetchExistingIDs reads every id in the collection, pageSize at a time.
// count is the collection size read beforehand; paging stops at the first
// short page or once offset reaches count.
func FetchExistingIDs(ctx context.Context, coll vector.Collection, count int64, pageSize int) (IDSet, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	existing := make(IDSet, count)
	if count <= 0 {
		return existing, nil
	}

	for offset := 0; int64(offset) < count; offset += pageSize {
		ids, err := coll.GetIDs(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch existing ids at offset %d: %w", offset, err)
		}
		for _, id := range ids {
			existing.Add(id)
		}

		log.Debug().
			Int("offset", offset).
			Int("page", len(ids)).
			Int("total", existing.Len()).
			Msg("Fetched existing ids")

		if len(ids) < pageSize {
			break
		}
	}

	return existing, nil
}
