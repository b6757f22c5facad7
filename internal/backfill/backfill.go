package backfill

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/chroma-backfill/internal/vector"
	"github.com/thebtf/chroma-backfill/internal/vector/chroma"
	"github.com/thebtf/chroma-backfill/pkg/models"
)

// Source reads the records to index. It is satisfied by *db.Store.
type Source interface {
	Observations(ctx context.Context, project string) ([]models.Row, error)
	Summaries(ctx context.Context, project string) ([]models.Row, error)
	Prompts(ctx context.Context, project string) ([]models.Row, error)
}

// Options configures a Backfiller.
type Options struct {
	Project   string // empty means every project
	BatchSize int
	PageSize  int
	DryRun    bool
}

// Table labels used in logs and stats.
const (
	TableObservations = "observations"
	TableSummaries    = "summaries"
	TablePrompts      = "prompts"
)

// TableStats holds the outcome for one record kind.
type TableStats struct {
	Table           string
	Rows            int
	Documents       int
	SkippedExisting int
	SkippedEmpty    int
	Pending         int
	Added           int
}

// Stats holds the outcome of a run.
type Stats struct {
	Tables       []TableStats
	Existing     DocTypeSummary
	InitialCount int64
	FinalCount   int64
	DryRun       bool
}

// DocTypeSummary is the per-kind breakdown of ids already in the collection.
type DocTypeSummary = chroma.DocTypeCounts

// TotalAdded returns the number of documents written across all tables.
func (s *Stats) TotalAdded() int {
	total := 0
	for _, t := range s.Tables {
		total += t.Added
	}
	return total
}

// TotalPending returns the number of documents that were missing across all tables.
func (s *Stats) TotalPending() int {
	total := 0
	for _, t := range s.Tables {
		total += t.Pending
	}
	return total
}

// Backfiller runs one backfill pass over a source and a collection.
type Backfiller struct {
	source     Source
	collection vector.Collection
	opts       Options
}

// New creates a Backfiller.
func New(source Source, collection vector.Collection, opts Options) *Backfiller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Backfiller{source: source, collection: collection, opts: opts}
}

type tableJob struct {
	read   func(ctx context.Context, project string) ([]models.Row, error)
	format func(models.Row) []vector.Document
	label  string
}

// Run reads the collection's existing ids, then formats and upserts
// observations, summaries and prompts in that order.
// It stops at the first read or write error; earlier batches stay written.
func (b *Backfiller) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{DryRun: b.opts.DryRun}

	count, err := b.collection.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count collection %s: %w", b.collection.Name(), err)
	}
	stats.InitialCount = count

	existing, err := FetchExistingIDs(ctx, b.collection, count, b.opts.PageSize)
	if err != nil {
		return nil, err
	}
	stats.Existing = chroma.CountByDocType(existing.IDs())

	log.Info().
		Str("collection", b.collection.Name()).
		Int64("count", count).
		Int("observations", stats.Existing.Observations).
		Int("summaries", stats.Existing.Summaries).
		Int("prompts", stats.Existing.Prompts).
		Msg("Loaded existing document ids")

	upserter := &Upserter{
		Collection: b.collection,
		BatchSize:  b.opts.BatchSize,
		DryRun:     b.opts.DryRun,
	}

	jobs := []tableJob{
		{label: TableObservations, read: b.source.Observations, format: chroma.FormatObservationDocs},
		{label: TableSummaries, read: b.source.Summaries, format: chroma.FormatSummaryDocs},
		{label: TablePrompts, read: b.source.Prompts, format: chroma.FormatUserPromptDocs},
	}

	for _, job := range jobs {
		rows, err := job.read(ctx, b.opts.Project)
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", job.label, err)
		}

		var docs []vector.Document
		for _, row := range rows {
			docs = append(docs, job.format(row)...)
		}

		log.Info().
			Str("table", job.label).
			Int("rows", len(rows)).
			Int("documents", len(docs)).
			Msg("Formatted documents")

		result, err := upserter.Upsert(ctx, job.label, docs, existing)
		stats.Tables = append(stats.Tables, TableStats{
			Table:           job.label,
			Rows:            len(rows),
			Documents:       len(docs),
			SkippedExisting: result.SkippedExisting,
			SkippedEmpty:    result.SkippedEmpty,
			Pending:         result.Pending,
			Added:           result.Added,
		})
		if err != nil {
			return stats, err
		}
	}

	stats.FinalCount = stats.InitialCount
	if !b.opts.DryRun {
		final, err := b.collection.Count(ctx)
		if err != nil {
			return stats, fmt.Errorf("count collection %s: %w", b.collection.Name(), err)
		}
		stats.FinalCount = final
	}

	log.Info().
		Int("added", stats.TotalAdded()).
		Int("pending", stats.TotalPending()).
		Int64("final_count", stats.FinalCount).
		Bool("dry_run", b.opts.DryRun).
		Msg("Backfill complete")

	return stats, nil
}
