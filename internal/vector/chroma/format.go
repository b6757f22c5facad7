package chroma

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/chroma-backfill/internal/vector"
	"github.com/thebtf/chroma-backfill/pkg/models"
)

// FormatObservationDocs formats an observation row into ChromaDB documents.
// Each semantic field becomes a separate vector document (granular approach).
func FormatObservationDocs(row models.Row) []vector.Document {
	id := row.ID()

	baseMetadata := map[string]any{
		"sqlite_id":         id,
		"doc_type":          string(DocTypeObservation),
		"memory_session_id": row.String(models.ColumnMemorySessionID),
		"project":           row.String(models.ColumnProject),
		"created_at_epoch":  row.Number(models.ColumnCreatedAtEpoch),
		"type":              row.StringOr(models.ObsColumnType, string(models.DefaultObservationType)),
		"title":             row.StringOr(models.ObsColumnTitle, models.DefaultObservationTitle),
	}

	if subtitle := row.String(models.ObsColumnSubtitle); subtitle != "" {
		baseMetadata["subtitle"] = subtitle
	}

	// Arrays are stored as comma-separated strings: Chroma metadata is flat.
	for _, column := range []string{models.ObsColumnConcepts, models.ObsColumnFilesRead, models.ObsColumnFilesModified} {
		field := decodeListColumn(row, column)
		if joined, ok := field.Joined(","); ok {
			baseMetadata[column] = joined
		}
	}

	facts := decodeListColumn(row, models.ObsColumnFacts)
	docs := make([]vector.Document, 0, len(facts.Items)+2)

	if narrative := row.String(models.ObsColumnNarrative); narrative != "" {
		docs = append(docs, vector.Document{
			ID:       fmt.Sprintf("obs_%d_narrative", id),
			Content:  narrative,
			Metadata: copyMetadata(baseMetadata, "field_type", "narrative"),
		})
	}

	// Legacy free-text field
	if text := row.String(models.ObsColumnText); text != "" {
		docs = append(docs, vector.Document{
			ID:       fmt.Sprintf("obs_%d_text", id),
			Content:  text,
			Metadata: copyMetadata(baseMetadata, "field_type", "text"),
		})
	}

	for i, fact := range facts.Items {
		if !fact.Truthy {
			continue
		}
		docs = append(docs, vector.Document{
			ID:      fmt.Sprintf("obs_%d_fact_%d", id, i),
			Content: fact.Text,
			Metadata: copyMetadataMulti(baseMetadata, map[string]any{
				"field_type": "fact",
				"fact_index": i,
			}),
		})
	}

	return docs
}

// FormatSummaryDocs formats a session summary row into ChromaDB documents.
func FormatSummaryDocs(row models.Row) []vector.Document {
	id := row.ID()

	baseMetadata := map[string]any{
		"sqlite_id":         id,
		"doc_type":          string(DocTypeSessionSummary),
		"memory_session_id": row.String(models.ColumnMemorySessionID),
		"project":           row.String(models.ColumnProject),
		"created_at_epoch":  row.Number(models.ColumnCreatedAtEpoch),
		"prompt_number":     row.Int64(models.ColumnPromptNumber),
	}

	docs := make([]vector.Document, 0, len(models.SummaryFields))
	for _, field := range models.SummaryFields {
		value := row.String(field)
		if value == "" {
			continue
		}
		docs = append(docs, vector.Document{
			ID:       fmt.Sprintf("summary_%d_%s", id, field),
			Content:  value,
			Metadata: copyMetadata(baseMetadata, "field_type", field),
		})
	}

	return docs
}

// FormatUserPromptDocs formats a user prompt row (joined with its session)
// into at most one ChromaDB document. Blank prompts produce none.
func FormatUserPromptDocs(row models.Row) []vector.Document {
	text := row.String(models.PromptColumnText)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	id := row.ID()
	return []vector.Document{{
		ID:      fmt.Sprintf("prompt_%d", id),
		Content: text,
		Metadata: map[string]any{
			"sqlite_id":         id,
			"doc_type":          string(DocTypeUserPrompt),
			"memory_session_id": row.String(models.ColumnMemorySessionID),
			"project":           row.String(models.ColumnProject),
			"created_at_epoch":  row.Number(models.ColumnCreatedAtEpoch),
			"prompt_number":     row.Int64(models.ColumnPromptNumber),
		},
	}}
}

// decodeListColumn decodes a JSON list column, logging (not failing) on bad data.
func decodeListColumn(row models.Row, column string) models.ListField {
	field := models.DecodeList(row.String(column))
	if field.Status == models.ListMalformed {
		log.Debug().
			Int64("sqliteId", row.ID()).
			Str("column", column).
			Err(field.Err).
			Msg("Skipping malformed list column")
	}
	return field
}
