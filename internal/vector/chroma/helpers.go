// Package chroma provides ChromaDB integration for chroma-backfill.
package chroma

import (
	"regexp"
	"strings"
)

// DocType represents the type of document stored in ChromaDB.
type DocType string

const (
	DocTypeObservation    DocType = "observation"
	DocTypeSessionSummary DocType = "session_summary"
	DocTypeUserPrompt     DocType = "user_prompt"
)

// Document id prefixes, one per DocType.
const (
	observationIDPrefix = "obs_"
	summaryIDPrefix     = "summary_"
	promptIDPrefix      = "prompt_"
)

// DefaultCollection is the collection the memory worker writes to when no
// project-specific collection is used.
const DefaultCollection = "cm__claude-mem"

var (
	invalidCollectionChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	trailingNonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9]+$`)
)

// CollectionName returns the collection name the memory worker uses for a project.
// Chroma names allow [a-zA-Z0-9._-] and must end with an alphanumeric character.
func CollectionName(project string) string {
	sanitized := invalidCollectionChars.ReplaceAllString(project, "_")
	sanitized = trailingNonAlnum.ReplaceAllString(sanitized, "")
	if sanitized == "" {
		sanitized = "unknown"
	}
	return "cm__" + sanitized
}

// DocTypeCounts holds document ids grouped by document type.
type DocTypeCounts struct {
	Observations int
	Summaries    int
	Prompts      int
	Other        int
}

// CountByDocType groups document ids by the document type encoded in their prefix.
func CountByDocType(ids []string) DocTypeCounts {
	var counts DocTypeCounts
	for _, id := range ids {
		switch {
		case strings.HasPrefix(id, observationIDPrefix):
			counts.Observations++
		case strings.HasPrefix(id, summaryIDPrefix):
			counts.Summaries++
		case strings.HasPrefix(id, promptIDPrefix):
			counts.Prompts++
		default:
			counts.Other++
		}
	}
	return counts
}

// Helper functions

func copyMetadata(base map[string]any, key string, value any) map[string]any {
	result := make(map[string]any, len(base)+1)
	for k, v := range base {
		result[k] = v
	}
	result[key] = value
	return result
}

func copyMetadataMulti(base map[string]any, extra map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}
