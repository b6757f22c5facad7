// Package models contains domain models for chroma-backfill.
package models

import (
	"strconv"
	"strings"
)

// Row is a single record read from the memory store, keyed by column name.
// The schema is owned by the primary application, so rows are kept generic:
// columns that an older schema lacks simply read as zero values.
type Row map[string]any

// Has reports whether the column was present in the result set.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// String returns the column as a string.
// Missing columns and NULL values return "".
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Int64 returns the column as an int64.
// Missing columns, NULL values and unparseable text return 0.
func (r Row) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Number returns the column as a metadata number. REAL values are passed
// through as float64; everything else reads as Int64 would.
func (r Row) Number(column string) any {
	if v, ok := r[column].(float64); ok {
		return v
	}
	return r.Int64(column)
}

// StringOr returns the column as a string, or def when it is empty.
func (r Row) StringOr(column, def string) string {
	if s := r.String(column); s != "" {
		return s
	}
	return def
}

// ID returns the primary key of the row.
func (r Row) ID() int64 {
	return r.Int64(ColumnID)
}

// Column names shared by all record kinds.
const (
	ColumnID              = "id"
	ColumnProject         = "project"
	ColumnMemorySessionID = "memory_session_id"
	ColumnCreatedAtEpoch  = "created_at_epoch"
	ColumnPromptNumber    = "prompt_number"

	// Legacy session column used by the engram schema.
	ColumnSDKSessionID = "sdk_session_id"
)
