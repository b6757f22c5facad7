package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/thebtf/chroma-backfill/pkg/models"
)

// queryRows runs a query and scans every row into a column-keyed models.Row.
func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]models.Row, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

// scanRows scans multiple rows without knowing the schema in advance.
func scanRows(rows *sql.Rows) ([]models.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []models.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(models.Row, len(cols))
		for i, col := range cols {
			// Drivers may reuse byte buffers between rows.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// aliasSessionColumn exposes the engram schema's sdk_session_id as memory_session_id.
func aliasSessionColumn(row models.Row) {
	if row.Has(models.ColumnMemorySessionID) {
		return
	}
	if v, ok := row[models.ColumnSDKSessionID]; ok {
		row[models.ColumnMemorySessionID] = v
	}
}

// rebind converts ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
