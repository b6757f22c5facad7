package db

import (
	"context"
	"fmt"

	"github.com/thebtf/chroma-backfill/pkg/models"
)

// Tables read by the backfill. The schema is owned by the memory worker.
const (
	TableObservations = "observations"
	TableSummaries    = "session_summaries"
	TablePrompts      = "user_prompts"
	TableSessions     = "sdk_sessions"
)

// Observations returns all observations ordered by id.
// An empty project returns every project.
func (s *Store) Observations(ctx context.Context, project string) ([]models.Row, error) {
	return s.readTable(ctx, TableObservations, project)
}

// Summaries returns all session summaries ordered by id.
func (s *Store) Summaries(ctx context.Context, project string) ([]models.Row, error) {
	return s.readTable(ctx, TableSummaries, project)
}

// Prompts returns all user prompts joined with their session, ordered by prompt id.
// project and memory_session_id come from the session row, not the prompt.
// Prompts whose session no longer exists are not returned.
func (s *Store) Prompts(ctx context.Context, project string) ([]models.Row, error) {
	promptCols, err := s.columns(ctx, TablePrompts)
	if err != nil {
		return nil, err
	}
	sessionCols, err := s.columns(ctx, TableSessions)
	if err != nil {
		return nil, err
	}

	joinCol := ""
	for _, candidate := range []string{models.PromptColumnContentSessionID, models.PromptColumnClaudeSessionID} {
		if promptCols[candidate] && sessionCols[candidate] {
			joinCol = candidate
			break
		}
	}
	if joinCol == "" {
		return nil, fmt.Errorf("%w: %s has no session join column", ErrStoreRead, TablePrompts)
	}

	sessionIDExpr := "NULL"
	switch {
	case sessionCols[models.ColumnMemorySessionID]:
		sessionIDExpr = "s." + models.ColumnMemorySessionID
	case sessionCols[models.ColumnSDKSessionID]:
		sessionIDExpr = "s." + models.ColumnSDKSessionID
	}

	// #nosec G201 -- identifiers come from fixed column names, not user input
	query := fmt.Sprintf(`
		SELECT up.*, s.project AS project, %s AS memory_session_id
		FROM %s up
		JOIN %s s ON up.%s = s.%s`,
		sessionIDExpr, TablePrompts, TableSessions, joinCol, joinCol)

	var args []any
	if project != "" {
		query += ` WHERE s.project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY up.id`

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrStoreRead, TablePrompts, err)
	}
	return rows, nil
}

// readTable runs SELECT * on one of the fixed tables.
func (s *Store) readTable(ctx context.Context, table, project string) ([]models.Row, error) {
	// #nosec G202 -- table is one of the package constants
	query := `SELECT * FROM ` + table

	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY id`

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrStoreRead, table, err)
	}

	for _, row := range rows {
		aliasSessionColumn(row)
	}
	return rows, nil
}

// columns returns the column names of a table.
func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	// #nosec G202 -- table is one of the package constants
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+table+` LIMIT 0`)
	if err != nil {
		return nil, fmt.Errorf("%w: inspect %s: %v", ErrStoreRead, table, err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: inspect %s: %v", ErrStoreRead, table, err)
	}

	cols := make(map[string]bool, len(names))
	for _, name := range names {
		cols[name] = true
	}
	return cols, nil
}
