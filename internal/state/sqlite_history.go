package state

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
)

// DefaultHistoryCap bounds the number of unpinned history entries kept.
const DefaultHistoryCap = 500

// AppendHistory records one query execution and prunes the oldest unpinned
// entries beyond the cap. Pinned entries always survive pruning.
func (s *SQLiteStore) AppendHistory(entry core.QueryHistoryEntry) error {
	return s.AppendHistoryCapped(entry, DefaultHistoryCap)
}

// AppendHistoryCapped is AppendHistory with an explicit cap, used by tests.
func (s *SQLiteStore) AppendHistoryCapped(entry core.QueryHistoryEntry, cap int) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	rowCounts, err := json.Marshal(entry.RowCounts)
	if err != nil {
		return fmt.Errorf("failed to encode row counts: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO query_history
			(id, query, connection_id, connection_name, database_name, server,
			 result_set_count, row_counts, executed_at, duration_ms, pinned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.Query, entry.ConnectionID, entry.ConnectionName,
		entry.Database, entry.Server, entry.ResultSetCount, string(rowCounts),
		entry.ExecutedAt.UTC(), entry.DurationMs, entry.Pinned,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM query_history
		WHERE pinned = 0 AND id NOT IN (
			SELECT id FROM query_history
			WHERE pinned = 0
			ORDER BY executed_at DESC
			LIMIT ?
		)
	`, cap)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

// History returns the most recent entries, newest first. A limit of zero or
// less returns everything.
func (s *SQLiteStore) History(limit int) ([]core.QueryHistoryEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	query := `
		SELECT id, query, connection_id, connection_name, database_name, server,
		       result_set_count, row_counts, executed_at, duration_ms, pinned
		FROM query_history
		ORDER BY executed_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []core.QueryHistoryEntry
	for rows.Next() {
		var e core.QueryHistoryEntry
		var rowCounts string
		if err := rows.Scan(
			&e.ID, &e.Query, &e.ConnectionID, &e.ConnectionName, &e.Database,
			&e.Server, &e.ResultSetCount, &rowCounts, &e.ExecutedAt,
			&e.DurationMs, &e.Pinned,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(rowCounts), &e.RowCounts); err != nil {
			return nil, fmt.Errorf("failed to decode row counts: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// SetHistoryPinned toggles the pinned flag on one entry.
func (s *SQLiteStore) SetHistoryPinned(id string, pinned bool) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	res, err := s.db.Exec(`UPDATE query_history SET pinned = ? WHERE id = ?`, pinned, id)
	if err != nil {
		return fmt.Errorf("failed to update history entry %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("history entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// ClearHistory deletes history entries. When keepPinned is true, pinned
// entries are preserved.
func (s *SQLiteStore) ClearHistory(keepPinned bool) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	stmt := `DELETE FROM query_history`
	if keepPinned {
		stmt += ` WHERE pinned = 0`
	}
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
