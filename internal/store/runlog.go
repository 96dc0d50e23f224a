package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run outcomes.
const (
	RunSuccess = "success"
	RunError   = "error"
)

// RunLogEntry is one audit record per agent invocation. Append-only; the
// pipeline never mutates or deletes entries.
type RunLogEntry struct {
	ID             int64
	AgentName      string
	Action         string
	Status         string // success / error
	Detail         string
	ItemsProcessed int64
	DurationMS     int64
	ExecutedAt     int64 // unix ms
}

// AppendRunLog records one agent run. Runs outside any caller transaction so
// an error entry survives a rolled-back unit of work.
func (s *Store) AppendRunLog(e *RunLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ExecutedAt == 0 {
		e.ExecutedAt = time.Now().UnixMilli()
	}
	detail := sql.NullString{String: e.Detail, Valid: e.Detail != ""}

	res, err := s.db.Exec(`
	INSERT INTO run_log (agent_name, action, status, detail, items_processed, duration_ms, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.AgentName, e.Action, e.Status, detail, e.ItemsProcessed, e.DurationMS, e.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run log id: %w", err)
	}
	e.ID = id
	return nil
}

// ListRunLog returns the most recent entries, optionally filtered by agent.
func (s *Store) ListRunLog(agentName string, limit int) ([]*RunLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, agent_name, action, status, detail, items_processed, duration_ms, executed_at
	FROM run_log`
	var args []any
	if agentName != "" {
		query += ` WHERE agent_name = ?`
		args = append(args, agentName)
	}
	query += ` ORDER BY executed_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run log: %w", err)
	}
	defer rows.Close()

	var entries []*RunLogEntry
	for rows.Next() {
		e := &RunLogEntry{}
		var detail sql.NullString
		err := rows.Scan(
			&e.ID, &e.AgentName, &e.Action, &e.Status, &detail,
			&e.ItemsProcessed, &e.DurationMS, &e.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log entry: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run log: %w", err)
	}
	return entries, nil
}
