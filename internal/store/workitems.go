package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ItemStatus is the lifecycle state of a work item.
type ItemStatus string

const (
	StatusOpen       ItemStatus = "open"
	StatusInProgress ItemStatus = "in_progress"
	StatusResolved   ItemStatus = "resolved"
	StatusClosed     ItemStatus = "closed"
)

// WorkItem is a tracked unit of work, derived from an issue or a commit.
// Labels and Commits are genuine slices in the domain; they are serialized
// comma-joined only at the storage boundary.
type WorkItem struct {
	ID          int64
	Repo        string
	IssueNumber int64 // 0 = commit-derived item (stored as NULL)
	IssueURL    string
	Category    string // planned, required, in_progress
	Status      ItemStatus
	Title       string
	Summary     string
	Labels      []string
	Commits     []string // short hashes, insertion order
	CreatedAt   int64    // unix ms
	UpdatedAt   int64    // unix ms
	ResolvedAt  int64    // unix ms, 0 = not resolved
}

// HasCommit reports whether hash is already linked to this item.
// Exact element comparison: a hash that is a prefix of another linked
// hash must not count as a match.
func (w *WorkItem) HasCommit(hash string) bool {
	for _, c := range w.Commits {
		if c == hash {
			return true
		}
	}
	return false
}

// MarkResolved sets resolved_at once, on the first transition into a
// terminal status.
func (w *WorkItem) MarkResolved(status ItemStatus, at int64) {
	w.Status = status
	if w.ResolvedAt == 0 {
		w.ResolvedAt = at
	}
}

func joinList(elems []string) string {
	return strings.Join(elems, ",")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DBTX is satisfied by both *sql.DB and *sql.Tx so ledger operations can run
// inside or outside an explicit transaction.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. Rolls back on error, commits on nil.
func (s *Store) WithTx(fn func(q DBTX) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const workItemColumns = `id, repo, issue_number, issue_url, category, status,
	title, summary, labels, commits, created_at, updated_at, resolved_at`

func scanWorkItem(row interface{ Scan(dest ...any) error }) (*WorkItem, error) {
	w := &WorkItem{}
	var issueNumber, resolvedAt sql.NullInt64
	var issueURL, summary, labels, commits sql.NullString

	err := row.Scan(
		&w.ID, &w.Repo, &issueNumber, &issueURL, &w.Category, &w.Status,
		&w.Title, &summary, &labels, &commits,
		&w.CreatedAt, &w.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if issueNumber.Valid {
		w.IssueNumber = issueNumber.Int64
	}
	if issueURL.Valid {
		w.IssueURL = issueURL.String
	}
	if summary.Valid {
		w.Summary = summary.String
	}
	if labels.Valid {
		w.Labels = splitList(labels.String)
	}
	if commits.Valid {
		w.Commits = splitList(commits.String)
	}
	if resolvedAt.Valid {
		w.ResolvedAt = resolvedAt.Int64
	}
	return w, nil
}

// SaveWorkItem inserts a new work item (ID == 0) or updates an existing one.
func (s *Store) SaveWorkItem(q DBTX, w *WorkItem) error {
	now := time.Now().UnixMilli()
	if w.CreatedAt == 0 {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	issueNumber := sql.NullInt64{Int64: w.IssueNumber, Valid: w.IssueNumber != 0}
	issueURL := sql.NullString{String: w.IssueURL, Valid: w.IssueURL != ""}
	summary := sql.NullString{String: w.Summary, Valid: w.Summary != ""}
	labels := sql.NullString{String: joinList(w.Labels), Valid: len(w.Labels) > 0}
	commits := sql.NullString{String: joinList(w.Commits), Valid: len(w.Commits) > 0}
	resolvedAt := sql.NullInt64{Int64: w.ResolvedAt, Valid: w.ResolvedAt != 0}

	if w.ID == 0 {
		res, err := q.Exec(`
		INSERT INTO work_items (
			repo, issue_number, issue_url, category, status, title, summary,
			labels, commits, created_at, updated_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.Repo, issueNumber, issueURL, w.Category, w.Status, w.Title, summary,
			labels, commits, w.CreatedAt, w.UpdatedAt, resolvedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert work item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get work item id: %w", err)
		}
		w.ID = id
		return nil
	}

	_, err := q.Exec(`
	UPDATE work_items SET
		repo = ?, issue_number = ?, issue_url = ?, category = ?, status = ?,
		title = ?, summary = ?, labels = ?, commits = ?, updated_at = ?, resolved_at = ?
	WHERE id = ?`,
		w.Repo, issueNumber, issueURL, w.Category, w.Status,
		w.Title, summary, labels, commits, w.UpdatedAt, resolvedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update work item: %w", err)
	}
	return nil
}

// GetWorkItemByIssue retrieves the item identified by (repo, issue number).
// Returns nil when absent.
func (s *Store) GetWorkItemByIssue(q DBTX, repo string, number int64) (*WorkItem, error) {
	row := q.QueryRow(`SELECT `+workItemColumns+` FROM work_items
		WHERE repo = ? AND issue_number = ?`, repo, number)
	w, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return w, nil
}

// FindWorkItemByCommit returns the first item in repo that links the exact
// commit hash. The LIKE clause is only a prefilter; membership is confirmed
// against the parsed commit list so prefix collisions cannot match.
func (s *Store) FindWorkItemByCommit(q DBTX, repo, hash string) (*WorkItem, error) {
	rows, err := q.Query(`SELECT `+workItemColumns+` FROM work_items
		WHERE repo = ? AND commits LIKE '%' || ? || '%' ORDER BY id`, repo, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items by commit: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		if w.HasCommit(hash) {
			return w, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work items: %w", err)
	}
	return nil, nil
}

// CountWorkItems returns the total number of work items in the ledger.
func (s *Store) CountWorkItems(q DBTX) (int64, error) {
	var n int64
	if err := q.QueryRow(`SELECT COUNT(*) FROM work_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count work items: %w", err)
	}
	return n, nil
}

// CountCommitLinkedWorkItems returns the number of items with at least one
// linked commit.
func (s *Store) CountCommitLinkedWorkItems(q DBTX) (int64, error) {
	var n int64
	err := q.QueryRow(`SELECT COUNT(*) FROM work_items
		WHERE commits IS NOT NULL AND commits != ''`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count commit-linked work items: %w", err)
	}
	return n, nil
}

// ListWorkItemsUpdatedBetween returns items whose updated_at falls inside the
// half-open window [start, end), ordered by category then recency. This is
// the single snapshot query report generation runs once per report.
func (s *Store) ListWorkItemsUpdatedBetween(q DBTX, start, end int64) ([]*WorkItem, error) {
	rows, err := q.Query(`SELECT `+workItemColumns+` FROM work_items
		WHERE updated_at >= ? AND updated_at < ?
		ORDER BY category, updated_at DESC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()
	return collectWorkItems(rows)
}

// WorkItemFilter selects work items for listing.
type WorkItemFilter struct {
	Category string
	Status   string
	Limit    int
	Offset   int
}

// ListWorkItems retrieves items matching the filter, most recent first.
func (s *Store) ListWorkItems(f WorkItemFilter) ([]*WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + workItemColumns + ` FROM work_items`
	var clauses []string
	var args []any
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()
	return collectWorkItems(rows)
}

func collectWorkItems(rows *sql.Rows) ([]*WorkItem, error) {
	var items []*WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work items: %w", err)
	}
	return items, nil
}
