package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReportKind is the digest period of a report.
type ReportKind string

const (
	ReportDaily   ReportKind = "daily"
	ReportWeekly  ReportKind = "weekly"
	ReportMonthly ReportKind = "monthly"
)

// ReportStatus is the delivery state of a report. Transitions are monotonic
// along generated → {sent | partially_sent | failed}; failed → failed is
// allowed on re-attempt, sent and partially_sent are terminal.
type ReportStatus string

const (
	ReportGenerated     ReportStatus = "generated"
	ReportSent          ReportStatus = "sent"
	ReportPartiallySent ReportStatus = "partially_sent"
	ReportFailed        ReportStatus = "failed"
)

// Terminal reports whether a report in this status must never be re-sent.
func (s ReportStatus) Terminal() bool {
	return s == ReportSent || s == ReportPartiallySent
}

// Report is a generated, time-boxed digest of work items.
type Report struct {
	ID           int64
	Kind         ReportKind
	Status       ReportStatus
	PeriodStart  int64 // unix ms, inclusive
	PeriodEnd    int64 // unix ms, exclusive
	Subject      string
	Recipients   []string // resolved at generation time
	BodyHTML     string
	RetryCount   int
	ErrorMessage string
	GeneratedAt  int64 // unix ms
	SentAt       int64 // unix ms, 0 = not sent
}

// ReportItem is an immutable snapshot of a work item included in a report,
// decoupled from later work-item mutation.
type ReportItem struct {
	ID         int64
	ReportID   int64
	Category   string
	Project    string
	Title      string
	Detail     string
	SourceType string // "issue" or "commit"
	SourceRef  string
}

// SaveReport inserts a new report (ID == 0) together with its item snapshots,
// or updates the delivery fields of an existing one.
func (s *Store) SaveReport(q DBTX, r *Report, items []*ReportItem) error {
	if r.GeneratedAt == 0 {
		r.GeneratedAt = time.Now().UnixMilli()
	}

	body := sql.NullString{String: r.BodyHTML, Valid: r.BodyHTML != ""}
	errMsg := sql.NullString{String: r.ErrorMessage, Valid: r.ErrorMessage != ""}
	sentAt := sql.NullInt64{Int64: r.SentAt, Valid: r.SentAt != 0}

	if r.ID == 0 {
		res, err := q.Exec(`
		INSERT INTO reports (
			kind, status, period_start, period_end, subject, recipients,
			body_html, retry_count, error_message, generated_at, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Kind, r.Status, r.PeriodStart, r.PeriodEnd, r.Subject,
			joinList(r.Recipients), body, r.RetryCount, errMsg, r.GeneratedAt, sentAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get report id: %w", err)
		}
		r.ID = id

		for _, item := range items {
			item.ReportID = id
			if err := insertReportItem(q, item); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := q.Exec(`
	UPDATE reports SET
		status = ?, retry_count = ?, error_message = ?, sent_at = ?
	WHERE id = ?`,
		r.Status, r.RetryCount, errMsg, sentAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return nil
}

func insertReportItem(q DBTX, item *ReportItem) error {
	detail := sql.NullString{String: item.Detail, Valid: item.Detail != ""}
	sourceRef := sql.NullString{String: item.SourceRef, Valid: item.SourceRef != ""}

	res, err := q.Exec(`
	INSERT INTO report_items (
		report_id, category, project_name, title, detail, source_type, source_ref
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ReportID, item.Category, item.Project, item.Title,
		detail, item.SourceType, sourceRef,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get report item id: %w", err)
	}
	item.ID = id
	return nil
}

const reportColumns = `id, kind, status, period_start, period_end, subject,
	recipients, body_html, retry_count, error_message, generated_at, sent_at`

func scanReport(row interface{ Scan(dest ...any) error }) (*Report, error) {
	r := &Report{}
	var recipients string
	var body, errMsg sql.NullString
	var sentAt sql.NullInt64

	err := row.Scan(
		&r.ID, &r.Kind, &r.Status, &r.PeriodStart, &r.PeriodEnd, &r.Subject,
		&recipients, &body, &r.RetryCount, &errMsg, &r.GeneratedAt, &sentAt,
	)
	if err != nil {
		return nil, err
	}

	r.Recipients = splitList(recipients)
	if body.Valid {
		r.BodyHTML = body.String
	}
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	if sentAt.Valid {
		r.SentAt = sentAt.Int64
	}
	return r, nil
}

// GetReport retrieves a report by ID. Returns nil when absent.
func (s *Store) GetReport(q DBTX, id int64) (*Report, error) {
	row := q.QueryRow(`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return r, nil
}

// ReportFilter selects reports for listing.
type ReportFilter struct {
	Kind   ReportKind
	Limit  int
	Offset int
}

// ListReports retrieves reports matching the filter, newest first.
func (s *Store) ListReports(f ReportFilter) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if f.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, f.Kind)
	}
	query += ` ORDER BY generated_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// ListReportItems returns the snapshots belonging to a report.
func (s *Store) ListReportItems(q DBTX, reportID int64) ([]*ReportItem, error) {
	rows, err := q.Query(`
	SELECT id, report_id, category, project_name, title, detail, source_type, source_ref
	FROM report_items WHERE report_id = ? ORDER BY id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report items: %w", err)
	}
	defer rows.Close()

	var items []*ReportItem
	for rows.Next() {
		item := &ReportItem{}
		var detail, sourceRef sql.NullString
		err := rows.Scan(
			&item.ID, &item.ReportID, &item.Category, &item.Project,
			&item.Title, &detail, &item.SourceType, &sourceRef,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report item: %w", err)
		}
		if detail.Valid {
			item.Detail = detail.String
		}
		if sourceRef.Valid {
			item.SourceRef = sourceRef.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report items: %w", err)
	}
	return items, nil
}

// CountReportItems returns the number of snapshots in a report.
func (s *Store) CountReportItems(q DBTX, reportID int64) (int64, error) {
	var n int64
	err := q.QueryRow(`SELECT COUNT(*) FROM report_items WHERE report_id = ?`, reportID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count report items: %w", err)
	}
	return n, nil
}
