package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo TEXT NOT NULL,
		issue_number INTEGER,
		issue_url TEXT,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		title TEXT NOT NULL,
		summary TEXT,
		labels TEXT,
		commits TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		resolved_at INTEGER
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_work_items_issue
		ON work_items(repo, issue_number) WHERE issue_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_work_items_updated ON work_items(updated_at);
	CREATE INDEX IF NOT EXISTS idx_work_items_category ON work_items(category);

	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'generated',
		period_start INTEGER NOT NULL,
		period_end INTEGER NOT NULL,
		subject TEXT NOT NULL,
		recipients TEXT NOT NULL,
		body_html TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		generated_at INTEGER NOT NULL,
		sent_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_reports_kind ON reports(kind);
	CREATE INDEX IF NOT EXISTS idx_reports_generated ON reports(generated_at);

	CREATE TABLE IF NOT EXISTS report_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		project_name TEXT NOT NULL,
		title TEXT NOT NULL,
		detail TEXT,
		source_type TEXT NOT NULL,
		source_ref TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_report_items_report ON report_items(report_id);

	CREATE TABLE IF NOT EXISTS run_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_name TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT,
		items_processed INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		executed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_log_agent ON run_log(agent_name, executed_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}

func (s *Store) migrateV2() error {
	var version string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil || version >= "2" {
		return nil // already at v2+
	}

	schema := `
	CREATE TABLE IF NOT EXISTS app_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		value_type TEXT NOT NULL DEFAULT 'string',
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recipients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		report_kinds TEXT NOT NULL DEFAULT 'all',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}
