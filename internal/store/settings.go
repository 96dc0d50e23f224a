package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Setting is one runtime-configurable key/value pair.
type Setting struct {
	Key         string
	Value       string
	ValueType   string // string, int, bool
	Category    string
	Description string
	UpdatedAt   int64
}

// Recipient is a report email recipient.
type Recipient struct {
	ID          int64
	Name        string
	Email       string
	ReportKinds string // "all" or comma-separated kinds
	IsActive    bool
	CreatedAt   int64
}

// Repository is a tracked source repository.
type Repository struct {
	ID        int64
	Name      string
	FullName  string
	URL       string
	IsActive  bool
	CreatedAt int64
}

// GetSetting returns the stored value for key, or "" and false when absent.
func (s *Store) GetSetting(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// PutSetting inserts or replaces a setting.
func (s *Store) PutSetting(setting *Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if setting.UpdatedAt == 0 {
		setting.UpdatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(`
	INSERT OR REPLACE INTO app_settings (key, value, value_type, category, description, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		setting.Key, setting.Value, setting.ValueType, setting.Category,
		setting.Description, setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put setting %s: %w", setting.Key, err)
	}
	return nil
}

// HasSetting reports whether a key exists without reading its value.
func (s *Store) HasSetting(key string) (bool, error) {
	_, ok, err := s.GetSetting(key)
	return ok, err
}

// ListActiveRecipients returns active recipients in insertion order.
func (s *Store) ListActiveRecipients() ([]*Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, name, email, report_kinds, is_active, created_at
	FROM recipients WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*Recipient
	for rows.Next() {
		r := &Recipient{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.ReportKinds, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}
	return recipients, nil
}

// SaveRecipient inserts a recipient, ignoring duplicates by email.
func (s *Store) SaveRecipient(r *Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	if r.ReportKinds == "" {
		r.ReportKinds = "all"
	}
	res, err := s.db.Exec(`
	INSERT OR IGNORE INTO recipients (name, email, report_kinds, is_active, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		r.Name, r.Email, r.ReportKinds, r.IsActive, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save recipient: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		r.ID = id
	}
	return nil
}

// ListActiveRepositories returns the repositories the agents should scan.
// Empty result means "scan everything the provider lists".
func (s *Store) ListActiveRepositories() ([]*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, name, full_name, url, is_active, created_at
	FROM repositories WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []*Repository
	for rows.Next() {
		r := &Repository{}
		var url sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.FullName, &url, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		if url.Valid {
			r.URL = url.String
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repositories: %w", err)
	}
	return repos, nil
}

// SaveRepository inserts a repository, ignoring duplicates by name.
func (s *Store) SaveRepository(r *Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	url := sql.NullString{String: r.URL, Valid: r.URL != ""}
	res, err := s.db.Exec(`
	INSERT OR IGNORE INTO repositories (name, full_name, url, is_active, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		r.Name, r.FullName, url, r.IsActive, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save repository: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		r.ID = id
	}
	return nil
}
