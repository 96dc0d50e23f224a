package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stderr)
	s, err := New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	tables := []string{
		"work_items", "reports", "report_items", "run_log",
		"app_settings", "recipients", "repositories", "meta",
	}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	var version string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key='schema_version'").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestNew_MigrationIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stderr)

	s, err := New(dbPath, logger)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Re-opening the same file must not re-run migrations.
	s, err = New(dbPath, logger)
	require.NoError(t, err)
	defer s.Close()
}

func TestWorkItem_SaveAndGetByIssue(t *testing.T) {
	s := newTestStore(t)

	item := &WorkItem{
		Repo:        "acme/api",
		IssueNumber: 42,
		IssueURL:    "https://github.com/acme/api/issues/42",
		Category:    "required",
		Status:      StatusOpen,
		Title:       "API returns 500 on empty body",
		Labels:      []string{"bug", "api"},
	}
	err := s.WithTx(func(q DBTX) error {
		return s.SaveWorkItem(q, item)
	})
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.NotZero(t, item.CreatedAt)

	got, err := s.GetWorkItemByIssue(s.DB(), "acme/api", 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "required", got.Category)
	assert.Equal(t, []string{"bug", "api"}, got.Labels)
	assert.Zero(t, got.ResolvedAt)
}

func TestWorkItem_GetByIssue_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetWorkItemByIssue(s.DB(), "acme/api", 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWorkItem_Update(t *testing.T) {
	s := newTestStore(t)

	item := &WorkItem{
		Repo:        "acme/api",
		IssueNumber: 7,
		Category:    "planned",
		Status:      StatusOpen,
		Title:       "old title",
	}
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))
	firstID := item.ID

	item.Title = "new title"
	item.Status = StatusClosed
	item.MarkResolved(StatusClosed, 1700000000000)
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))

	got, err := s.GetWorkItemByIssue(s.DB(), "acme/api", 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, firstID, got.ID)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, StatusClosed, got.Status)
	assert.Equal(t, int64(1700000000000), got.ResolvedAt)
}

func TestWorkItem_UniqueIssuePerRepo(t *testing.T) {
	s := newTestStore(t)

	a := &WorkItem{Repo: "acme/api", IssueNumber: 1, Category: "planned", Status: StatusOpen, Title: "a"}
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, a) }))

	dup := &WorkItem{Repo: "acme/api", IssueNumber: 1, Category: "planned", Status: StatusOpen, Title: "dup"}
	err := s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, dup) })
	assert.Error(t, err)

	// Commit-derived items (no issue number) are not constrained.
	c1 := &WorkItem{Repo: "acme/api", Category: "in_progress", Status: StatusInProgress, Title: "c1", Commits: []string{"abc12345"}}
	c2 := &WorkItem{Repo: "acme/api", Category: "in_progress", Status: StatusInProgress, Title: "c2", Commits: []string{"def67890"}}
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, c1) }))
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, c2) }))
}

func TestFindWorkItemByCommit_ExactMatchOnly(t *testing.T) {
	s := newTestStore(t)

	item := &WorkItem{
		Repo:     "acme/api",
		Category: "in_progress",
		Status:   StatusInProgress,
		Title:    "tracked commit",
		Commits:  []string{"abc12345ff"},
	}
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))

	got, err := s.FindWorkItemByCommit(s.DB(), "acme/api", "abc12345ff")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)

	// A prefix of a linked hash must not match even though LIKE would hit.
	got, err = s.FindWorkItemByCommit(s.DB(), "acme/api", "abc12345")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Different repo, no match.
	got, err = s.FindWorkItemByCommit(s.DB(), "acme/web", "abc12345ff")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWorkItem_Counts(t *testing.T) {
	s := newTestStore(t)

	n, err := s.CountWorkItems(s.DB())
	require.NoError(t, err)
	assert.Zero(t, n)

	issue := &WorkItem{Repo: "acme/api", IssueNumber: 3, Category: "planned", Status: StatusOpen, Title: "i"}
	commit := &WorkItem{Repo: "acme/api", Category: "in_progress", Status: StatusInProgress, Title: "c", Commits: []string{"aaaa1111"}}
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, issue) }))
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, commit) }))

	n, err = s.CountWorkItems(s.DB())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountCommitLinkedWorkItems(s.DB())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListWorkItemsUpdatedBetween_HalfOpenWindow(t *testing.T) {
	s := newTestStore(t)

	mk := func(n int64) *WorkItem {
		item := &WorkItem{Repo: "acme/api", IssueNumber: n, Category: "planned", Status: StatusOpen, Title: "t"}
		require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))
		return item
	}
	inside := mk(1)
	before := mk(2)
	atEnd := mk(3)

	// Pin updated_at directly to probe the window edges.
	set := func(id, ts int64) {
		_, err := s.DB().Exec("UPDATE work_items SET updated_at = ? WHERE id = ?", ts, id)
		require.NoError(t, err)
	}
	set(inside.ID, 1000)
	set(before.ID, 999)
	set(atEnd.ID, 2000)

	items, err := s.ListWorkItemsUpdatedBetween(s.DB(), 1000, 2000)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, inside.ID, items[0].ID)
}

func TestListWorkItems_Filtered(t *testing.T) {
	s := newTestStore(t)

	for i, cat := range []string{"planned", "required", "required"} {
		item := &WorkItem{Repo: "acme/api", IssueNumber: int64(i + 1), Category: cat, Status: StatusOpen, Title: "t"}
		require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))
	}

	items, err := s.ListWorkItems(WorkItemFilter{Category: "required"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.ListWorkItems(WorkItemFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := newTestStore(t)

	item := &WorkItem{Repo: "acme/api", IssueNumber: 5, Category: "planned", Status: StatusOpen, Title: "t"}
	err := s.WithTx(func(q DBTX) error {
		if err := s.SaveWorkItem(q, item); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	got, err := s.GetWorkItemByIssue(s.DB(), "acme/api", 5)
	require.NoError(t, err)
	assert.Nil(t, got, "rolled-back insert must not be visible")
}

func TestHasCommit_PrefixSafe(t *testing.T) {
	w := &WorkItem{Commits: []string{"abcd1234"}}
	assert.True(t, w.HasCommit("abcd1234"))
	assert.False(t, w.HasCommit("abcd"))
	assert.False(t, w.HasCommit("abcd12345"))
}

func TestMarkResolved_SetsTimestampOnce(t *testing.T) {
	w := &WorkItem{Status: StatusOpen}
	w.MarkResolved(StatusClosed, 100)
	assert.Equal(t, int64(100), w.ResolvedAt)

	w.MarkResolved(StatusResolved, 200)
	assert.Equal(t, StatusResolved, w.Status)
	assert.Equal(t, int64(100), w.ResolvedAt, "resolved_at is set on first transition only")
}
