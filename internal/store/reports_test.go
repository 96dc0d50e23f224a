package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveTestReport(t *testing.T, s *Store, r *Report, items []*ReportItem) {
	t.Helper()
	require.NoError(t, s.WithTx(func(q DBTX) error {
		return s.SaveReport(q, r, items)
	}))
}

func TestReport_SaveWithSnapshots(t *testing.T) {
	s := newTestStore(t)

	report := &Report{
		Kind:        ReportDaily,
		Status:      ReportGenerated,
		PeriodStart: 1000,
		PeriodEnd:   2000,
		Subject:     "[Daily Report] 2026-08-30",
		Recipients:  []string{"a@acme.dev", "b@acme.dev"},
		BodyHTML:    "<html></html>",
	}
	items := []*ReportItem{
		{Category: "required", Project: "acme/api", Title: "fix crash", SourceType: "issue", SourceRef: "https://github.com/acme/api/issues/1"},
		{Category: "in_progress", Project: "acme/web", Title: "wip", SourceType: "commit", SourceRef: "abc12345"},
	}
	saveTestReport(t, s, report, items)
	assert.NotZero(t, report.ID)

	got, err := s.GetReport(s.DB(), report.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ReportDaily, got.Kind)
	assert.Equal(t, []string{"a@acme.dev", "b@acme.dev"}, got.Recipients)
	assert.Equal(t, "<html></html>", got.BodyHTML)

	snapshots, err := s.ListReportItems(s.DB(), report.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, report.ID, snapshots[0].ReportID)
	assert.Equal(t, "acme/api", snapshots[0].Project)

	n, err := s.CountReportItems(s.DB(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReport_SnapshotsImmutableUnderItemMutation(t *testing.T) {
	s := newTestStore(t)

	item := &WorkItem{Repo: "acme/api", IssueNumber: 1, Category: "planned", Status: StatusOpen, Title: "original title"}
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))

	report := &Report{Kind: ReportDaily, Status: ReportGenerated, PeriodStart: 0, PeriodEnd: 1, Subject: "s", Recipients: []string{"a@acme.dev"}}
	saveTestReport(t, s, report, []*ReportItem{
		{Category: item.Category, Project: item.Repo, Title: item.Title, SourceType: "issue"},
	})

	item.Title = "mutated later"
	require.NoError(t, s.WithTx(func(q DBTX) error { return s.SaveWorkItem(q, item) }))

	snapshots, err := s.ListReportItems(s.DB(), report.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "original title", snapshots[0].Title)
}

func TestReport_UpdateDeliveryFieldsOnly(t *testing.T) {
	s := newTestStore(t)

	report := &Report{Kind: ReportWeekly, Status: ReportGenerated, PeriodStart: 0, PeriodEnd: 1, Subject: "s", Recipients: []string{"a@acme.dev"}, BodyHTML: "<p>x</p>"}
	saveTestReport(t, s, report, nil)

	report.Status = ReportFailed
	report.RetryCount = 1
	report.ErrorMessage = "smtp auth failed"
	saveTestReport(t, s, report, nil)

	got, err := s.GetReport(s.DB(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "smtp auth failed", got.ErrorMessage)
	assert.Equal(t, "<p>x</p>", got.BodyHTML, "body is written once at generation")
}

func TestGetReport_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetReport(s.DB(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListReports_FilterAndPaging(t *testing.T) {
	s := newTestStore(t)

	for i, kind := range []ReportKind{ReportDaily, ReportDaily, ReportWeekly} {
		r := &Report{Kind: kind, Status: ReportGenerated, PeriodStart: 0, PeriodEnd: 1, Subject: "s", Recipients: []string{"a@acme.dev"}, GeneratedAt: int64(i + 1)}
		saveTestReport(t, s, r, nil)
	}

	reports, err := s.ListReports(ReportFilter{Kind: ReportDaily})
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	reports, err = s.ListReports(ReportFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	// Newest first.
	assert.Equal(t, ReportWeekly, reports[0].Kind)

	reports, err = s.ListReports(ReportFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestReportStatus_Terminal(t *testing.T) {
	assert.True(t, ReportSent.Terminal())
	assert.True(t, ReportPartiallySent.Terminal())
	assert.False(t, ReportGenerated.Terminal())
	assert.False(t, ReportFailed.Terminal())
}
