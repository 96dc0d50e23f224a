package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluevlad/standup-agent/internal/agent"
	"github.com/bluevlad/standup-agent/internal/health"
	"github.com/bluevlad/standup-agent/internal/sched"
	"github.com/bluevlad/standup-agent/internal/store"
)

type fakeRunner struct {
	result agent.RunResult
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context) agent.RunResult {
	f.calls++
	return f.result
}

type fakeReportService struct {
	report    *store.Report
	err       error
	resendErr error
}

func (f *fakeReportService) GenerateAndSend(ctx context.Context, kind store.ReportKind) (*store.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.report.Kind = kind
	return f.report, nil
}

func (f *fakeReportService) Resend(ctx context.Context, reportID int64) (*store.Report, error) {
	if f.resendErr != nil {
		return nil, f.resendErr
	}
	return f.report, nil
}

type fixture struct {
	app     *fiber.App
	store   *store.Store
	scanner *fakeRunner
	reports *fakeReportService
}

func newFixture(t *testing.T, authMode, apiKey string) *fixture {
	t.Helper()
	logger := zerolog.New(os.Stderr)
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	scanner := &fakeRunner{result: agent.RunResult{Created: 2, Updated: 1, Duration: 50 * time.Millisecond}}
	tracker := &fakeRunner{result: agent.RunResult{Tracked: 3, Duration: 10 * time.Millisecond}}
	reports := &fakeReportService{report: &store.Report{ID: 1, Status: store.ReportSent, Subject: "s", Recipients: []string{"a@acme.dev"}}}

	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status { return health.StatusOK })

	handlers := NewHandlers(s, scanner, tracker, reports, sched.New(zerolog.Nop()), checker, logger)
	server := NewServer(ServerConfig{
		AuthConfig: AuthConfig{Mode: authMode, APIKey: apiKey},
	}, handlers, nil, logger)

	return &fixture{app: server.App(), store: s, scanner: scanner, reports: reports}
}

func doJSON(t *testing.T, app *fiber.App, method, path, key string, out any) int {
	t.Helper()
	req, _ := http.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAuth_APIKey_Valid(t *testing.T) {
	f := newFixture(t, "api-key", "test-secret-key")
	code := doJSON(t, f.app, "GET", "/api/v1/runs", "test-secret-key", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAuth_APIKey_Missing(t *testing.T) {
	f := newFixture(t, "api-key", "test-secret-key")

	req, _ := http.NewRequest("GET", "/api/v1/runs", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var problem ProblemDetail
	json.NewDecoder(resp.Body).Decode(&problem)
	assert.Equal(t, "missing_auth", problem.Type)
}

func TestAuth_APIKey_Invalid(t *testing.T) {
	f := newFixture(t, "api-key", "test-secret-key")
	var problem ProblemDetail
	code := doJSON(t, f.app, "GET", "/api/v1/runs", "wrong-key", &problem)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_api_key", problem.Type)
}

func TestAuth_InvalidScheme(t *testing.T) {
	f := newFixture(t, "api-key", "test-secret-key")

	req, _ := http.NewRequest("GET", "/api/v1/runs", nil)
	req.Header.Set("Authorization", "Basic dGVzdDp0ZXN0")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_ProbeEndpoints_NoAuth(t *testing.T) {
	f := newFixture(t, "api-key", "test-secret-key")

	for _, path := range []string{"/healthz", "/readyz"} {
		req, _ := http.NewRequest("GET", path, nil)
		resp, err := f.app.Test(req, -1)
		require.NoError(t, err, "path: %s", path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "path: %s", path)
	}
}

func TestRunIssueScan(t *testing.T) {
	f := newFixture(t, "none", "")

	var resp RunResponse
	code := doJSON(t, f.app, "POST", "/api/v1/agents/issue-scan/run", "", &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.scanner.calls)
	assert.Equal(t, "issue_scanner", resp.Agent)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int64(2), resp.Created)
	assert.Equal(t, int64(1), resp.Updated)
}

func TestRunIssueScan_RunError(t *testing.T) {
	f := newFixture(t, "none", "")
	f.scanner.result = agent.RunResult{Err: assert.AnError}

	var resp RunResponse
	code := doJSON(t, f.app, "POST", "/api/v1/agents/issue-scan/run", "", &resp)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestRunAgent_ProviderDisabled(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	checker := health.NewChecker(logger)
	handlers := NewHandlers(s, nil, nil, &fakeReportService{}, sched.New(zerolog.Nop()), checker, logger)
	server := NewServer(ServerConfig{AuthConfig: AuthConfig{Mode: "none"}}, handlers, nil, logger)

	var problem ProblemDetail
	code := doJSON(t, server.App(), "POST", "/api/v1/agents/commit-track/run", "", &problem)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "provider_disabled", problem.Type)
}

func TestRunReport_ValidKind(t *testing.T) {
	f := newFixture(t, "none", "")

	var resp ReportSummary
	code := doJSON(t, f.app, "POST", "/api/v1/reports/daily/run", "", &resp)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "daily", resp.Kind)
	assert.Equal(t, "sent", resp.Status)
}

func TestRunReport_InvalidKind(t *testing.T) {
	f := newFixture(t, "none", "")

	var problem ProblemDetail
	code := doJSON(t, f.app, "POST", "/api/v1/reports/hourly/run", "", &problem)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_kind", problem.Type)
}

func TestResendReport_NotResendable(t *testing.T) {
	f := newFixture(t, "none", "")
	f.reports.resendErr = assert.AnError

	var problem ProblemDetail
	code := doJSON(t, f.app, "POST", "/api/v1/reports/9/resend", "", &problem)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "report_not_resendable", problem.Type)
}

func TestListReports_AndGet(t *testing.T) {
	f := newFixture(t, "none", "")

	report := &store.Report{
		Kind:       store.ReportDaily,
		Status:     store.ReportSent,
		Subject:    "[Daily Report] 2026-08-30",
		Recipients: []string{"a@acme.dev"},
		PeriodEnd:  1,
		BodyHTML:   "<p>x</p>",
	}
	require.NoError(t, f.store.WithTx(func(q store.DBTX) error {
		return f.store.SaveReport(q, report, []*store.ReportItem{
			{Category: "required", Project: "acme/api", Title: "fix", SourceType: "issue"},
		})
	}))

	var list ReportListResponse
	code := doJSON(t, f.app, "GET", "/api/v1/reports?kind=daily", "", &list)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "sent", list.Reports[0].Status)

	var detail ReportDetailResponse
	code = doJSON(t, f.app, "GET", "/api/v1/reports/1", "", &detail)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<p>x</p>", detail.Body)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "acme/api", detail.Items[0].Project)
}

func TestGetReport_NotFound(t *testing.T) {
	f := newFixture(t, "none", "")

	var problem ProblemDetail
	code := doJSON(t, f.app, "GET", "/api/v1/reports/404", "", &problem)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "report_not_found", problem.Type)
}

func TestListWorkItems(t *testing.T) {
	f := newFixture(t, "none", "")

	item := &store.WorkItem{Repo: "acme/api", IssueNumber: 1, Category: "required", Status: store.StatusOpen, Title: "fix"}
	require.NoError(t, f.store.WithTx(func(q store.DBTX) error {
		return f.store.SaveWorkItem(q, item)
	}))

	var resp WorkItemListResponse
	code := doJSON(t, f.app, "GET", "/api/v1/work-items?category=required", "", &resp)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "acme/api", resp.Items[0].Repo)

	code = doJSON(t, f.app, "GET", "/api/v1/work-items?category=planned", "", &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Items)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t, "none", "")

	require.NoError(t, f.store.AppendRunLog(&store.RunLogEntry{
		AgentName: "issue_scanner", Action: "scan_issues", Status: store.RunSuccess,
	}))

	var resp RunLogResponse
	code := doJSON(t, f.app, "GET", "/api/v1/runs?agent=issue_scanner", "", &resp)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "scan_issues", resp.Runs[0].Action)
}

func TestHealthDetailAndReadiness(t *testing.T) {
	f := newFixture(t, "none", "")

	var detail HealthDetailResponse
	code := doJSON(t, f.app, "GET", "/api/v1/health", "", &detail)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", detail.Status)
	assert.Equal(t, "ok", detail.Integrations["store"])

	code = doJSON(t, f.app, "GET", "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestListSchedule_Empty(t *testing.T) {
	f := newFixture(t, "none", "")

	code := doJSON(t, f.app, "GET", "/api/v1/schedule", "", nil)
	assert.Equal(t, http.StatusOK, code)
}
