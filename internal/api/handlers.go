package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/agent"
	"github.com/bluevlad/standup-agent/internal/health"
	"github.com/bluevlad/standup-agent/internal/sched"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Runner is a triggerable agent run.
type Runner interface {
	Run(ctx context.Context) agent.RunResult
}

// ReportService covers the report operations exposed by the API.
type ReportService interface {
	GenerateAndSend(ctx context.Context, kind store.ReportKind) (*store.Report, error)
	Resend(ctx context.Context, reportID int64) (*store.Report, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store        *store.Store
	issueScanner Runner
	commitTrack  Runner
	reports      ReportService
	scheduler    *sched.Scheduler
	checker      *health.Checker
	logger       zerolog.Logger
	startTime    time.Time
}

// NewHandlers creates a new Handlers instance. issueScanner and commitTrack
// may be nil when GitHub is not configured.
func NewHandlers(s *store.Store, issueScanner, commitTrack Runner, reports ReportService, scheduler *sched.Scheduler, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:        s,
		issueScanner: issueScanner,
		commitTrack:  commitTrack,
		reports:      reports,
		scheduler:    scheduler,
		checker:      checker,
		logger:       logger.With().Str("component", "handlers").Logger(),
		startTime:    time.Now(),
	}
}

// RunIssueScan handles POST /api/v1/agents/issue-scan/run.
func (h *Handlers) RunIssueScan(c *fiber.Ctx) error {
	return h.runAgent(c, "issue_scanner", h.issueScanner)
}

// RunCommitTrack handles POST /api/v1/agents/commit-track/run.
func (h *Handlers) RunCommitTrack(c *fiber.Ctx) error {
	return h.runAgent(c, "commit_tracker", h.commitTrack)
}

func (h *Handlers) runAgent(c *fiber.Ctx, name string, runner Runner) error {
	if runner == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"provider_disabled", "Service Unavailable",
			"GitHub provider is not configured")
	}

	result := runner.Run(c.Context())

	resp := RunResponse{
		Agent:    name,
		Status:   "success",
		Created:  result.Created,
		Updated:  result.Updated,
		Tracked:  result.Tracked,
		Duration: result.Duration.Round(time.Millisecond).String(),
	}
	if result.Err != nil {
		resp.Status = "error"
		resp.Error = result.Err.Error()
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
	return c.JSON(resp)
}

// RunReport handles POST /api/v1/reports/:kind/run. Generates a report of
// the given kind and runs one delivery attempt.
func (h *Handlers) RunReport(c *fiber.Ctx) error {
	kind := store.ReportKind(c.Params("kind"))
	switch kind {
	case store.ReportDaily, store.ReportWeekly, store.ReportMonthly:
	default:
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_kind", "Bad Request",
			"Report kind must be daily, weekly, or monthly")
	}

	report, err := h.reports.GenerateAndSend(c.Context(), kind)
	if err != nil {
		if report == nil {
			return problemResponse(c, fiber.StatusInternalServerError,
				"generation_failed", "Internal Server Error", err.Error())
		}
		return problemResponse(c, fiber.StatusInternalServerError,
			"delivery_failed", "Internal Server Error", err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(summarize(report))
}

// ResendReport handles POST /api/v1/reports/:id/resend. Reports already sent
// or partially sent are rejected.
func (h *Handlers) ResendReport(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_id", "Bad Request", "Report id must be numeric")
	}

	report, rerr := h.reports.Resend(c.Context(), int64(id))
	if rerr != nil {
		if report == nil {
			return problemResponse(c, fiber.StatusNotFound,
				"report_not_resendable", "Not Found", rerr.Error())
		}
		return problemResponse(c, fiber.StatusInternalServerError,
			"delivery_failed", "Internal Server Error", rerr.Error())
	}
	return c.JSON(summarize(report))
}

// ListReports handles GET /api/v1/reports.
func (h *Handlers) ListReports(c *fiber.Ctx) error {
	f := store.ReportFilter{
		Kind:   store.ReportKind(c.Query("kind")),
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}

	reports, err := h.store.ListReports(f)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	summaries := make([]ReportSummary, 0, len(reports))
	for _, r := range reports {
		summaries = append(summaries, summarize(r))
	}
	return c.JSON(ReportListResponse{Reports: summaries, Limit: f.Limit, Offset: f.Offset})
}

// GetReport handles GET /api/v1/reports/:id.
func (h *Handlers) GetReport(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_id", "Bad Request", "Report id must be numeric")
	}

	report, err := h.store.GetReport(h.store.DB(), int64(id))
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if report == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"report_not_found", "Not Found", "Report not found")
	}

	items, err := h.store.ListReportItems(h.store.DB(), report.ID)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if items == nil {
		items = []*store.ReportItem{}
	}

	return c.JSON(ReportDetailResponse{
		Report: summarize(report),
		Body:   report.BodyHTML,
		Items:  items,
	})
}

// ListWorkItems handles GET /api/v1/work-items.
func (h *Handlers) ListWorkItems(c *fiber.Ctx) error {
	f := store.WorkItemFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Limit:    c.QueryInt("limit", 50),
		Offset:   c.QueryInt("offset", 0),
	}

	items, err := h.store.ListWorkItems(f)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if items == nil {
		items = []*store.WorkItem{}
	}
	return c.JSON(WorkItemListResponse{Items: items, Limit: f.Limit, Offset: f.Offset})
}

// ListRuns handles GET /api/v1/runs, the run ledger's read side.
func (h *Handlers) ListRuns(c *fiber.Ctx) error {
	runs, err := h.store.ListRunLog(c.Query("agent"), c.QueryInt("limit", 50))
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if runs == nil {
		runs = []*store.RunLogEntry{}
	}
	return c.JSON(RunLogResponse{Runs: runs})
}

// ListSchedule handles GET /api/v1/schedule.
func (h *Handlers) ListSchedule(c *fiber.Ctx) error {
	jobs := h.scheduler.Jobs()
	if jobs == nil {
		jobs = []sched.JobInfo{}
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// HealthDetail handles GET /api/v1/health.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())

	integrations := make(map[string]string, len(results))
	overall := "ok"
	for name, status := range results {
		integrations[name] = string(status)
		if status == health.StatusDown {
			overall = "degraded"
		}
	}

	return c.JSON(HealthDetailResponse{
		Status:       overall,
		Integrations: integrations,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
