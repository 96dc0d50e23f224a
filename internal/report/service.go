package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/metrics"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Service ties generation and delivery together. Scheduled report jobs and
// the trigger API both go through it, so every run leaves one ledger entry.
type Service struct {
	store     *store.Store
	generator *Generator
	deliverer *Deliverer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewService creates a Service.
func NewService(s *store.Store, g *Generator, d *Deliverer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:     s,
		generator: g,
		deliverer: d,
		metrics:   m,
		logger:    logger.With().Str("component", "report_service").Logger(),
	}
}

// GenerateAndSend builds one report of the given kind and immediately runs a
// delivery attempt. One run-log entry is appended covering the whole run.
func (s *Service) GenerateAndSend(ctx context.Context, kind store.ReportKind) (*store.Report, error) {
	started := time.Now()

	report, err := s.generator.Generate(kind)
	if err != nil {
		s.logRun(kind, started, nil, err)
		return nil, err
	}

	status, err := s.deliverer.Deliver(ctx, report)
	if err != nil {
		s.logRun(kind, started, report, err)
		return report, err
	}

	s.logRun(kind, started, report, nil)
	s.logger.Info().
		Str("kind", string(kind)).
		Int64("report_id", report.ID).
		Str("status", string(status)).
		Msg("report run finished")
	return report, nil
}

// Resend re-attempts delivery of an existing report. Reports already sent or
// partially sent stay untouched.
func (s *Service) Resend(ctx context.Context, reportID int64) (*store.Report, error) {
	report, err := s.store.GetReport(s.store.DB(), reportID)
	if err != nil {
		return nil, fmt.Errorf("loading report %d: %w", reportID, err)
	}
	if report == nil {
		return nil, fmt.Errorf("report %d not found", reportID)
	}
	if report.Status.Terminal() {
		return nil, fmt.Errorf("report %d already %s", reportID, report.Status)
	}

	if _, err := s.deliverer.Deliver(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) logRun(kind store.ReportKind, started time.Time, report *store.Report, runErr error) {
	duration := time.Since(started)
	entry := &store.RunLogEntry{
		AgentName:  "report_agent",
		Action:     fmt.Sprintf("send_%s_report", kind),
		Status:     store.RunSuccess,
		DurationMS: duration.Milliseconds(),
	}
	if report != nil {
		entry.ItemsProcessed = 1
		entry.Detail = fmt.Sprintf("report=%d status=%s recipients=%d",
			report.ID, report.Status, len(report.Recipients))
	}
	if runErr != nil {
		entry.Status = store.RunError
		entry.Detail = runErr.Error()
	}
	if err := s.store.AppendRunLog(entry); err != nil {
		s.logger.Error().Err(err).Msg("failed to append report run log")
	}
	if s.metrics != nil {
		s.metrics.RecordRun("report_agent", string(entry.Status), entry.ItemsProcessed, duration)
	}
}
