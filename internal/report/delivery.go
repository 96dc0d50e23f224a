package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/mailer"
	"github.com/bluevlad/standup-agent/internal/metrics"
	"github.com/bluevlad/standup-agent/internal/settings"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Backoff schedule for full-failure retries. The delay is indexed by
// min(retryCount-1, len-1), so it never grows past the last step.
var retryBackoff = []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute}

// Sender is the mail collaborator surface: attempt every recipient
// independently, never short-circuit.
type Sender interface {
	SendBatch(ctx context.Context, recipients []string, subject, htmlBody string) []mailer.SendResult
}

// SenderFactory builds a Sender from delivery-time mail configuration.
type SenderFactory func(cfg settings.MailConfig) Sender

// Delayer schedules a uniquely identified one-shot task. The delivery
// engine reaches the scheduler only through this port.
type Delayer interface {
	After(id string, delay time.Duration, fn func())
}

// Deliverer drives the report delivery state machine:
// generated → sent | partially_sent | failed, with failed → failed
// re-attempts until the retry budget runs out. sent and partially_sent are
// terminal.
type Deliverer struct {
	store    *store.Store
	settings *settings.Resolver
	sender   SenderFactory
	delayer  Delayer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewDeliverer creates a Deliverer.
func NewDeliverer(s *store.Store, resolver *settings.Resolver, sender SenderFactory, delayer Delayer, m *metrics.Metrics, logger zerolog.Logger) *Deliverer {
	return &Deliverer{
		store:    s,
		settings: resolver,
		sender:   sender,
		delayer:  delayer,
		metrics:  m,
		logger:   logger.With().Str("component", "deliverer").Logger(),
	}
}

// Deliver runs one delivery attempt against the report. The resulting state
// is committed regardless of outcome; a full failure schedules a backoff
// retry while the budget lasts. Returns the post-attempt status.
func (d *Deliverer) Deliver(ctx context.Context, report *store.Report) (store.ReportStatus, error) {
	switch {
	case len(report.Recipients) == 0:
		// Configuration error, not transient. No retry.
		report.Status = store.ReportFailed
		report.ErrorMessage = "no recipients configured"
	default:
		cfg := d.settings.Mail()
		if !cfg.Usable() {
			report.Status = store.ReportFailed
			report.ErrorMessage = "mail sender not configured"
			break
		}
		d.attempt(ctx, report, cfg)
	}

	if err := d.store.WithTx(func(q store.DBTX) error {
		return d.store.SaveReport(q, report, nil)
	}); err != nil {
		return report.Status, fmt.Errorf("saving delivery outcome: %w", err)
	}

	if d.metrics != nil {
		d.metrics.RecordDelivery(string(report.Kind), string(report.Status))
	}
	return report.Status, nil
}

// attempt sends to every recipient and folds the per-recipient results into
// the tri-state outcome.
func (d *Deliverer) attempt(ctx context.Context, report *store.Report, cfg settings.MailConfig) {
	results := d.sender(cfg).SendBatch(ctx, report.Recipients, report.Subject, report.BodyHTML)

	successes := 0
	var failed []mailer.SendResult
	for _, r := range results {
		if r.Success {
			successes++
		} else {
			failed = append(failed, r)
		}
	}
	total := len(report.Recipients)

	switch {
	case successes == total:
		report.Status = store.ReportSent
		report.SentAt = time.Now().UnixMilli()
		report.ErrorMessage = ""
		d.logger.Info().Int64("report_id", report.ID).Msg("report sent")

	case successes > 0:
		// Partial success is terminal: retrying would re-deliver to the
		// recipients that already got the report.
		report.Status = store.ReportPartiallySent
		report.SentAt = time.Now().UnixMilli()
		names := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, f.Recipient)
		}
		report.ErrorMessage = fmt.Sprintf("delivered %d/%d, failed: %s",
			successes, total, strings.Join(names, ", "))
		d.logger.Warn().
			Int64("report_id", report.ID).
			Int("successes", successes).
			Int("total", total).
			Msg("report partially sent")

	default:
		report.Status = store.ReportFailed
		report.RetryCount++
		report.ErrorMessage = "send failed"
		if len(failed) > 0 && failed[0].Error != "" {
			report.ErrorMessage = failed[0].Error
		}
		d.logger.Error().
			Int64("report_id", report.ID).
			Int("retry_count", report.RetryCount).
			Str("error", report.ErrorMessage).
			Msg("report delivery failed")
		d.scheduleRetry(report)
	}
}

// scheduleRetry queues a one-shot re-attempt unless the budget is exhausted.
func (d *Deliverer) scheduleRetry(report *store.Report) {
	maxRetries := d.settings.MaxDeliveryRetries()
	if report.RetryCount >= maxRetries {
		d.logger.Error().
			Int64("report_id", report.ID).
			Int("retry_count", report.RetryCount).
			Msg("retry budget exhausted, report stays failed")
		return
	}

	idx := report.RetryCount - 1
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	delay := retryBackoff[idx]

	reportID := report.ID
	jobID := fmt.Sprintf("report-%d-retry-%d", reportID, report.RetryCount)
	d.delayer.After(jobID, delay, func() {
		d.fireRetry(reportID)
	})

	if d.metrics != nil {
		d.metrics.RecordRetry()
	}
	d.logger.Info().
		Int64("report_id", reportID).
		Dur("delay", delay).
		Str("job_id", jobID).
		Msg("delivery retry scheduled")
}

// fireRetry is the deferred re-attempt. The terminal check happens here, at
// fire time; a report that was re-sent manually in the meantime is left
// alone.
func (d *Deliverer) fireRetry(reportID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := d.store.GetReport(d.store.DB(), reportID)
	if err != nil {
		d.logger.Error().Err(err).Int64("report_id", reportID).Msg("retry: failed to load report")
		return
	}
	if report == nil || report.Status.Terminal() {
		d.logger.Debug().Int64("report_id", reportID).Msg("retry: report gone or terminal, skipping")
		return
	}

	status, err := d.Deliver(ctx, report)
	d.logRetry(reportID, retryOutcome{status: status, err: err})
}

// retryOutcome captures a retry result for the run ledger.
type retryOutcome struct {
	status store.ReportStatus
	err    error
}

func (d *Deliverer) logRetry(reportID int64, result retryOutcome) {
	entry := &store.RunLogEntry{
		AgentName: "delivery_retry",
		Action:    "retry_delivery",
		Status:    store.RunSuccess,
		Detail:    fmt.Sprintf("report=%d status=%s", reportID, result.status),
	}
	if result.err != nil {
		entry.Status = store.RunError
		entry.Detail = fmt.Sprintf("report=%d: %s", reportID, result.err)
	}
	if err := d.store.AppendRunLog(entry); err != nil {
		d.logger.Error().Err(err).Msg("failed to append retry run log")
	}
}
