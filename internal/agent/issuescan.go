package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/classify"
	"github.com/bluevlad/standup-agent/internal/github"
	"github.com/bluevlad/standup-agent/internal/metrics"
	"github.com/bluevlad/standup-agent/internal/store"
)

// IssueScanner pulls issues updated since the watermark and upserts them
// into the work-item ledger.
type IssueScanner struct {
	store    *store.Store
	provider Provider
	rules    *classify.Rules
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewIssueScanner creates an IssueScanner.
func NewIssueScanner(s *store.Store, provider Provider, rules *classify.Rules, m *metrics.Metrics, logger zerolog.Logger) *IssueScanner {
	return &IssueScanner{
		store:    s,
		provider: provider,
		rules:    rules,
		metrics:  m,
		logger:   logger.With().Str("component", "issue_scanner").Logger(),
	}
}

// Run scans every active repository once. All repo scans share one run and
// commit together; the run always ends with exactly one run-log entry.
func (a *IssueScanner) Run(ctx context.Context) RunResult {
	start := time.Now()
	result := a.run(ctx)
	result.Duration = time.Since(start)

	if result.Err != nil {
		a.logger.Error().Err(result.Err).Msg("issue scan failed")
	} else {
		a.logger.Info().
			Int64("created", result.Created).
			Int64("updated", result.Updated).
			Dur("duration", result.Duration).
			Msg("issue scan complete")
	}

	detail := fmt.Sprintf("created=%d updated=%d", result.Created, result.Updated)
	logRun(a.store, a.metrics, a.logger, "issue_scanner", "scan_issues", result, detail)
	return result
}

func (a *IssueScanner) run(ctx context.Context) RunResult {
	var result RunResult

	repos, err := repoNames(ctx, a.store, a.provider)
	if err != nil {
		result.Err = fmt.Errorf("resolving repositories: %w", err)
		return result
	}

	since, err := a.watermark()
	if err != nil {
		result.Err = err
		return result
	}

	err = a.store.WithTx(func(q store.DBTX) error {
		for _, repo := range repos {
			created, updated, err := a.scanRepo(ctx, q, repo, since)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", repo, err)
			}
			result.Created += created
			result.Updated += updated
		}
		return nil
	})
	if err != nil {
		result.Created, result.Updated = 0, 0
		result.Err = err
	}
	return result
}

// watermark returns the scan boundary: a wide window when the ledger is
// empty, a short recent window otherwise.
func (a *IssueScanner) watermark() (time.Time, error) {
	count, err := a.store.CountWorkItems(a.store.DB())
	if err != nil {
		return time.Time{}, fmt.Errorf("counting work items: %w", err)
	}
	if count == 0 {
		return time.Now().Add(-initialScanWindow), nil
	}
	return time.Now().Add(-recentScanWindow), nil
}

func (a *IssueScanner) scanRepo(ctx context.Context, q store.DBTX, repo string, since time.Time) (created, updated int64, err error) {
	issues, err := a.provider.ListIssues(ctx, repo, since)
	if err != nil {
		return 0, 0, err
	}

	for _, issue := range issues {
		existing, err := a.store.GetWorkItemByIssue(q, repo, issue.Number)
		if err != nil {
			return 0, 0, err
		}
		if existing != nil {
			a.refresh(existing, issue)
			if err := a.store.SaveWorkItem(q, existing); err != nil {
				return 0, 0, err
			}
			updated++
			continue
		}
		if err := a.store.SaveWorkItem(q, a.newItem(repo, issue)); err != nil {
			return 0, 0, err
		}
		created++
	}

	if created+updated > 0 {
		a.logger.Debug().Str("repo", repo).Int64("created", created).Int64("updated", updated).Msg("repo scanned")
	}
	return created, updated, nil
}

// refresh overwrites the mutable fields of an existing item from upstream
// and re-derives the category. A closed upstream issue closes the item and
// stamps resolved_at with the upstream closed time, once.
func (a *IssueScanner) refresh(item *store.WorkItem, issue github.Issue) {
	item.Title = truncate(issue.Title, maxTitleLen)
	item.Summary = truncate(issue.Body, maxSummaryLen)
	item.Labels = issue.Labels
	item.Category = string(a.rules.Classify(issue.Labels))
	if issue.State == "closed" && item.Status != store.StatusClosed {
		item.MarkResolved(store.StatusClosed, closedAtMillis(issue))
	}
}

// closedAtMillis falls back to now when upstream omits the closed timestamp.
func closedAtMillis(issue github.Issue) int64 {
	if issue.ClosedAt.IsZero() {
		return time.Now().UnixMilli()
	}
	return issue.ClosedAt.UnixMilli()
}

func (a *IssueScanner) newItem(repo string, issue github.Issue) *store.WorkItem {
	item := &store.WorkItem{
		Repo:        repo,
		IssueNumber: issue.Number,
		IssueURL:    issue.URL,
		Category:    string(a.rules.Classify(issue.Labels)),
		Status:      store.StatusOpen,
		Title:       truncate(issue.Title, maxTitleLen),
		Summary:     truncate(issue.Body, maxSummaryLen),
		Labels:      issue.Labels,
	}
	if issue.State == "closed" {
		item.MarkResolved(store.StatusClosed, closedAtMillis(issue))
	}
	return item
}
