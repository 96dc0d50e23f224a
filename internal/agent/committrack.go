package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/classify"
	"github.com/bluevlad/standup-agent/internal/metrics"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Issue-reference patterns, in priority order. The first pattern that
// matches wins, at its first occurrence in the message.
var issueRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`(?i)closes?\s+#(\d+)`),
	regexp.MustCompile(`(?i)fixes?\s+#(\d+)`),
	regexp.MustCompile(`(?i)resolves?\s+#(\d+)`),
}

// CommitTracker links recent commits to work items, or records unlinked
// commits as independent in-progress items.
type CommitTracker struct {
	store    *store.Store
	provider Provider
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewCommitTracker creates a CommitTracker.
func NewCommitTracker(s *store.Store, provider Provider, m *metrics.Metrics, logger zerolog.Logger) *CommitTracker {
	return &CommitTracker{
		store:    s,
		provider: provider,
		metrics:  m,
		logger:   logger.With().Str("component", "commit_tracker").Logger(),
	}
}

// Run tracks commits across every active repository once and always ends
// with exactly one run-log entry.
func (a *CommitTracker) Run(ctx context.Context) RunResult {
	start := time.Now()
	result := a.run(ctx)
	result.Duration = time.Since(start)

	if result.Err != nil {
		a.logger.Error().Err(result.Err).Msg("commit tracking failed")
	} else {
		a.logger.Info().
			Int64("tracked", result.Tracked).
			Dur("duration", result.Duration).
			Msg("commit tracking complete")
	}

	detail := fmt.Sprintf("tracked=%d", result.Tracked)
	logRun(a.store, a.metrics, a.logger, "commit_tracker", "track_commits", result, detail)
	return result
}

func (a *CommitTracker) run(ctx context.Context) RunResult {
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
			tracked, err := a.trackRepo(ctx, q, repo, since)
			if err != nil {
				return fmt.Errorf("tracking %s: %w", repo, err)
			}
			result.Tracked += tracked
		}
		return nil
	})
	if err != nil {
		result.Tracked = 0
		result.Err = err
	}
	return result
}

// watermark uses the wide window until any commit-linked item exists.
func (a *CommitTracker) watermark() (time.Time, error) {
	count, err := a.store.CountCommitLinkedWorkItems(a.store.DB())
	if err != nil {
		return time.Time{}, fmt.Errorf("counting commit-linked work items: %w", err)
	}
	if count == 0 {
		return time.Now().Add(-initialScanWindow), nil
	}
	return time.Now().Add(-recentScanWindow), nil
}

// trackRepo evaluates each commit independently: skip known hashes, link
// issue-referencing commits to their items, record the rest as new
// in-progress items.
func (a *CommitTracker) trackRepo(ctx context.Context, q store.DBTX, repo string, since time.Time) (int64, error) {
	commits, err := a.provider.ListRecentCommits(ctx, repo, since)
	if err != nil {
		return 0, err
	}

	var tracked int64
	for _, commit := range commits {
		known, err := a.store.FindWorkItemByCommit(q, repo, commit.Hash)
		if err != nil {
			return 0, err
		}
		if known != nil {
			continue
		}

		if number, ok := ExtractIssueRef(commit.Message); ok {
			item, err := a.store.GetWorkItemByIssue(q, repo, number)
			if err != nil {
				return 0, err
			}
			if item != nil {
				// A fresh commit means the work is active again, even if
				// the item was previously resolved or closed.
				item.Category = string(classify.CategoryInProgress)
				item.Status = store.StatusInProgress
				item.Commits = append(item.Commits, commit.Hash)
				if err := a.store.SaveWorkItem(q, item); err != nil {
					return 0, err
				}
				tracked++
				continue
			}
		}

		item := &store.WorkItem{
			Repo:     repo,
			Category: string(classify.CategoryInProgress),
			Status:   store.StatusInProgress,
			Title:    truncate(firstLine(commit.Message), maxTitleLen),
			Summary:  truncate(commit.Message, maxSummaryLen),
			Commits:  []string{commit.Hash},
		}
		if err := a.store.SaveWorkItem(q, item); err != nil {
			return 0, err
		}
		tracked++
	}

	if tracked > 0 {
		a.logger.Debug().Str("repo", repo).Int64("tracked", tracked).Msg("repo tracked")
	}
	return tracked, nil
}

// ExtractIssueRef pulls an issue number out of a commit message. Returns
// false when the message carries no parseable reference; the caller then
// treats the commit as independent work.
func ExtractIssueRef(message string) (int64, bool) {
	for _, pattern := range issueRefPatterns {
		m := pattern.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		number, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		return number, true
	}
	return 0, false
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}
