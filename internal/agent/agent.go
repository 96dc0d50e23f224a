// Package agent implements the incremental scanning agents that feed the
// work-item ledger from the source-control provider.
package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/github"
	"github.com/bluevlad/standup-agent/internal/metrics"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Scan windows. The wide window applies on the first-ever run, when the
// ledger has nothing to anchor an incremental scan on.
const (
	initialScanWindow = 30 * 24 * time.Hour
	recentScanWindow  = 2 * time.Hour
)

// Text limits applied on ingestion.
const (
	maxTitleLen   = 500
	maxSummaryLen = 1000
	maxDetailLen  = 500
)

// Provider is the source-control client surface the agents consume.
type Provider interface {
	ListOrgRepos(ctx context.Context) ([]github.Repo, error)
	ListIssues(ctx context.Context, repo string, since time.Time) ([]github.Issue, error)
	ListRecentCommits(ctx context.Context, repo string, since time.Time) ([]github.Commit, error)
}

// RunResult is the explicit outcome of one agent run. Err is set when an
// unhandled failure interrupted the run; counters cover committed work only.
type RunResult struct {
	Created  int64
	Updated  int64
	Tracked  int64
	Duration time.Duration
	Err      error
}

// Processed returns the total item count for the run log.
func (r RunResult) Processed() int64 {
	return r.Created + r.Updated + r.Tracked
}

// truncate limits s to max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// logRun appends one run-log entry for a finished agent run. Runs after the
// run's transaction committed or rolled back; a logging failure is itself
// only logged, never propagated.
func logRun(s *store.Store, m *metrics.Metrics, logger zerolog.Logger, agentName, action string, result RunResult, detail string) {
	entry := &store.RunLogEntry{
		AgentName:      agentName,
		Action:         action,
		Status:         store.RunSuccess,
		Detail:         detail,
		ItemsProcessed: result.Processed(),
		DurationMS:     result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		entry.Status = store.RunError
		entry.Detail = truncate(result.Err.Error(), maxDetailLen)
	}
	if err := s.AppendRunLog(entry); err != nil {
		logger.Error().Err(err).Str("agent", agentName).Msg("failed to append run log")
	}
	if m != nil {
		m.RecordRun(agentName, entry.Status, result.Processed(), result.Duration)
	}
}

// repoNames returns the active repository names to scan: the configured
// subset when one exists, otherwise everything the provider lists.
func repoNames(ctx context.Context, s *store.Store, provider Provider) ([]string, error) {
	configured, err := s.ListActiveRepositories()
	if err != nil {
		return nil, err
	}
	if len(configured) > 0 {
		names := make([]string, 0, len(configured))
		for _, r := range configured {
			names = append(names, r.Name)
		}
		return names, nil
	}

	repos, err := provider.ListOrgRepos(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	return names, nil
}
