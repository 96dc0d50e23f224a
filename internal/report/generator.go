package report

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/settings"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Generator aggregates the work-item window into a persisted report with an
// immutable item snapshot and the recipient list resolved at generation time.
type Generator struct {
	store    *store.Store
	settings *settings.Resolver
	logger   zerolog.Logger
	now      func() time.Time // swapped in tests
}

// NewGenerator creates a Generator.
func NewGenerator(s *store.Store, resolver *settings.Resolver, logger zerolog.Logger) *Generator {
	return &Generator{
		store:    s,
		settings: resolver,
		logger:   logger.With().Str("component", "report_generator").Logger(),
		now:      time.Now,
	}
}

// Generate builds and persists one report of the given kind in `generated`
// status. The work-item window is read in a single snapshot query inside the
// same transaction that persists the report.
func (g *Generator) Generate(kind store.ReportKind) (*store.Report, error) {
	now := g.now()
	start, end := PeriodWindow(kind, now)

	maxProjects := g.settings.MaxProjectsPerCategory()
	maxItems := g.settings.MaxItemsPerProject()

	recipients, err := g.settings.ActiveRecipients(kind)
	if err != nil {
		return nil, fmt.Errorf("resolving recipients: %w", err)
	}

	report := &store.Report{
		Kind:        kind,
		Status:      store.ReportGenerated,
		PeriodStart: start.UnixMilli(),
		PeriodEnd:   end.UnixMilli(),
		Subject:     Subject(kind, start, end),
		Recipients:  recipients,
		GeneratedAt: now.UnixMilli(),
	}

	err = g.store.WithTx(func(q store.DBTX) error {
		items, err := g.store.ListWorkItemsUpdatedBetween(q, start.UnixMilli(), end.UnixMilli())
		if err != nil {
			return err
		}

		planned, required, inProgress := Partition(items)
		stats := Summarize(items)

		body, err := Render(kind, start, end, now, stats,
			GroupByProject(planned, maxProjects, maxItems),
			GroupByProject(required, maxProjects, maxItems),
			GroupByProject(inProgress, maxProjects, maxItems),
		)
		if err != nil {
			return err
		}
		report.BodyHTML = body

		snapshots := make([]*store.ReportItem, 0, len(items))
		for _, item := range items {
			snapshots = append(snapshots, snapshotItem(item))
		}
		return g.store.SaveReport(q, report, snapshots)
	})
	if err != nil {
		return nil, fmt.Errorf("generating %s report: %w", kind, err)
	}

	g.logger.Info().
		Str("kind", string(kind)).
		Int64("report_id", report.ID).
		Int("recipients", len(recipients)).
		Msg("report generated")
	return report, nil
}

// snapshotItem copies a work item into an immutable report snapshot.
func snapshotItem(item *store.WorkItem) *store.ReportItem {
	sourceType := "commit"
	sourceRef := ""
	if item.IssueNumber != 0 {
		sourceType = "issue"
		sourceRef = item.IssueURL
	} else if len(item.Commits) > 0 {
		sourceRef = item.Commits[0]
	}
	return &store.ReportItem{
		Category:   item.Category,
		Project:    item.Repo,
		Title:      item.Title,
		Detail:     item.Summary,
		SourceType: sourceType,
		SourceRef:  sourceRef,
	}
}
