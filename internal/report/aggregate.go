// Package report implements report aggregation, rendering, and delivery.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/bluevlad/standup-agent/internal/classify"
	"github.com/bluevlad/standup-agent/internal/store"
)

// ProjectGroup is one repository's slice of a category bucket.
type ProjectGroup struct {
	Project    string
	TotalCount int
	Shown      []*store.WorkItem
	Overflow   int // items beyond the shown cap
}

// Grouping is a category bucket grouped by project and capped, with explicit
// hidden-count accounting so nothing is silently dropped.
type Grouping struct {
	Groups         []ProjectGroup
	TotalCount     int
	ProjectCount   int
	HiddenProjects int
	HiddenItems    int
}

// Stats summarizes one report window.
type Stats struct {
	TotalCount    int
	ProjectCount  int
	ResolvedCount int
}

// PeriodWindow computes the half-open reporting interval [start, end) for a
// kind: daily from midnight, weekly from the most recent Monday, monthly
// from the first of the month. end is always now.
func PeriodWindow(kind store.ReportKind, now time.Time) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch kind {
	case store.ReportWeekly:
		// Monday = 1 ... Sunday = 0 in Go's weekday numbering
		offset := (int(now.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset), now
	case store.ReportMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now
	default:
		return midnight, now
	}
}

// Subject renders the mail subject line for a report kind and window.
func Subject(kind store.ReportKind, start, end time.Time) string {
	switch kind {
	case store.ReportWeekly:
		return fmt.Sprintf("[Weekly Report] %s - %s", start.Format("01/02"), end.Format("2006-01-02"))
	case store.ReportMonthly:
		return fmt.Sprintf("[Monthly Report] %s", end.Format("2006-01"))
	default:
		return fmt.Sprintf("[Daily Report] %s", end.Format("2006-01-02"))
	}
}

// Partition splits window items into the three category buckets, preserving
// the snapshot order.
func Partition(items []*store.WorkItem) (planned, required, inProgress []*store.WorkItem) {
	for _, item := range items {
		switch item.Category {
		case string(classify.CategoryRequired):
			required = append(required, item)
		case string(classify.CategoryInProgress):
			inProgress = append(inProgress, item)
		default:
			planned = append(planned, item)
		}
	}
	return planned, required, inProgress
}

// GroupByProject groups a category bucket by repository, keeps the
// maxProjects largest groups with at most maxItems shown each, and reports
// the hidden remainders. Shown and hidden counts always sum to the true
// total.
func GroupByProject(items []*store.WorkItem, maxProjects, maxItems int) Grouping {
	byProject := make(map[string][]*store.WorkItem)
	var order []string
	for _, item := range items {
		if _, seen := byProject[item.Repo]; !seen {
			order = append(order, item.Repo)
		}
		byProject[item.Repo] = append(byProject[item.Repo], item)
	}

	// Count descending; first-seen order breaks ties to keep output stable.
	firstSeen := make(map[string]int, len(order))
	for i, p := range order {
		firstSeen[p] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		ci, cj := len(byProject[order[i]]), len(byProject[order[j]])
		if ci != cj {
			return ci > cj
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	g := Grouping{
		TotalCount:   len(items),
		ProjectCount: len(order),
	}

	for i, project := range order {
		projectItems := byProject[project]
		if i >= maxProjects {
			g.HiddenProjects++
			g.HiddenItems += len(projectItems)
			continue
		}
		shown := projectItems
		if len(shown) > maxItems {
			shown = shown[:maxItems]
		}
		g.Groups = append(g.Groups, ProjectGroup{
			Project:    project,
			TotalCount: len(projectItems),
			Shown:      shown,
			Overflow:   len(projectItems) - len(shown),
		})
	}
	return g
}

// Summarize computes the window-level statistics.
func Summarize(items []*store.WorkItem) Stats {
	projects := make(map[string]struct{})
	stats := Stats{TotalCount: len(items)}
	for _, item := range items {
		projects[item.Repo] = struct{}{}
		if item.Status == store.StatusResolved || item.Status == store.StatusClosed {
			stats.ResolvedCount++
		}
	}
	stats.ProjectCount = len(projects)
	return stats
}
