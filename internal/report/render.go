package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/bluevlad/standup-agent/internal/store"
)

// renderInput is everything the report template sees.
type renderInput struct {
	Kind        store.ReportKind
	PeriodStart time.Time
	PeriodEnd   time.Time
	GeneratedAt time.Time
	Stats       Stats
	Sections    []section
}

type section struct {
	Title    string
	Grouping Grouping
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #222;">
<h2>{{.Kind}} report</h2>
<p>
  Period: {{.PeriodStart.Format "2006-01-02 15:04"}} &ndash; {{.PeriodEnd.Format "2006-01-02 15:04"}}<br>
  Items: {{.Stats.TotalCount}} across {{.Stats.ProjectCount}} projects, {{.Stats.ResolvedCount}} resolved
</p>
{{range .Sections}}
<h3>{{.Title}} ({{.Grouping.TotalCount}})</h3>
{{if .Grouping.Groups}}
{{range .Grouping.Groups}}
<h4>{{.Project}} ({{.TotalCount}})</h4>
<ul>
{{range .Shown}}
  <li>{{.Title}}{{if .Summary}} &mdash; {{.Summary}}{{end}}</li>
{{end}}
{{if gt .Overflow 0}}  <li><em>{{.Overflow}} more not shown</em></li>{{end}}
</ul>
{{end}}
{{if gt .Grouping.HiddenProjects 0}}
<p><em>{{.Grouping.HiddenProjects}} more projects ({{.Grouping.HiddenItems}} items) not shown</em></p>
{{end}}
{{else}}
<p><em>Nothing in this period.</em></p>
{{end}}
{{end}}
<p style="color: #999; font-size: 12px;">Generated at {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
</body>
</html>`))

// Render produces the HTML document body for a report. Pure: it touches
// neither storage nor the clock.
func Render(kind store.ReportKind, start, end, generatedAt time.Time, stats Stats, planned, required, inProgress Grouping) (string, error) {
	input := renderInput{
		Kind:        kind,
		PeriodStart: start,
		PeriodEnd:   end,
		GeneratedAt: generatedAt,
		Stats:       stats,
		Sections: []section{
			{Title: "Required", Grouping: required},
			{Title: "Planned", Grouping: planned},
			{Title: "In progress", Grouping: inProgress},
		},
	}

	var sb strings.Builder
	if err := reportTmpl.Execute(&sb, input); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return sb.String(), nil
}
