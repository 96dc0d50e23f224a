package api

import "github.com/bluevlad/standup-agent/internal/store"

// ProblemDetail is an RFC 7807 error response body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// RunResponse is the outcome of a manually triggered agent run.
type RunResponse struct {
	Agent    string `json:"agent"`
	Status   string `json:"status"`
	Created  int64  `json:"created,omitempty"`
	Updated  int64  `json:"updated,omitempty"`
	Tracked  int64  `json:"tracked,omitempty"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// ReportSummary is the API view of a report, without the HTML body.
type ReportSummary struct {
	ID           int64    `json:"id"`
	Kind         string   `json:"kind"`
	Status       string   `json:"status"`
	Subject      string   `json:"subject"`
	Recipients   []string `json:"recipients"`
	RetryCount   int      `json:"retry_count"`
	ErrorMessage string   `json:"error_message,omitempty"`
	PeriodStart  int64    `json:"period_start"`
	PeriodEnd    int64    `json:"period_end"`
	GeneratedAt  int64    `json:"generated_at"`
	SentAt       int64    `json:"sent_at,omitempty"`
}

func summarize(r *store.Report) ReportSummary {
	recipients := r.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return ReportSummary{
		ID:           r.ID,
		Kind:         string(r.Kind),
		Status:       string(r.Status),
		Subject:      r.Subject,
		Recipients:   recipients,
		RetryCount:   r.RetryCount,
		ErrorMessage: r.ErrorMessage,
		PeriodStart:  r.PeriodStart,
		PeriodEnd:    r.PeriodEnd,
		GeneratedAt:  r.GeneratedAt,
		SentAt:       r.SentAt,
	}
}

// ReportDetailResponse is a report with its item snapshots.
type ReportDetailResponse struct {
	Report ReportSummary       `json:"report"`
	Body   string              `json:"body_html,omitempty"`
	Items  []*store.ReportItem `json:"items"`
}

// ReportListResponse wraps a page of reports.
type ReportListResponse struct {
	Reports []ReportSummary `json:"reports"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// WorkItemListResponse wraps a page of work items.
type WorkItemListResponse struct {
	Items  []*store.WorkItem `json:"items"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// RunLogResponse wraps recent run-log entries.
type RunLogResponse struct {
	Runs []*store.RunLogEntry `json:"runs"`
}

// HealthDetailResponse is the detailed health view.
type HealthDetailResponse struct {
	Status       string            `json:"status"`
	Integrations map[string]string `json:"integrations"`
	Uptime       string            `json:"uptime"`
}
