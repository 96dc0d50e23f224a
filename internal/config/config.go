package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
// Values that can also live in the settings table (SMTP credentials, report
// caps, retry budget) act as fallbacks; see internal/settings.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DBPath      string `envconfig:"DB_PATH" default:"standup.db"`

	// GitHub (optional; agent starts without GitHub in API-only mode)
	GitHubToken string `envconfig:"GITHUB_TOKEN"`
	GitHubOrg   string `envconfig:"GITHUB_ORG"`

	// SMTP sender (optional; delivery fails with a config error until set)
	SMTPHost     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	MailAddress  string `envconfig:"MAIL_ADDRESS"`
	MailPassword string `envconfig:"MAIL_APP_PASSWORD"`
	MailSender   string `envconfig:"MAIL_SENDER_NAME" default:"StandUp Report"`

	// Report recipients, comma-separated (fallback when none in DB)
	ReportRecipients string `envconfig:"REPORT_RECIPIENTS"`

	// Scan cadence
	IssueScanInterval   time.Duration `envconfig:"ISSUE_SCAN_INTERVAL" default:"2h"`
	CommitTrackInterval time.Duration `envconfig:"COMMIT_TRACK_INTERVAL" default:"1h"`
	ProviderTimeout     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// Report schedule (24h clock, process-local timezone)
	DailyReportHour     int `envconfig:"DAILY_REPORT_HOUR" default:"17"`
	DailyReportMinute   int `envconfig:"DAILY_REPORT_MINUTE" default:"0"`
	WeeklyReportHour    int `envconfig:"WEEKLY_REPORT_HOUR" default:"10"`
	WeeklyReportMinute  int `envconfig:"WEEKLY_REPORT_MINUTE" default:"0"`
	MonthlyReportHour   int `envconfig:"MONTHLY_REPORT_HOUR" default:"11"`
	MonthlyReportMinute int `envconfig:"MONTHLY_REPORT_MINUTE" default:"0"`

	// Report volume caps (fallbacks for the settings table)
	MaxProjectsPerCategory int `envconfig:"MAX_PROJECTS_PER_CATEGORY" default:"5"`
	MaxItemsPerProject     int `envconfig:"MAX_ITEMS_PER_PROJECT" default:"5"`

	// Delivery retry budget
	MaxDeliveryRetries int `envconfig:"MAX_DELIVERY_RETRIES" default:"3"`

	// Classification rule file (optional; built-in label sets when empty)
	ClassifyRulesPath string `envconfig:"CLASSIFY_RULES_PATH"`

	// Trigger API
	APIListenAddr string `envconfig:"API_LISTEN_ADDR" default:":9060"`
	APIAuthMode   string `envconfig:"API_AUTH_MODE" default:"api-key"`
	APIKey        string `envconfig:"API_KEY"`
	CORSOrigins   string `envconfig:"API_CORS_ORIGINS"`
}

// GitHubEnabled returns true if a GitHub token and org are configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubToken != "" && c.GitHubOrg != ""
}

// MailEnabled returns true if SMTP credentials are configured in the
// environment. The settings table may still override at delivery time.
func (c *Config) MailEnabled() bool {
	return c.MailAddress != "" && c.MailPassword != ""
}

// RecipientList returns the parsed fallback recipient list.
// Returns nil if not configured.
func (c *Config) RecipientList() []string {
	if c.ReportRecipients == "" {
		return nil
	}
	parts := strings.Split(c.ReportRecipients, ",")
	recipients := make([]string, 0, len(parts))
	for _, r := range parts {
		r = strings.TrimSpace(r)
		if r != "" {
			recipients = append(recipients, r)
		}
	}
	return recipients
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
