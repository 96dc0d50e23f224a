// Package settings resolves runtime configuration DB-first with environment
// fallback, and seeds the settings tables from the environment at startup.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bluevlad/standup-agent/internal/config"
	"github.com/bluevlad/standup-agent/internal/store"
)

// Resolver layers the app_settings table over environment configuration.
// A key present in the DB wins; otherwise the env value applies.
type Resolver struct {
	store  *store.Store
	cfg    *config.Config
	logger zerolog.Logger
}

// MailConfig is the resolved SMTP sender configuration.
type MailConfig struct {
	Host     string
	Port     int
	Address  string
	Password string
	Sender   string
}

// Usable reports whether the sender is configured well enough to attempt
// delivery.
func (m MailConfig) Usable() bool {
	return m.Address != "" && m.Password != ""
}

// New creates a Resolver.
func New(s *store.Store, cfg *config.Config, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  s,
		cfg:    cfg,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// String returns the DB value for key, or fallback when absent.
func (r *Resolver) String(key, fallback string) string {
	value, ok, err := r.store.GetSetting(key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("setting lookup failed, using fallback")
		return fallback
	}
	if !ok {
		return fallback
	}
	return value
}

// Int returns the DB value for key parsed as an integer, or fallback when
// absent or unparseable.
func (r *Resolver) Int(key string, fallback int) int {
	raw := r.String(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		r.logger.Warn().Str("key", key).Str("value", raw).Msg("non-integer setting, using fallback")
		return fallback
	}
	return n
}

// ActiveRecipients resolves the recipient list for a report kind. DB
// recipients win when any exist; otherwise the env fallback list applies.
func (r *Resolver) ActiveRecipients(kind store.ReportKind) ([]string, error) {
	recipients, err := r.store.ListActiveRecipients()
	if err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}
	if len(recipients) == 0 {
		return r.cfg.RecipientList(), nil
	}

	var emails []string
	for _, rec := range recipients {
		if rec.ReportKinds == "all" {
			emails = append(emails, rec.Email)
			continue
		}
		for _, k := range strings.Split(rec.ReportKinds, ",") {
			if strings.TrimSpace(k) == string(kind) {
				emails = append(emails, rec.Email)
				break
			}
		}
	}
	return emails, nil
}

// Mail resolves the SMTP sender configuration, DB-first.
func (r *Resolver) Mail() MailConfig {
	return MailConfig{
		Host:     r.String("smtp_host", r.cfg.SMTPHost),
		Port:     r.Int("smtp_port", r.cfg.SMTPPort),
		Address:  r.String("mail_address", r.cfg.MailAddress),
		Password: r.String("mail_app_password", r.cfg.MailPassword),
		Sender:   r.String("mail_sender_name", r.cfg.MailSender),
	}
}

// MaxProjectsPerCategory resolves the report project cap.
func (r *Resolver) MaxProjectsPerCategory() int {
	return r.Int("max_projects_per_category", r.cfg.MaxProjectsPerCategory)
}

// MaxItemsPerProject resolves the per-project item cap.
func (r *Resolver) MaxItemsPerProject() int {
	return r.Int("max_items_per_project", r.cfg.MaxItemsPerProject)
}

// MaxDeliveryRetries resolves the delivery retry budget.
func (r *Resolver) MaxDeliveryRetries() int {
	return r.Int("max_delivery_retries", r.cfg.MaxDeliveryRetries)
}

// SeedFromEnv copies env configuration into the settings tables, skipping
// keys that already exist. Idempotent, safe to run on every startup.
func (r *Resolver) SeedFromEnv() error {
	seeds := []store.Setting{
		{Key: "mail_address", Value: r.cfg.MailAddress, ValueType: "string", Category: "email", Description: "SMTP sender address"},
		{Key: "mail_app_password", Value: r.cfg.MailPassword, ValueType: "string", Category: "email", Description: "SMTP app password"},
		{Key: "mail_sender_name", Value: r.cfg.MailSender, ValueType: "string", Category: "email", Description: "Sender display name"},
		{Key: "smtp_host", Value: r.cfg.SMTPHost, ValueType: "string", Category: "email", Description: "SMTP host"},
		{Key: "smtp_port", Value: strconv.Itoa(r.cfg.SMTPPort), ValueType: "int", Category: "email", Description: "SMTP port"},
		{Key: "max_projects_per_category", Value: strconv.Itoa(r.cfg.MaxProjectsPerCategory), ValueType: "int", Category: "report", Description: "Max projects shown per category"},
		{Key: "max_items_per_project", Value: strconv.Itoa(r.cfg.MaxItemsPerProject), ValueType: "int", Category: "report", Description: "Max items shown per project"},
		{Key: "max_delivery_retries", Value: strconv.Itoa(r.cfg.MaxDeliveryRetries), ValueType: "int", Category: "report", Description: "Delivery retry budget"},
	}

	seeded := 0
	for _, seed := range seeds {
		if seed.Value == "" {
			continue
		}
		exists, err := r.store.HasSetting(seed.Key)
		if err != nil {
			return fmt.Errorf("checking setting %s: %w", seed.Key, err)
		}
		if exists {
			continue
		}
		s := seed
		if err := r.store.PutSetting(&s); err != nil {
			return fmt.Errorf("seeding setting %s: %w", seed.Key, err)
		}
		seeded++
	}

	for _, email := range r.cfg.RecipientList() {
		rec := &store.Recipient{
			Name:     strings.SplitN(email, "@", 2)[0],
			Email:    email,
			IsActive: true,
		}
		if err := r.store.SaveRecipient(rec); err != nil {
			return fmt.Errorf("seeding recipient %s: %w", email, err)
		}
	}

	r.logger.Info().Int("settings_seeded", seeded).Msg("settings seed complete")
	return nil
}
