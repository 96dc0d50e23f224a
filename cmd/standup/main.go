package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bluevlad/standup-agent/internal/agent"
	"github.com/bluevlad/standup-agent/internal/api"
	"github.com/bluevlad/standup-agent/internal/classify"
	"github.com/bluevlad/standup-agent/internal/config"
	ghclient "github.com/bluevlad/standup-agent/internal/github"
	"github.com/bluevlad/standup-agent/internal/health"
	"github.com/bluevlad/standup-agent/internal/mailer"
	"github.com/bluevlad/standup-agent/internal/metrics"
	"github.com/bluevlad/standup-agent/internal/report"
	"github.com/bluevlad/standup-agent/internal/sched"
	"github.com/bluevlad/standup-agent/internal/settings"
	"github.com/bluevlad/standup-agent/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("api_addr", cfg.APIListenAddr).
		Bool("github_enabled", cfg.GitHubEnabled()).
		Bool("mail_enabled", cfg.MailEnabled()).
		Msg("starting standup agent")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Work-item store
	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open store")
	}
	defer db.Close()

	// Settings resolver, seeded idempotently from the environment
	resolver := settings.New(db, cfg, logger)
	if err := resolver.SeedFromEnv(); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed settings")
	}

	// Classification rules
	rules := classify.DefaultRules()
	if cfg.ClassifyRulesPath != "" {
		rules, err = classify.LoadRules(cfg.ClassifyRulesPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.ClassifyRulesPath).Msg("failed to load classification rules")
		}
		logger.Info().Str("path", cfg.ClassifyRulesPath).Msg("classification rules loaded")
	}

	// Metrics & health
	metricsCollector := metrics.New()
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := db.DB().PingContext(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// GitHub provider (optional; API-only mode without it)
	var issueScanner *agent.IssueScanner
	var commitTracker *agent.CommitTracker
	if cfg.GitHubEnabled() {
		gh := ghclient.NewClient(cfg.GitHubToken, cfg.GitHubOrg, cfg.ProviderTimeout, logger)
		issueScanner = agent.NewIssueScanner(db, gh, rules, metricsCollector, logger)
		commitTracker = agent.NewCommitTracker(db, gh, metricsCollector, logger)
		checker.Register("github", func(ctx context.Context) health.Status {
			if _, err := gh.ListOrgRepos(ctx); err != nil {
				return health.StatusDegraded
			}
			return health.StatusOK
		})
		logger.Info().Str("org", cfg.GitHubOrg).Msg("GitHub provider initialized")
	} else {
		logger.Info().Msg("GitHub not configured, scanning disabled")
	}

	// Scheduler (also serves as the delivery retry delayer)
	scheduler := sched.New(logger)

	// Report pipeline
	senderFactory := func(mc settings.MailConfig) report.Sender {
		return mailer.New(mc.Host, mc.Port, mc.Address, mc.Password, mc.Sender, logger)
	}
	generator := report.NewGenerator(db, resolver, logger)
	deliverer := report.NewDeliverer(db, resolver, senderFactory, scheduler, metricsCollector, logger)
	reportSvc := report.NewService(db, generator, deliverer, metricsCollector, logger)

	// Scheduled jobs
	if issueScanner != nil {
		mustSchedule(scheduler, logger, sched.Job{
			Name: "issue_scan",
			Spec: fmt.Sprintf("@every %s", cfg.IssueScanInterval),
			Run:  func() { issueScanner.Run(ctx) },
		})
		mustSchedule(scheduler, logger, sched.Job{
			Name: "commit_track",
			Spec: fmt.Sprintf("@every %s", cfg.CommitTrackInterval),
			Run:  func() { commitTracker.Run(ctx) },
		})
	}
	mustSchedule(scheduler, logger, sched.Job{
		Name: "daily_report",
		Spec: fmt.Sprintf("%d %d * * *", cfg.DailyReportMinute, cfg.DailyReportHour),
		Run:  runReportJob(ctx, reportSvc, store.ReportDaily, logger),
	})
	mustSchedule(scheduler, logger, sched.Job{
		Name: "weekly_report",
		Spec: fmt.Sprintf("%d %d * * 5", cfg.WeeklyReportMinute, cfg.WeeklyReportHour),
		Run:  runReportJob(ctx, reportSvc, store.ReportWeekly, logger),
	})
	mustSchedule(scheduler, logger, sched.Job{
		Name: "monthly_report",
		Spec: fmt.Sprintf("%d %d 1 * *", cfg.MonthlyReportMinute, cfg.MonthlyReportHour),
		Run:  runReportJob(ctx, reportSvc, store.ReportMonthly, logger),
	})
	scheduler.Start()

	// Trigger API
	var scanRunner, trackRunner api.Runner
	if issueScanner != nil {
		scanRunner = issueScanner
		trackRunner = commitTracker
	}
	handlers := api.NewHandlers(db, scanRunner, trackRunner, reportSvc, scheduler, checker, logger)
	apiServer := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.APIListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:   cfg.APIAuthMode,
			APIKey: cfg.APIKey,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, metricsCollector.Handler(), logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()
	scheduler.Stop()

	if err := apiServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("standup agent stopped")
}

func mustSchedule(s *sched.Scheduler, logger zerolog.Logger, job sched.Job) {
	if err := s.Schedule(job); err != nil {
		logger.Fatal().Err(err).Str("job", job.Name).Msg("failed to schedule job")
	}
}

func runReportJob(ctx context.Context, svc *report.Service, kind store.ReportKind, logger zerolog.Logger) func() {
	return func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := svc.GenerateAndSend(runCtx, kind); err != nil {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("scheduled report run failed")
		}
	}
}
