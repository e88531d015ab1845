package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"courseval-parser/internal/app"
	"courseval-parser/internal/browser"
	"courseval-parser/internal/config"
	"courseval-parser/internal/observability"
	"courseval-parser/internal/ratings"
	"courseval-parser/internal/storage"
	"courseval-parser/internal/storage/csvexport"
	"courseval-parser/internal/storage/mssql"
	"courseval-parser/internal/survey"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel)
	logger.Info("Starting courseval-parser",
		"config", configPath,
		"scheduler_mode", cfg.Scheduler.Mode,
	)

	surveySelectors, err := cfg.LoadSurveySelectors()
	if err != nil {
		log.Fatalf("Failed to load survey selectors: %v", err)
	}
	ratingsSelectors, err := cfg.LoadRatingsSelectors()
	if err != nil {
		log.Fatalf("Failed to load ratings selectors: %v", err)
	}

	var repo storage.Repository
	if cfg.Storage.Enabled {
		repo, err = mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			log.Fatalf("Failed to connect to storage: %v", err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Error("Failed to close storage", "error", err.Error())
			}
		}()
		logger.Info("Storage connected", "driver", cfg.Storage.Driver)
	}

	var exporter *csvexport.Writer
	if cfg.Export.CSVDir != "" {
		exporter, err = csvexport.NewWriter(cfg.Export.CSVDir)
		if err != nil {
			log.Fatalf("Failed to prepare CSV export: %v", err)
		}
	}

	session, err := browser.Connect(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to browser: %v", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close browser", "error", err.Error())
		}
	}()

	client := ratings.NewClient(ratings.ClientOptions{
		BaseURL:        cfg.Ratings.BaseURL,
		APIBaseURL:     cfg.Ratings.APIBaseURL,
		SchoolID:       cfg.Ratings.SchoolID,
		UserAgent:      cfg.HTTP.UserAgent,
		ConnectTimeout: cfg.GetConnectTimeout(),
		TotalTimeout:   cfg.GetTotalTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffMin:     cfg.GetBackoffMin(),
		BackoffMax:     cfg.GetBackoffMax(),
		JitterPct:      cfg.Backoff.JitterPct,
		MaxConcurrent:  cfg.RateLimit.MaxConcurrentPerHost,
		RPM:            cfg.RateLimit.RPM,
		RobotsTTL:      cfg.GetRobotsCacheTTL(),
		MaxReviewPages: cfg.Ratings.MaxReviewPages,
	}, logger)

	orchestrator := app.NewOrchestrator(app.Deps{
		Picker:       survey.NewTermPicker(surveySelectors, cfg.Survey.TermExclusions, cfg.Browser.SettleRetries, logger),
		Paginator:    survey.NewPaginator(surveySelectors, cfg.Survey.BaseURL, cfg.Survey.MaxPages, cfg.Browser.SettleRetries, logger),
		RecordParser: survey.NewRecordParser(surveySelectors, cfg.Survey.QuestionOffset),
		Opener:       session,
		Client:       client,
		Profiles:     ratings.NewProfileParser(ratingsSelectors),
		Repo:         repo,
		Exporter:     exporter,
		Logger:       logger,
	})

	ctx, cancel := app.GracefulShutdown(logger)
	defer cancel()

	switch cfg.Scheduler.Mode {
	case "oneshot":
		runOnce(ctx, cfg, session, orchestrator, logger)
	case "interval":
		runOnce(ctx, cfg, session, orchestrator, logger)
		ticker := time.NewTicker(cfg.GetSchedulerInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("Scheduler stopped")
				return
			case <-ticker.C:
				runOnce(ctx, cfg, session, orchestrator, logger)
			}
		}
	}
}

// runOnce performs one full extraction pass: every survey term, then every
// configured professor.
func runOnce(ctx context.Context, cfg *config.Config, session *browser.Session, orchestrator *app.Orchestrator, logger *slog.Logger) {
	listing, err := session.OpenView(ctx, cfg.Survey.PortalURL)
	if err != nil {
		logger.Error("Failed to open survey portal", "error", err.Error())
		return
	}
	defer func() {
		if err := listing.Close(); err != nil {
			logger.Warn("Failed to close listing page", "error", err.Error())
		}
	}()

	frame, err := listing.Frame(ctx, cfg.Survey.ContentFrame)
	if err != nil {
		logger.Error("Failed to enter content frame", "error", err.Error())
		return
	}

	surveyReport, err := orchestrator.RunSurveys(ctx, frame)
	if err != nil {
		logger.Error("Survey run stopped early", "error", err.Error())
	}
	logSurveyReport(logger, surveyReport)

	ratingsReport, err := orchestrator.RunRatings(ctx, cfg.Ratings.ProfessorIDs)
	if err != nil {
		logger.Error("Ratings run stopped early", "error", err.Error())
	}
	logger.Info("Ratings run completed",
		"professors", ratingsReport.Professors,
		"reviews", ratingsReport.Reviews,
		"failures", len(ratingsReport.Failures),
		"partial", ratingsReport.Partial,
		"duration", ratingsReport.FinishedAt.Sub(ratingsReport.StartedAt).String(),
	)
}

func logSurveyReport(logger *slog.Logger, report *app.SurveyReport) {
	failures := 0
	for _, tr := range report.Terms {
		failures += len(tr.Failures)
	}
	logger.Info("Survey run completed",
		"terms", len(report.Terms),
		"rows", report.TotalRows,
		"failures", failures,
		"partial", report.Partial,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
}
