package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/propital/dane-automation/internal/api/handlers"
	"github.com/propital/dane-automation/internal/api/middleware"
	"github.com/propital/dane-automation/internal/archive"
	"github.com/propital/dane-automation/internal/config"
	"github.com/propital/dane-automation/internal/extract"
	"github.com/propital/dane-automation/internal/logger"
	"github.com/propital/dane-automation/internal/notify"
	"github.com/propital/dane-automation/internal/pipeline"
	"github.com/propital/dane-automation/internal/report"
	"github.com/propital/dane-automation/internal/runstore"
	"github.com/propital/dane-automation/internal/scraper"
)

func main() {
	port := flag.String("port", "8080", "HTTP server port")
	flag.Parse()

	log := logger.New()
	cfg := config.FromEnv()

	if cfg.APIKey == "" {
		log.Warn().Msg("No API key configured - endpoints are unauthenticated")
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DownloadDir).Msg("Failed to create download directory")
	}

	ctx := context.Background()

	// Run history: always in memory, mirrored to BigQuery when configured.
	store := runstore.NewStore()
	var recorder runstore.Recorder = store
	var history runstore.Recorder = store
	if cfg.BigQueryProject != "" {
		bq, err := runstore.NewBigQueryRecorder(ctx, cfg.BigQueryProject, logger.ForComponent(log, "runstore"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery run recorder")
		}
		defer bq.Close()
		recorder = runstore.Multi{store, bq}
		history = bq
	}

	var notifier pipeline.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewNotifier(
			notify.NewTemplateStore(),
			notify.NewSMTPTransport(cfg.SMTP),
			logger.ForComponent(log, "notify"),
		)
	} else {
		log.Warn().Msg("No SMTP host configured - report emails are disabled")
	}

	var archiver pipeline.Archiver
	if cfg.ArchiveBucket != "" {
		archiver = archive.NewArchiver(cfg.ArchiveBucket, logger.ForComponent(log, "archive"))
	}

	orchestrator := pipeline.New(
		cfg,
		scraper.NewAgent(cfg, logger.ForComponent(log, "scraper")),
		extract.NewExtractor(logger.ForComponent(log, "extract")),
		report.NewRenderer(cfg.DownloadDir, logger.ForComponent(log, "report")),
		notifier,
		recorder,
		archiver,
		logger.ForComponent(log, "pipeline"),
	)

	handler := handlers.NewAutomationHandler(orchestrator, notifier, store, history, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/automation", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			handler.RunAutomation(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/report/send", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			handler.SendReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			handler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	wrapped := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.CORS(cfg.AllowedOrigins)(
				middleware.APIKey(cfg.APIKey)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: wrapped,
		// A pipeline run holds the request open for the whole browser
		// session, so the write timeout has to cover it.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting automation API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
