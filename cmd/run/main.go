package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

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
	log := logger.New()

	targetURL := flag.String("url", "", "DANE page URL (defaults to URL_PAGE_DANE)")
	recipients := flag.String("to", "", "comma-separated recipient emails (defaults to REPORT_RECIPIENTS; empty skips email)")
	flag.Parse()

	cfg := config.FromEnv()
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DownloadDir).Msg("Failed to create download directory")
	}

	var to []string
	for _, r := range strings.Split(*recipients, ",") {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			to = append(to, trimmed)
		}
	}

	var notifier pipeline.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewNotifier(notify.NewTemplateStore(), notify.NewSMTPTransport(cfg.SMTP), logger.ForComponent(log, "notify"))
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
		runstore.NewStore(),
		archiver,
		logger.ForComponent(log, "pipeline"),
	)

	// Bounded so a hung page load cannot hang the CLI.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	result, err := orchestrator.Run(ctx, *targetURL, to)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline run failed")
	}

	fmt.Printf("Report generated: %s\n", result.ReportPath)
	fmt.Printf("Total quantity: %d, top %d: %d (%.2f%%)\n",
		result.Stats.TotalAll, len(result.TopN), result.Stats.TotalTopN, result.Stats.TopShare)
	if result.Dispatch != nil {
		if result.Dispatch.Success {
			fmt.Println("Report emailed successfully.")
		} else {
			fmt.Printf("Report email failed: %s\n", result.Dispatch.Reason)
		}
	}
}
