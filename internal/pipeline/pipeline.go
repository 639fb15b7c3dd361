// Package pipeline sequences retrieval, extraction, aggregation,
// rendering and notification into one run with a single outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/propital/dane-automation/internal/config"
	"github.com/propital/dane-automation/internal/domain"
	"github.com/propital/dane-automation/internal/notify"
	"github.com/propital/dane-automation/internal/runstore"
	"github.com/propital/dane-automation/internal/scraper"
	"github.com/propital/dane-automation/internal/stats"
)

// ErrRunInFlight means a run was requested while another is still
// executing. The fixed artifact paths make overlapping runs unsafe, so
// the orchestrator serializes them.
var ErrRunInFlight = errors.New("pipeline: a run is already in flight")

// Orchestrator owns one pipeline run at a time.
type Orchestrator struct {
	cfg       config.Config
	retriever Retriever
	extractor Extractor
	renderer  Renderer
	notifier  Notifier
	recorder  runstore.Recorder
	archiver  Archiver
	log       zerolog.Logger

	runLock sync.Mutex
}

// New wires an Orchestrator. notifier and archiver may be nil when the
// deployment has no SMTP settings or no archive bucket.
func New(cfg config.Config, retriever Retriever, extractor Extractor, renderer Renderer, notifier Notifier, recorder runstore.Recorder, archiver Archiver, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		retriever: retriever,
		extractor: extractor,
		renderer:  renderer,
		notifier:  notifier,
		recorder:  recorder,
		archiver:  archiver,
		log:       log,
	}
}

// Run executes one full pipeline run. An empty targetURL falls back to
// the configured default, and empty recipients fall back to the
// configured list; with no recipients at all the notification stage is
// skipped. Every stage failure up through rendering is fatal; a
// notification transport failure is carried inside the result instead.
func (o *Orchestrator) Run(ctx context.Context, targetURL string, recipients []string) (*domain.RunResult, error) {
	if !o.runLock.TryLock() {
		return nil, ErrRunInFlight
	}
	defer o.runLock.Unlock()

	if targetURL == "" {
		targetURL = o.cfg.TargetURL
	}
	if len(recipients) == 0 {
		recipients = o.cfg.Recipients
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	o.recorder.StartRun(ctx, runID, targetURL, startedAt)

	o.log.Info().Str("run_id", runID).Str("url", targetURL).Msg("Pipeline run started")

	result, err := o.run(ctx, runID, targetURL, recipients, startedAt)
	o.recorder.FinishRun(ctx, runID, result, err)

	if err != nil {
		o.log.Error().Err(err).Str("run_id", runID).Msg("Pipeline run failed")
		return nil, err
	}

	o.log.Info().
		Str("run_id", runID).
		Int64("total", result.Stats.TotalAll).
		Int64("top_n_total", result.Stats.TotalTopN).
		Float64("share", result.Stats.TopShare).
		Msg("Pipeline run completed")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, runID, targetURL string, recipients []string, startedAt time.Time) (*domain.RunResult, error) {
	// 1. Drive the browser to the page and download the workbook.
	workbookPath, err := o.retriever.Fetch(ctx, targetURL)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	// 2. Extract the line items.
	records, err := o.extractor.Parse(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	// 3. Rank and aggregate.
	top, summary, err := stats.Summarize(records, stats.DefaultTopN)
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}

	// 4. Render the CSV report.
	reportPath, err := o.renderer.Render(top)
	if err != nil {
		return nil, fmt.Errorf("rendering: %w", err)
	}

	result := &domain.RunResult{
		RunID:      runID,
		SourceURL:  targetURL,
		Stats:      summary,
		TopN:       top,
		ReportPath: reportPath,
		StartedAt:  startedAt,
	}

	// 5. Dispatch the report. A transport failure lands in the result;
	// the computed stats and the rendered report must survive it.
	if o.notifier != nil && len(recipients) > 0 {
		dispatch, err := o.notifier.Dispatch(notify.TemplateReport, TemplateVars(summary, targetURL), reportPath, recipients)
		if err != nil {
			return nil, fmt.Errorf("notification: %w", err)
		}
		result.Dispatch = &dispatch
	}

	// 6. Archive the artifacts. Best-effort: the run already succeeded.
	if o.archiver != nil {
		screenshotPath := filepath.Join(o.cfg.DownloadDir, scraper.ScreenshotFileName)
		if err := o.archiver.ArchiveRun(ctx, runID, workbookPath, reportPath, screenshotPath); err != nil {
			o.log.Warn().Err(err).Str("run_id", runID).Msg("Artifact archiving failed")
		}
	}

	result.FinishedAt = time.Now()
	return result, nil
}

// TemplateVars builds the substitution variables for the report email.
func TemplateVars(s domain.SummaryStats, sourceURL string) map[string]string {
	return map[string]string{
		"total":       strconv.FormatInt(s.TotalAll, 10),
		"top10_total": strconv.FormatInt(s.TotalTopN, 10),
		"percentage":  strconv.FormatFloat(s.TopShare, 'f', 2, 64),
		"source_url":  sourceURL,
	}
}
