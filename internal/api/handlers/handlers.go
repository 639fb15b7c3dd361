// Package handlers implements the automation API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/propital/dane-automation/internal/api/middleware"
	"github.com/propital/dane-automation/internal/domain"
	"github.com/propital/dane-automation/internal/notify"
	"github.com/propital/dane-automation/internal/pipeline"
	"github.com/propital/dane-automation/internal/runstore"
)

// Runner is the slice of the orchestrator the handlers need.
type Runner interface {
	Run(ctx context.Context, targetURL string, recipients []string) (*domain.RunResult, error)
}

// AutomationHandler serves the pipeline endpoints.
type AutomationHandler struct {
	runner   Runner
	notifier pipeline.Notifier
	store    *runstore.Store
	history  runstore.Recorder
	log      zerolog.Logger
}

// NewAutomationHandler creates the handler. notifier may be nil when the
// deployment cannot send mail.
func NewAutomationHandler(runner Runner, notifier pipeline.Notifier, store *runstore.Store, history runstore.Recorder, log zerolog.Logger) *AutomationHandler {
	return &AutomationHandler{
		runner:   runner,
		notifier: notifier,
		store:    store,
		history:  history,
		log:      log,
	}
}

type automationRequest struct {
	URL        string   `json:"url,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// RunAutomation handles POST /automation: one full pipeline run.
func (h *AutomationHandler) RunAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.runner.Run(r.Context(), req.URL, req.Recipients)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInFlight) {
			middleware.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Automation run failed")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Archivo generado con éxito",
		"run_id":      result.RunID,
		"stats":       result.Stats,
		"report_path": result.ReportPath,
		"email":       result.Dispatch,
	})
}

type sendReportRequest struct {
	Recipients []string `json:"recipients"`
}

// SendReport handles POST /report/send: re-send the last rendered report
// without re-scraping.
func (h *AutomationHandler) SendReport(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Email transport is not configured")
		return
	}

	var req sendReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Recipients) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one recipient is required")
		return
	}

	latest, ok := h.store.Latest()
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "No report has been generated yet")
		return
	}

	vars := pipeline.TemplateVars(latest.Stats, latest.SourceURL)
	dispatch, err := h.notifier.Dispatch(notify.TemplateReport, vars, latest.ReportPath, req.Recipients)
	if err != nil {
		h.log.Error().Err(err).Msg("Report re-send failed")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Reporte enviado",
		"stats":   latest.Stats,
		"email":   dispatch,
	})
}

// ListRuns handles GET /runs: the run history, newest first.
func (h *AutomationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
