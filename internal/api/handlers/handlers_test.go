package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/propital/dane-automation/internal/domain"
	"github.com/propital/dane-automation/internal/logger"
	"github.com/propital/dane-automation/internal/pipeline"
	"github.com/propital/dane-automation/internal/runstore"
)

type fakeRunner struct {
	result *domain.RunResult
	err    error
	gotURL string
}

func (f *fakeRunner) Run(ctx context.Context, targetURL string, recipients []string) (*domain.RunResult, error) {
	f.gotURL = targetURL
	return f.result, f.err
}

type fakeNotifier struct {
	result domain.DispatchResult
	err    error
	gotTo  []string
}

func (f *fakeNotifier) Dispatch(templateName string, vars map[string]string, attachmentPath string, recipients []string) (domain.DispatchResult, error) {
	f.gotTo = recipients
	return f.result, f.err
}

func successResult() *domain.RunResult {
	return &domain.RunResult{
		RunID:      "run-1",
		SourceURL:  "https://example.org",
		Stats:      domain.SummaryStats{TotalAll: 160, TotalTopN: 130, TopShare: 81.25},
		ReportPath: "downloads/top_10_best_sellers.csv",
		Dispatch:   &domain.DispatchResult{Success: true},
		FinishedAt: time.Now(),
	}
}

func newHandler(runner Runner, notifier pipeline.Notifier, store *runstore.Store) *AutomationHandler {
	if store == nil {
		store = runstore.NewStore()
	}
	return NewAutomationHandler(runner, notifier, store, store, logger.NewWithWriter(os.Stderr))
}

func TestRunAutomation(t *testing.T) {
	runner := &fakeRunner{result: successResult()}
	h := newHandler(runner, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/automation", strings.NewReader(`{"url":"https://custom.example"}`))
	w := httptest.NewRecorder()

	h.RunAutomation(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if runner.gotURL != "https://custom.example" {
		t.Errorf("runner URL = %q", runner.gotURL)
	}

	var resp struct {
		Stats domain.SummaryStats `json:"stats"`
		RunID string              `json:"run_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stats.TopShare != 81.25 || resp.RunID != "run-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRunAutomation_EmptyBody(t *testing.T) {
	runner := &fakeRunner{result: successResult()}
	h := newHandler(runner, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/automation", nil)
	w := httptest.NewRecorder()

	h.RunAutomation(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, empty body must fall back to defaults", w.Code)
	}
	if runner.gotURL != "" {
		t.Errorf("runner URL = %q, want empty (configured default applies downstream)", runner.gotURL)
	}
}

func TestRunAutomation_PipelineFailure(t *testing.T) {
	h := newHandler(&fakeRunner{err: errors.New("retrieval: section heading not found")}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/automation", nil)
	w := httptest.NewRecorder()

	h.RunAutomation(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "section heading not found") {
		t.Errorf("body = %s, want the error message", w.Body.String())
	}
}

func TestRunAutomation_RunInFlight(t *testing.T) {
	h := newHandler(&fakeRunner{err: pipeline.ErrRunInFlight}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/automation", nil)
	w := httptest.NewRecorder()

	h.RunAutomation(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestSendReport(t *testing.T) {
	store := runstore.NewStore()
	store.StartRun(context.Background(), "run-1", "https://example.org", time.Now())
	store.FinishRun(context.Background(), "run-1", successResult(), nil)

	notifier := &fakeNotifier{result: domain.DispatchResult{Success: true}}
	h := newHandler(&fakeRunner{}, notifier, store)

	req := httptest.NewRequest(http.MethodPost, "/report/send", strings.NewReader(`{"recipients":["ops@example.com"]}`))
	w := httptest.NewRecorder()

	h.SendReport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(notifier.gotTo) != 1 || notifier.gotTo[0] != "ops@example.com" {
		t.Errorf("recipients = %v", notifier.gotTo)
	}
}

func TestSendReport_NoReportYet(t *testing.T) {
	h := newHandler(&fakeRunner{}, &fakeNotifier{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/report/send", strings.NewReader(`{"recipients":["ops@example.com"]}`))
	w := httptest.NewRecorder()

	h.SendReport(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSendReport_MissingRecipients(t *testing.T) {
	h := newHandler(&fakeRunner{}, &fakeNotifier{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/report/send", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.SendReport(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListRuns(t *testing.T) {
	store := runstore.NewStore()
	store.StartRun(context.Background(), "run-1", "https://example.org", time.Now())

	h := newHandler(&fakeRunner{}, nil, store)

	req := httptest.NewRequest(http.MethodGet, "/runs?limit=10", nil)
	w := httptest.NewRecorder()

	h.ListRuns(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestListRuns_BadLimit(t *testing.T) {
	h := newHandler(&fakeRunner{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/runs?limit=abc", nil)
	w := httptest.NewRecorder()

	h.ListRuns(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
