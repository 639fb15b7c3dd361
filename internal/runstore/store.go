// Package runstore keeps the history of pipeline runs: always in memory
// for the API, and optionally mirrored to BigQuery for a durable audit
// trail.
package runstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/propital/dane-automation/internal/domain"
)

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      string           `json:"run_id"`
	SourceURL  string           `json:"source_url"`
	Status     domain.RunStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	TotalAll   int64            `json:"total_quantity_all"`
	TotalTopN  int64            `json:"total_quantity_top_n"`
	TopShare   float64          `json:"top_n_share_percent"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
}

// Recorder receives run lifecycle events. Recording is best-effort from
// the pipeline's point of view: a recorder must log its own failures,
// never fail the run.
type Recorder interface {
	StartRun(ctx context.Context, runID, sourceURL string, startedAt time.Time)
	FinishRun(ctx context.Context, runID string, result *domain.RunResult, runErr error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Store is the in-memory run history. Safe for concurrent use; contents
// are lost on restart.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*RunRecord
	latest *domain.RunResult
}

// NewStore creates an empty in-memory run store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*RunRecord)}
}

// StartRun records a run as in flight.
func (s *Store) StartRun(ctx context.Context, runID, sourceURL string, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[runID] = &RunRecord{
		RunID:     runID,
		SourceURL: sourceURL,
		Status:    domain.RunStatusRunning,
		StartedAt: startedAt,
	}
}

// FinishRun records the terminal state of a run. On success the full
// result is retained as the latest, which backs re-sending the report
// without re-scraping.
func (s *Store) FinishRun(ctx context.Context, runID string, result *domain.RunResult, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		rec = &RunRecord{RunID: runID}
		s.runs[runID] = rec
	}
	rec.FinishedAt = time.Now()

	if runErr != nil {
		rec.Status = domain.RunStatusFailed
		rec.Error = runErr.Error()
		return
	}

	rec.Status = domain.RunStatusSucceeded
	if result != nil {
		rec.TotalAll = result.Stats.TotalAll
		rec.TotalTopN = result.Stats.TotalTopN
		rec.TopShare = result.Stats.TopShare
		rec.FinishedAt = result.FinishedAt

		resultCopy := *result
		s.latest = &resultCopy
	}
}

// ListRuns returns run records, most recently started first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the most recent successful run result, if any.
func (s *Store) Latest() (*domain.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, false
	}
	resultCopy := *s.latest
	return &resultCopy, true
}

// Multi fans lifecycle events out to several recorders. Listing reads
// from the first one.
type Multi []Recorder

func (m Multi) StartRun(ctx context.Context, runID, sourceURL string, startedAt time.Time) {
	for _, r := range m {
		r.StartRun(ctx, runID, sourceURL, startedAt)
	}
}

func (m Multi) FinishRun(ctx context.Context, runID string, result *domain.RunResult, runErr error) {
	for _, r := range m {
		r.FinishRun(ctx, runID, result, runErr)
	}
}

func (m Multi) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].ListRuns(ctx, limit)
}
