package domain

import (
	"time"
)

// Record is one line item extracted from the DANE "referencias mas
// vendidas" worksheet. Identity is positional (the source row); records
// are never mutated after extraction.
// Product and Brand may be empty when the source cell is blank; the
// renderer substitutes a placeholder at output time, not here.
type Record struct {
	Product  string
	Brand    string
	Quantity int64
	// Price is the raw cell text. The source mixes numeric and free-form
	// values, so coercion to a number is deferred to rendering.
	Price string
}

// SummaryStats holds the aggregates computed for one pipeline run.
// TopShare is TotalTopN / TotalAll * 100 and is only defined when
// TotalAll > 0.
type SummaryStats struct {
	TotalAll  int64   `json:"total_quantity_all"`
	TotalTopN int64   `json:"total_quantity_top_n"`
	TopShare  float64 `json:"top_n_share_percent"`
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCESS"
	RunStatusFailed    RunStatus = "FAILED"
)

// DispatchResult reports the outcome of an email dispatch. A failed
// dispatch is data, not an error: the stats and report already exist
// and must survive a transport failure.
type DispatchResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// RunResult is everything a completed pipeline run produced.
type RunResult struct {
	RunID      string          `json:"run_id"`
	SourceURL  string          `json:"source_url"`
	Stats      SummaryStats    `json:"stats"`
	TopN       []Record        `json:"-"`
	ReportPath string          `json:"report_path"`
	Dispatch   *DispatchResult `json:"email,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}
