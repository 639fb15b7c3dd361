package runstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/propital/dane-automation/internal/domain"
)

const (
	datasetID = "automation"
	runsTable = "pipeline_runs"
)

// runRow mirrors the automation.pipeline_runs table schema.
type runRow struct {
	RunID      string                 `bigquery:"run_id"`
	SourceURL  string                 `bigquery:"source_url"`
	Status     string                 `bigquery:"status"`
	Error      string                 `bigquery:"error_message"`
	TotalAll   int64                  `bigquery:"total_quantity_all"`
	TotalTopN  int64                  `bigquery:"total_quantity_top_n"`
	TopShare   float64                `bigquery:"top_n_share_percent"`
	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`
}

// BigQueryRecorder mirrors run history into BigQuery. All writes are
// best-effort: failures are logged, never propagated, because losing an
// audit row must not fail a run that already produced its artifacts.
type BigQueryRecorder struct {
	client *bigquery.Client
	log    zerolog.Logger
}

// NewBigQueryRecorder connects a recorder to the given GCP project.
func NewBigQueryRecorder(ctx context.Context, projectID string, log zerolog.Logger) (*BigQueryRecorder, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("runstore: bigquery client: %w", err)
	}
	return &BigQueryRecorder{client: client, log: log}, nil
}

// Close releases the underlying client.
func (r *BigQueryRecorder) Close() error {
	return r.client.Close()
}

// StartRun inserts a RUNNING row for the run.
func (r *BigQueryRecorder) StartRun(ctx context.Context, runID, sourceURL string, startedAt time.Time) {
	q := r.client.Query(fmt.Sprintf(`
		INSERT %s.%s (run_id, source_url, status, started_ts)
		VALUES (@run_id, @source_url, @status, @started_ts)
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "source_url", Value: sourceURL},
		{Name: "status", Value: string(domain.RunStatusRunning)},
		{Name: "started_ts", Value: startedAt},
	}

	if err := r.runQuery(ctx, q); err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("StartRun: insert failed")
	}
}

// FinishRun updates the run row with its terminal status and stats.
func (r *BigQueryRecorder) FinishRun(ctx context.Context, runID string, result *domain.RunResult, runErr error) {
	status := domain.RunStatusSucceeded
	errMsg := ""
	var stats domain.SummaryStats

	if runErr != nil {
		status = domain.RunStatusFailed
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	} else if result != nil {
		stats = result.Stats
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    error_message = @error_message,
		    total_quantity_all = @total_all,
		    total_quantity_top_n = @total_top_n,
		    top_n_share_percent = @top_share,
		    finished_ts = @finished_ts
		WHERE run_id = @run_id
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "error_message", Value: errMsg},
		{Name: "total_all", Value: stats.TotalAll},
		{Name: "total_top_n", Value: stats.TotalTopN},
		{Name: "top_share", Value: stats.TopShare},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "run_id", Value: runID},
	}

	if err := r.runQuery(ctx, q); err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("FinishRun: update failed")
	}
}

// ListRuns returns the most recent runs from BigQuery.
func (r *BigQueryRecorder) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT run_id, source_url, status, error_message,
		       total_quantity_all, total_quantity_top_n, top_n_share_percent,
		       started_ts, finished_ts
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: int64(limit)}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("runstore: list runs: %w", err)
	}

	var out []RunRecord
	for {
		var row runRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("runstore: iterate runs: %w", err)
		}

		rec := RunRecord{
			RunID:     row.RunID,
			SourceURL: row.SourceURL,
			Status:    domain.RunStatus(row.Status),
			Error:     row.Error,
			TotalAll:  row.TotalAll,
			TotalTopN: row.TotalTopN,
			TopShare:  row.TopShare,
			StartedAt: row.StartedTS,
		}
		if row.FinishedTS.Valid {
			rec.FinishedAt = row.FinishedTS.Timestamp
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *BigQueryRecorder) runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
