package pipeline

import (
	"context"

	"github.com/propital/dane-automation/internal/domain"
)

// Retriever locates and downloads the source workbook, returning its
// local path.
type Retriever interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// Extractor parses the workbook into records in original row order.
type Extractor interface {
	Parse(path string) ([]domain.Record, error)
}

// Renderer writes the ranked records to the report artifact and returns
// its path.
type Renderer interface {
	Render(records []domain.Record) (string, error)
}

// Notifier sends the rendered report. Transport failures come back in
// the DispatchResult; template and attachment problems are errors.
type Notifier interface {
	Dispatch(templateName string, vars map[string]string, attachmentPath string, recipients []string) (domain.DispatchResult, error)
}

// Archiver copies run artifacts to durable storage.
type Archiver interface {
	ArchiveRun(ctx context.Context, runID string, paths ...string) error
}
