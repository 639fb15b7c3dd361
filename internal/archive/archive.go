// Package archive copies run artifacts to a GCS bucket so they survive
// the per-run overwrite of the fixed local paths.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

const uploadTimeout = 2 * time.Minute

// Archiver uploads artifacts under runs/<runID>/ in the configured bucket.
type Archiver struct {
	bucket string
	log    zerolog.Logger
}

// NewArchiver creates an Archiver for the bucket. Credentials come from
// Application Default Credentials.
func NewArchiver(bucket string, log zerolog.Logger) *Archiver {
	return &Archiver{bucket: bucket, log: log}
}

// ArchiveRun uploads every existing file in paths. Missing files are
// skipped (the screenshot is best-effort to begin with); the first
// upload failure is returned.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			a.log.Debug().Str("path", p).Msg("Skipping absent artifact")
			continue
		}

		objectName := path.Join("runs", runID, path.Base(p))
		if err := a.upload(ctx, objectName, p); err != nil {
			return fmt.Errorf("archive: upload %q: %w", p, err)
		}
		a.log.Info().Str("path", p).Str("object", objectName).Msg("Artifact archived")
	}
	return nil
}

func (a *Archiver) upload(ctx context.Context, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}
