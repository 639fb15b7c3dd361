// Package scraper locates and downloads the source spreadsheet from the
// DANE page with a headless browser session.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/propital/dane-automation/internal/config"
)

// Couplings to the external page. These are brittle by construction:
// the page is not ours, and when DANE reworks it the fix is here and
// nowhere else.
const (
	// SectionHeading is the Spanish heading text identifying the section
	// that carries the download link.
	SectionHeading = "Precios de los productos de primera necesidad"

	// DownloadLinkSelector matches the download anchor inside the section.
	DownloadLinkSelector = `a.btn.btn-gray[title="Anexo referencias mas vendidas"]`
)

// Fixed artifact names inside the download directory.
const (
	WorkbookFileName   = "anexo_referencias_mas_vendidas.xlsx"
	ScreenshotFileName = "screenshot.png"
)

// ErrSectionNotFound means the target section never appeared within the
// configured wait.
var ErrSectionNotFound = errors.New("scraper: section heading not found")

// ErrLinkNotFound means the download link is absent from the page.
var ErrLinkNotFound = errors.New("scraper: download link not found")

// NavigationError means the page could not be loaded at all.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("scraper: navigation to %q failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// DownloadError means the spreadsheet GET returned a non-2xx status.
type DownloadError struct {
	StatusCode int
	URL        string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("scraper: download of %q failed with status %d", e.URL, e.StatusCode)
}

// Agent drives a browser session to fetch the source workbook.
type Agent struct {
	dir        string
	newSession sessionFactory
	httpClient *http.Client
	log        zerolog.Logger
}

// NewAgent creates an Agent using the configured timeouts and download
// directory.
func NewAgent(cfg config.Config, log zerolog.Logger) *Agent {
	return &Agent{
		dir: cfg.DownloadDir,
		newSession: func() (session, error) {
			return newRodSession(cfg.NavigationTimeout, cfg.SectionWait)
		},
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
		log:        log,
	}
}

// WorkbookPath returns where the downloaded spreadsheet is persisted.
func (a *Agent) WorkbookPath() string {
	return filepath.Join(a.dir, WorkbookFileName)
}

// ScreenshotPath returns where the audit screenshot is persisted.
func (a *Agent) ScreenshotPath() string {
	return filepath.Join(a.dir, ScreenshotFileName)
}

// Fetch opens the target page, locates the download link inside the
// staple-goods section, downloads the spreadsheet to its fixed path and
// captures a best-effort audit screenshot. The browser session is torn
// down on every exit path.
func (a *Agent) Fetch(ctx context.Context, targetURL string) (string, error) {
	sess, err := a.newSession()
	if err != nil {
		return "", &NavigationError{URL: targetURL, Err: err}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Browser session close failed")
		}
	}()

	if err := sess.Navigate(ctx, targetURL); err != nil {
		return "", &NavigationError{URL: targetURL, Err: err}
	}

	if err := sess.WaitForSection(ctx, SectionHeading); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSectionNotFound, err)
	}

	href, err := sess.LinkHref(ctx, DownloadLinkSelector)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLinkNotFound, err)
	}

	fileURL, err := resolveHref(targetURL, href)
	if err != nil {
		return "", fmt.Errorf("scraper: resolve link %q: %w", href, err)
	}

	path, err := a.download(ctx, fileURL)
	if err != nil {
		return "", err
	}

	// Audit artifact only; a screenshot failure never fails the fetch.
	a.captureScreenshot(sess)

	a.log.Info().Str("url", fileURL).Str("path", path).Msg("Workbook downloaded")
	return path, nil
}

// resolveHref turns a possibly relative link target into an absolute URL
// against the page it was found on.
func resolveHref(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (a *Agent) download(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("scraper: build request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scraper: download %q: %w", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DownloadError{StatusCode: resp.StatusCode, URL: fileURL}
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("scraper: create download dir: %w", err)
	}

	path := a.WorkbookPath()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("scraper: create %q: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("scraper: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("scraper: close %q: %w", path, err)
	}
	return path, nil
}

func (a *Agent) captureScreenshot(sess session) {
	img, err := sess.Screenshot()
	if err != nil {
		a.log.Warn().Err(err).Msg("Screenshot capture failed")
		return
	}
	path := a.ScreenshotPath()
	if err := os.WriteFile(path, img, 0o644); err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("Screenshot write failed")
		return
	}
	a.log.Info().Str("path", path).Msg("Screenshot captured")
}
