package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// session is the narrow view of a browser the agent needs. Keeping it
// this small lets tests substitute a fake and keeps the rod dependency
// out of the rest of the pipeline.
type session interface {
	// Navigate loads the target page and waits for it to finish loading.
	Navigate(ctx context.Context, url string) error

	// WaitForSection waits until a heading matching the given text is
	// present and scrolls it into view.
	WaitForSection(ctx context.Context, heading string) error

	// LinkHref returns the href attribute of the first element matching
	// the CSS selector.
	LinkHref(ctx context.Context, selector string) (string, error)

	// Screenshot captures a full-page screenshot.
	Screenshot() ([]byte, error)

	// Close tears the browser down. Must be safe to call on every exit path.
	Close() error
}

// sessionFactory opens a fresh browser session.
type sessionFactory func() (session, error)

// rodSession drives a headless Chrome via go-rod.
type rodSession struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	page        *rod.Page
	navTimeout  time.Duration
	sectionWait time.Duration
}

func newRodSession(navTimeout, sectionWait time.Duration) (session, error) {
	l := launcher.New().Headless(true).NoSandbox(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	return &rodSession{
		launcher:    l,
		browser:     browser,
		page:        page,
		navTimeout:  navTimeout,
		sectionWait: sectionWait,
	}, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitForSection(ctx context.Context, heading string) error {
	// ElementR polls until a match appears, bounded by the section wait.
	el, err := s.page.Context(ctx).Timeout(s.sectionWait).ElementR("h2", heading)
	if err != nil {
		return err
	}
	// Scrolling only positions the audit screenshot; ignore failures.
	_ = el.ScrollIntoView()
	return nil
}

func (s *rodSession) LinkHref(ctx context.Context, selector string) (string, error) {
	el, err := s.page.Context(ctx).Timeout(s.sectionWait).Element(selector)
	if err != nil {
		return "", err
	}
	href, err := el.Attribute("href")
	if err != nil {
		return "", err
	}
	if href == nil || *href == "" {
		return "", fmt.Errorf("element %q has no href", selector)
	}
	return *href, nil
}

func (s *rodSession) Screenshot() ([]byte, error) {
	return s.page.Screenshot(true, nil)
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	return err
}
