package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/spa-slots/internal/browser"
	"github.com/maltedev/spa-slots/internal/parser"
	"github.com/playwright-community/playwright-go"
)

type SourceOptions struct {
	BaseURL        string
	ListingTimeout time.Duration
	RowWaitTimeout time.Duration
	ScrollSteps    int
	ScrollStepPx   int
	ScrollPause    time.Duration
	SettleDelay    time.Duration
	DetailTimeout  time.Duration
	MaxRetries     int
}

// PlaywrightSource renders the shop in headless Chromium. The listing is a
// client-side app that lazy-loads rows while scrolling, so plain HTTP is not
// enough.
type PlaywrightSource struct {
	browser *browser.Browser
	opts    SourceOptions
	logger  *slog.Logger
}

func NewPlaywrightSource(b *browser.Browser, opts SourceOptions, logger *slog.Logger) *PlaywrightSource {
	return &PlaywrightSource{
		browser: b,
		opts:    opts,
		logger:  logger.With("component", "playwright_source"),
	}
}

func (s *PlaywrightSource) ListingHTML(ctx context.Context) (string, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrListingFailed, err)
	}
	defer page.Close()

	s.logger.Info("loading listing", "url", s.opts.BaseURL)
	err = s.browser.NavigateWithRetry(ctx, page, s.opts.BaseURL, browser.NavigateOptions{
		WaitUntil:  playwright.WaitUntilStateNetworkidle,
		Timeout:    s.opts.ListingTimeout,
		MaxRetries: s.opts.MaxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrListingFailed, err)
	}

	s.logger.Debug("scrolling to load all appointments", "steps", s.opts.ScrollSteps)
	if err := browser.ScrollToLoad(ctx, page, s.opts.ScrollSteps, s.opts.ScrollStepPx, s.opts.ScrollPause); err != nil {
		return "", fmt.Errorf("%w: %v", ErrListingFailed, err)
	}

	_, err = page.WaitForSelector(parser.RowSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(s.opts.RowWaitTimeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoRows, err)
	}

	// rows hydrate after the selector first matches
	if err := browser.Sleep(ctx, s.opts.SettleDelay); err != nil {
		return "", err
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("%w: failed to get page content: %v", ErrListingFailed, err)
	}
	return html, nil
}

func (s *PlaywrightSource) DetailHTML(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := s.opts.DetailTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout <= 0 {
			timeout = left
		}
	}

	page, err := s.browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDetailFailed, err)
	}
	defer page.Close()

	if err := browser.BlockResources(page, "image", "stylesheet", "font"); err != nil {
		return "", fmt.Errorf("%w: failed to install request filter: %v", ErrDetailFailed, err)
	}

	err = s.browser.NavigateWithRetry(ctx, page, url, browser.NavigateOptions{
		WaitUntil:  playwright.WaitUntilStateDomcontentloaded,
		Timeout:    timeout,
		MaxRetries: 1,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDetailFailed, err)
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("%w: failed to get page content: %v", ErrDetailFailed, err)
	}
	return html, nil
}
