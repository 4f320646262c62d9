package browser

import (
	"context"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "de-DE" {
		t.Errorf("Expected locale to be de-DE, got %s", opts.Locale)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := (&Options{Headless: false, Locale: "en-US"}).withDefaults()

	if opts.Headless {
		t.Error("Expected explicit headless=false to be kept")
	}
	if opts.Locale != "en-US" {
		t.Errorf("Expected locale en-US to be kept, got %s", opts.Locale)
	}
	if opts.Timeout != 30*time.Second || opts.UserAgent == "" || opts.TimezoneID != "Europe/Berlin" {
		t.Errorf("Expected zero fields to be filled, got %+v", opts)
	}

	var nilOpts *Options
	if got := nilOpts.withDefaults(); !got.Headless {
		t.Error("Expected nil options to resolve to defaults")
	}
}

func TestHeaders(t *testing.T) {
	opts := DefaultOptions()
	opts.ExtraHeaders = map[string]string{"DNT": "1"}

	h := opts.headers()
	if h["Accept-Language"] != opts.AcceptLanguage {
		t.Errorf("Expected Accept-Language header, got %q", h["Accept-Language"])
	}
	if h["DNT"] != "1" {
		t.Error("Expected extra headers to be merged")
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
