package scraper

import (
	"context"
	"errors"
)

var (
	ErrNoRows        = errors.New("no appointment rows found")
	ErrListingFailed = errors.New("failed to load listing page")
	ErrDetailFailed  = errors.New("failed to load treatment page")
)

// Source loads raw HTML from the booking shop.
type Source interface {
	// ListingHTML returns the fully scrolled listing page.
	ListingHTML(ctx context.Context) (string, error)
	// DetailHTML returns a treatment detail page.
	DetailHTML(ctx context.Context, url string) (string, error)
}
