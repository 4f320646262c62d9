package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/spa-slots/internal/appointment"
	"github.com/maltedev/spa-slots/internal/metrics"
	"github.com/maltedev/spa-slots/internal/parser"
)

// Service produces a full appointment snapshot from the booking shop.
type Service struct {
	source   Source
	parser   *parser.BookingParser
	enricher *Enricher
	clock    appointment.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(source Source, p *parser.BookingParser, enricher *Enricher, clock appointment.Clock, m *metrics.Metrics, logger *slog.Logger) *Service {
	if clock == nil {
		clock = appointment.SystemClock()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		source:   source,
		parser:   p,
		enricher: enricher,
		clock:    clock,
		metrics:  m,
		logger:   logger.With("component", "scraper"),
	}
}

// Scrape loads the listing, parses every row and attaches treatment images.
// Source errors such as ErrNoRows are returned unchanged.
func (s *Service) Scrape(ctx context.Context) (*appointment.Snapshot, error) {
	start := time.Now()

	snap, err := s.scrape(ctx)

	s.metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ScrapesTotal.WithLabelValues("failed").Inc()
		s.logger.Error("scrape failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.metrics.ScrapesTotal.WithLabelValues("success").Inc()
	s.metrics.Appointments.Set(float64(snap.Count))
	s.metrics.LastSuccess.Set(float64(snap.LastUpdated.Unix()))

	withImages := 0
	for _, apt := range snap.Appointments {
		if apt.HasImage() {
			withImages++
		}
	}
	s.logger.Info("scrape completed",
		"appointments", snap.Count,
		"with_images", withImages,
		"duration", time.Since(start))

	return snap, nil
}

func (s *Service) scrape(ctx context.Context) (*appointment.Snapshot, error) {
	html, err := s.source.ListingHTML(ctx)
	if err != nil {
		return nil, err
	}

	apts, err := s.parser.ParseListing(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}
	s.logger.Info("parsed listing", "appointments", len(apts))

	if s.enricher != nil {
		apts = s.enricher.Enrich(ctx, apts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return appointment.NewSnapshot(apts, s.clock.Now()), nil
}
