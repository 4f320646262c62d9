package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/spa-slots/internal/appointment"
	"github.com/maltedev/spa-slots/internal/imagecache"
	"github.com/maltedev/spa-slots/internal/metrics"
	"github.com/maltedev/spa-slots/internal/parser"
	"github.com/maltedev/spa-slots/internal/ratelimit"
	"golang.org/x/sync/semaphore"
)

type EnricherOptions struct {
	Concurrency int
	Timeout     time.Duration
}

// Enricher attaches a treatment image to every appointment. Each distinct
// treatment template is looked up once per run.
type Enricher struct {
	source  Source
	parser  *parser.BookingParser
	cache   imagecache.Cache
	limiter ratelimit.Limiter
	opts    EnricherOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEnricher(source Source, p *parser.BookingParser, cache imagecache.Cache, limiter ratelimit.Limiter, opts EnricherOptions, m *metrics.Metrics, logger *slog.Logger) *Enricher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if limiter == nil {
		limiter = ratelimit.NewJitterLimiter(0, 0)
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Enricher{
		source:  source,
		parser:  p,
		cache:   cache,
		limiter: limiter,
		opts:    opts,
		metrics: m,
		logger:  logger.With("component", "enricher"),
	}
}

// Enrich returns a copy of apts with ImageURL set where an image was found.
// Lookup failures leave ImageURL nil.
func (e *Enricher) Enrich(ctx context.Context, apts []appointment.Appointment) []appointment.Appointment {
	order, urls := uniqueTemplates(apts)

	images := make(map[string]string, len(order))
	var misses []string
	for _, id := range order {
		img, ok, err := e.cache.Get(ctx, id)
		if err != nil {
			e.logger.Warn("image cache lookup failed", "template", id, "error", err)
		}
		if ok {
			images[id] = img
			e.metrics.ImageLookups.WithLabelValues(metrics.ImageHit).Inc()
			continue
		}
		misses = append(misses, id)
	}

	e.logger.Info("fetching treatment images",
		"templates", len(order),
		"cached", len(order)-len(misses),
		"to_fetch", len(misses))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(e.opts.Concurrency))
	)
	for _, id := range misses {
		if err := sem.Acquire(ctx, 1); err != nil {
			e.logger.Warn("image enrichment interrupted", "error", err)
			break
		}
		wg.Add(1)
		go func(id, url string) {
			defer wg.Done()
			defer sem.Release(1)

			img, ok := e.fetchImage(ctx, id, url)
			if !ok {
				return
			}

			mu.Lock()
			images[id] = img
			mu.Unlock()

			if err := e.cache.Set(ctx, id, img); err != nil {
				e.logger.Warn("failed to cache image", "template", id, "error", err)
			}
		}(id, urls[id])
	}
	wg.Wait()

	out := make([]appointment.Appointment, len(apts))
	for i, apt := range apts {
		apt.ImageURL = nil
		if id, ok := parser.TemplateID(apt.BookingURL); ok {
			if img, found := images[id]; found {
				apt.ImageURL = &img
			}
		}
		out[i] = apt
	}
	return out
}

func (e *Enricher) fetchImage(ctx context.Context, id, url string) (string, bool) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	html, err := e.source.DetailHTML(fetchCtx, url)
	if err != nil {
		e.limiter.RecordError()
		e.metrics.ImageLookups.WithLabelValues(metrics.ImageError).Inc()
		e.logger.Warn("error fetching treatment image", "template", id, "url", url, "error", err)
		return "", false
	}
	e.limiter.RecordSuccess()

	img, found, err := e.parser.ParseTreatmentImage(html, url)
	if err != nil {
		e.metrics.ImageLookups.WithLabelValues(metrics.ImageError).Inc()
		e.logger.Warn("failed to parse treatment page", "template", id, "error", err)
		return "", false
	}
	if !found {
		e.metrics.ImageLookups.WithLabelValues(metrics.ImageNone).Inc()
		e.logger.Debug("treatment page has no image", "template", id)
		return "", false
	}

	e.metrics.ImageLookups.WithLabelValues(metrics.ImageMiss).Inc()
	return img, true
}

// uniqueTemplates lists template IDs in first-seen order with the first
// booking URL seen for each.
func uniqueTemplates(apts []appointment.Appointment) ([]string, map[string]string) {
	var order []string
	urls := make(map[string]string)
	for _, apt := range apts {
		id, ok := parser.TemplateID(apt.BookingURL)
		if !ok {
			continue
		}
		if _, seen := urls[id]; seen {
			continue
		}
		urls[id] = apt.BookingURL
		order = append(order, id)
	}
	return order, urls
}
