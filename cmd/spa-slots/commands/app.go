package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/spa-slots/internal/browser"
	"github.com/maltedev/spa-slots/internal/config"
	"github.com/maltedev/spa-slots/internal/imagecache"
	"github.com/maltedev/spa-slots/internal/metrics"
	"github.com/maltedev/spa-slots/internal/parser"
	"github.com/maltedev/spa-slots/internal/ratelimit"
	"github.com/maltedev/spa-slots/internal/scraper"
	"github.com/maltedev/spa-slots/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// app holds the pieces both subcommands share.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	browser *browser.Browser
	redis   *redis.Client
	scraper *scraper.Service
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	return cfg, log, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{cfg: cfg, logger: log}

	if cfg.UsesRedis() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	a.browser = b

	p, err := parser.NewBookingParser(cfg.Scraper.BaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}

	source := scraper.NewPlaywrightSource(b, scraper.SourceOptions{
		BaseURL:        cfg.Scraper.BaseURL,
		ListingTimeout: cfg.Scraper.ListingTimeout,
		RowWaitTimeout: cfg.Scraper.RowWaitTimeout,
		ScrollSteps:    cfg.Scraper.ScrollSteps,
		ScrollStepPx:   cfg.Scraper.ScrollStepPx,
		ScrollPause:    cfg.Scraper.ScrollPause,
		SettleDelay:    cfg.Scraper.SettleDelay,
		DetailTimeout:  cfg.Scraper.DetailTimeout,
		MaxRetries:     cfg.Scraper.MaxRetries,
	}, log)

	enricher := scraper.NewEnricher(
		source,
		p,
		a.imageCache(),
		ratelimit.NewJitterLimiter(cfg.Scraper.DetailDelayMin, cfg.Scraper.DetailDelayMax),
		scraper.EnricherOptions{
			Concurrency: cfg.Scraper.ImageConcurrency,
			Timeout:     cfg.Scraper.DetailTimeout,
		},
		m,
		log,
	)

	a.scraper = scraper.NewService(source, p, enricher, nil, m, log)
	return a, nil
}

func (a *app) imageCache() imagecache.Cache {
	if a.cfg.Cache.Backend == "redis" && a.redis != nil {
		a.logger.Info("using redis image cache", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.Cache.ImageTTL)
		return imagecache.NewRedisCache(a.redis, a.cfg.Cache.ImageTTL)
	}
	return imagecache.NewMemoryCache()
}

func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Error("failed to close browser", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	}
}
