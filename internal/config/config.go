package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Scraper ScraperConfig
	Browser BrowserConfig
	Storage StorageConfig
	Refresh RefreshConfig
	Cache   CacheConfig
	Redis   RedisConfig
	Events  EventsConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	BaseURL          string
	ListingTimeout   time.Duration
	RowWaitTimeout   time.Duration
	ScrollSteps      int
	ScrollStepPx     int
	ScrollPause      time.Duration
	SettleDelay      time.Duration
	DetailTimeout    time.Duration
	ImageConcurrency int
	DetailDelayMin   time.Duration
	DetailDelayMax   time.Duration
	MaxRetries       int
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgent      string
}

type StorageConfig struct {
	SnapshotPath string
	SettingsPath string
}

type RefreshConfig struct {
	Interval time.Duration
}

type CacheConfig struct {
	Backend  string
	ImageTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EventsConfig struct {
	Enabled bool
	Stream  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Scraper: ScraperConfig{
			BaseURL:          getEnvOrDefault("SCRAPER_BASE_URL", "https://shop.beautykuppel-therme-badaibling.de/"),
			ListingTimeout:   getDurationOrDefault("SCRAPER_LISTING_TIMEOUT", 60*time.Second),
			RowWaitTimeout:   getDurationOrDefault("SCRAPER_ROW_WAIT_TIMEOUT", 30*time.Second),
			ScrollSteps:      getIntOrDefault("SCRAPER_SCROLL_STEPS", 5),
			ScrollStepPx:     getIntOrDefault("SCRAPER_SCROLL_STEP_PX", 800),
			ScrollPause:      getDurationOrDefault("SCRAPER_SCROLL_PAUSE", time.Second),
			SettleDelay:      getDurationOrDefault("SCRAPER_SETTLE_DELAY", 2*time.Second),
			DetailTimeout:    getDurationOrDefault("SCRAPER_DETAIL_TIMEOUT", 15*time.Second),
			ImageConcurrency: getIntOrDefault("SCRAPER_IMAGE_CONCURRENCY", 3),
			DetailDelayMin:   getDurationOrDefault("SCRAPER_DETAIL_DELAY_MIN", 0),
			DetailDelayMax:   getDurationOrDefault("SCRAPER_DETAIL_DELAY_MAX", 0),
			MaxRetries:       getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "de-DE,de;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Berlin"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "de-DE"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", DefaultUserAgent),
		},
		Storage: StorageConfig{
			SnapshotPath: getEnvOrDefault("SNAPSHOT_PATH", "public/appointments.json"),
			SettingsPath: getEnvOrDefault("SETTINGS_PATH", "data/settings.json"),
		},
		Refresh: RefreshConfig{
			Interval: getDurationOrDefault("REFRESH_INTERVAL", 5*time.Minute),
		},
		Cache: CacheConfig{
			Backend:  getEnvOrDefault("CACHE_BACKEND", "memory"),
			ImageTTL: getDurationOrDefault("IMAGE_CACHE_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Events: EventsConfig{
			Enabled: getBoolOrDefault("EVENTS_ENABLED", false),
			Stream:  getEnvOrDefault("EVENTS_STREAM", "stream:appointments"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == "redis" || c.Events.Enabled
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Scraper.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SCRAPER_BASE_URL must be an absolute URL, got %q", c.Scraper.BaseURL)
	}

	if c.Scraper.ImageConcurrency < 1 {
		return fmt.Errorf("SCRAPER_IMAGE_CONCURRENCY must be at least 1")
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	if c.Scraper.DetailDelayMin > c.Scraper.DetailDelayMax {
		return fmt.Errorf("SCRAPER_DETAIL_DELAY_MIN cannot be greater than SCRAPER_DETAIL_DELAY_MAX")
	}

	if c.Refresh.Interval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL cannot be negative")
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.Cache.Backend)
	}

	if c.Storage.SnapshotPath == "" {
		return fmt.Errorf("SNAPSHOT_PATH is required")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
