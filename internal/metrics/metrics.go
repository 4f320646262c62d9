package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image lookup results.
const (
	ImageHit   = "hit"
	ImageMiss  = "miss"
	ImageError = "error"
	ImageNone  = "none"
)

// Metrics holds the scraper's Prometheus collectors.
type Metrics struct {
	ScrapesTotal   *prometheus.CounterVec
	ScrapeDuration prometheus.Histogram
	Appointments   prometheus.Gauge
	LastSuccess    prometheus.Gauge
	ImageLookups   *prometheus.CounterVec
}

// New registers the collectors on reg. Use a fresh prometheus.NewRegistry()
// per process (or per test).
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Total number of listing scrapes by outcome",
		}, []string{"status"}),
		ScrapeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Time spent on a full scrape including image enrichment",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		Appointments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "appointments",
			Help:      "Number of appointments in the current snapshot",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful scrape",
		}),
		ImageLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_lookups_total",
			Help:      "Treatment image lookups by result",
		}, []string{"result"}),
	}
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry(), "spa_slots")
}
