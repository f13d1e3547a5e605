package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the alerting
// pipeline.
type Metrics struct {
	AlertsEvaluated  *prometheus.CounterVec // labels: level={normal,caution,warning,danger}
	AlertsSent       *prometheus.CounterVec // labels: channel={email,sms,push}, outcome={success,error}
	AlertsSuppressed prometheus.Counter

	// Weather fetch metrics.
	WeatherFetches       *prometheus.CounterVec // labels: provider, outcome={success,error}
	WeatherCache         *prometheus.CounterVec // labels: result={hit,miss}
	WeatherFetchDuration prometheus.Histogram

	// HTTP surface metrics.
	RateLimited prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AlertsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gustwatch",
			Name:      "alerts_evaluated_total",
			Help:      "Evaluation outcomes by resulting alert level.",
		}, []string{"level"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gustwatch",
			Name:      "alerts_sent_total",
			Help:      "Channel delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gustwatch",
			Name:      "alerts_suppressed_total",
			Help:      "Alerts withheld by the suppression window.",
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gustwatch",
			Name:      "weather_fetches_total",
			Help:      "Upstream weather fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gustwatch",
			Name:      "weather_cache_total",
			Help:      "Weather snapshot cache lookups by result.",
		}, []string{"result"}),
		WeatherFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gustwatch",
			Name:      "weather_fetch_duration_seconds",
			Help:      "Duration of an upstream weather fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gustwatch",
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit.",
		}),
	}

	prometheus.MustRegister(
		m.AlertsEvaluated,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.WeatherFetches,
		m.WeatherCache,
		m.WeatherFetchDuration,
		m.RateLimited,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AlertsEvaluated:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gustwatch", Name: "alerts_evaluated_total"}, []string{"level"}),
		AlertsSent:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gustwatch", Name: "alerts_sent_total"}, []string{"channel", "outcome"}),
		AlertsSuppressed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gustwatch", Name: "alerts_suppressed_total"}),
		WeatherFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gustwatch", Name: "weather_fetches_total"}, []string{"provider", "outcome"}),
		WeatherCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gustwatch", Name: "weather_cache_total"}, []string{"result"}),
		WeatherFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "gustwatch", Name: "weather_fetch_duration_seconds"}),
		RateLimited:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gustwatch", Name: "http_rate_limited_total"}),
	}
}
