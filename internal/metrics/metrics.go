// Package metrics exposes Prometheus collectors for the news monitor.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_sessions_created_total",
		Help: "Total number of fetch sessions created by the pool.",
	})

	sessionsDisposedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_sessions_disposed_total",
		Help: "Total number of fetch sessions disposed.",
	})

	poolIdleSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_pool_idle_sessions",
		Help: "Number of idle sessions currently held by the pool.",
	})

	poolInUseSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_pool_in_use_sessions",
		Help: "Number of sessions currently checked out of the pool.",
	})

	pageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_page_loads_total",
			Help: "Total number of page loads, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	pageLoadAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_page_load_attempts_total",
			Help: "Total number of navigation attempts, labeled by site.",
		},
		[]string{"site"},
	)

	articlesExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_articles_extracted_total",
			Help: "Total number of new articles extracted, labeled by source.",
		},
		[]string{"source"},
	)

	sourceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_source_runs_total",
			Help: "Total number of source runs, labeled by source and status.",
		},
		[]string{"source", "status"},
	)

	sourceRunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monitor_source_run_duration_seconds",
			Help:    "Histogram of source run durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		},
		[]string{"source"},
	)

	feedArticles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_feed_articles",
		Help: "Number of articles in the most recent combined feed.",
	})

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monitor_rate_limit_delays_seconds",
			Help:    "Histogram of politeness limiter wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSessionCreated increments the created-sessions counter.
func ObserveSessionCreated() {
	sessionsCreatedTotal.Inc()
}

// ObserveSessionDisposed increments the disposed-sessions counter.
func ObserveSessionDisposed() {
	sessionsDisposedTotal.Inc()
}

// SetPoolSizes records the pool's idle and checked-out session counts.
func SetPoolSizes(idle, inUse int) {
	poolIdleSessions.Set(float64(idle))
	poolInUseSessions.Set(float64(inUse))
}

// ObservePageLoad records the final outcome of a page load.
func ObservePageLoad(rawURL string, outcome string) {
	pageLoadsTotal.WithLabelValues(SanitizeSite(rawURL), outcome).Inc()
}

// ObserveLoadAttempt records a single navigation attempt.
func ObserveLoadAttempt(rawURL string) {
	pageLoadAttemptsTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveArticles adds n newly extracted articles for source.
func ObserveArticles(source string, n int) {
	if n <= 0 {
		return
	}
	articlesExtractedTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveSourceRun records the status and duration of one source run.
func ObserveSourceRun(source, status string, duration time.Duration) {
	sourceRunsTotal.WithLabelValues(source, status).Inc()
	sourceRunDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// SetFeedArticles records the size of the latest combined feed.
func SetFeedArticles(n int) {
	feedArticles.Set(float64(n))
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
