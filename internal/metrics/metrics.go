// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         *prometheus.HistogramVec
	recordsTotal               *prometheus.CounterVec
	applicationsTotal          *prometheus.CounterVec
	consistencyWarningsTotal   prometheus.Counter
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetches_total",
				Help: "Total number of proxied fetches, labeled by target site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by target site.",
			},
			[]string{"site"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total number of pipeline runs, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Histogram of pipeline run durations, labeled by stage.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "Total number of catalog records written, labeled by stage.",
			},
			[]string{"stage"},
		)

		applicationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_applications_total",
				Help: "Total number of application submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		consistencyWarningsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_consistency_warnings_total",
				Help: "Applications recorded whose credit decrement failed.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
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
	})
}

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

// ObserveFetch records one gateway fetch.
func ObserveFetch(site string, outcome string, bytesFetched int) {
	Init()
	sanitized := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitized, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveRun records a finished pipeline run.
func ObserveRun(stage string, status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(stage, status).Inc()
	runDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddRecords counts catalog rows written by a stage.
func AddRecords(stage string, n int) {
	Init()
	if n > 0 {
		recordsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveApplication counts one submission attempt by outcome.
func ObserveApplication(outcome string) {
	Init()
	applicationsTotal.WithLabelValues(outcome).Inc()
}

// IncConsistencyWarnings counts an application whose credit decrement failed.
func IncConsistencyWarnings() {
	Init()
	consistencyWarningsTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
