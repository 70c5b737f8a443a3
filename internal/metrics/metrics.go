// Package metrics exposes Prometheus collectors shared by the fetcher, the
// analysis pipeline and the HTTP API.
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
	fetchResponsesTotal        *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	analysesTotal              *prometheus.CounterVec
	analysisInputTokens        prometheus.Histogram
	summarizerDurationSeconds  prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchResponsesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitescope_fetch_responses_total",
				Help: "Total number of upstream fetch round trips, labeled by site and status code.",
			},
			[]string{"site", "code"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitescope_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitescope_http_requests_total",
				Help: "Total number of API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitescope_http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitescope_analyses_total",
				Help: "Total number of site analyses, labeled by status.",
			},
			[]string{"status"},
		)

		analysisInputTokens = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitescope_analysis_input_tokens",
				Help:    "Histogram of prompt sizes sent to the summarizer, in tokens.",
				Buckets: prometheus.ExponentialBuckets(256, 2, 8),
			},
		)

		summarizerDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitescope_summarizer_duration_seconds",
				Help:    "Histogram of summarizer call latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
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

// ObserveFetch records one upstream round trip. A code of 0 means the
// request failed before a response arrived.
func ObserveFetch(site string, code int, duration time.Duration) {
	Init()
	sanitized := SanitizeSite(site)
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	fetchResponsesTotal.WithLabelValues(sanitized, label).Inc()
	fetchDurationSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAnalysis increments the analysis counter for the given status.
func ObserveAnalysis(status string) {
	Init()
	analysesTotal.WithLabelValues(status).Inc()
}

// ObserveAnalysisTokens records the size of a prompt after truncation.
func ObserveAnalysisTokens(tokens int) {
	Init()
	analysisInputTokens.Observe(float64(tokens))
}

// ObserveSummarizer records how long one summarizer call took.
func ObserveSummarizer(duration time.Duration) {
	Init()
	summarizerDurationSeconds.Observe(duration.Seconds())
}
