// Package metrics exposes Prometheus collectors for the marketplace.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "axiomeer"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path"},
	)

	shopResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shop",
			Name:      "results_total",
			Help:      "Shop requests by outcome.",
		},
		[]string{"status"},
	)

	salesStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales_agent",
			Name:      "outcomes_total",
			Help:      "Sales agent selections by the pipeline stage that produced them, or the failure code.",
		},
		[]string{"outcome"},
	)

	executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "runs_total",
			Help:      "Provider executions by result and evidence quality.",
		},
		[]string{"ok", "quality"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "run_duration_seconds",
			Help:      "Provider call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"ok"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache and result.",
		},
		[]string{"cache", "result"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		shopResults,
		salesStages,
		executions,
		executionDuration,
		cacheLookups,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency for gin routes.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "/metrics" {
			c.Next()
			return
		}
		if path == "" {
			path = "unmatched"
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		method := strings.ToUpper(c.Request.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordShop counts a shop outcome (OK or NO_MATCH).
func RecordShop(status string) {
	shopResults.WithLabelValues(status).Inc()
}

// RecordSalesOutcome counts which sales agent stage produced a selection,
// or the error code when none did.
func RecordSalesOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	salesStages.WithLabelValues(outcome).Inc()
}

// RecordExecution records a provider execution. A zero duration means the
// provider was not called and only the counter moves.
func RecordExecution(ok bool, quality string, duration time.Duration) {
	if quality == "" {
		quality = "none"
	}
	okLabel := strconv.FormatBool(ok)
	executions.WithLabelValues(okLabel, quality).Inc()
	if duration > 0 {
		executionDuration.WithLabelValues(okLabel).Observe(duration.Seconds())
	}
}

// RecordCacheLookup counts a hit or miss on the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited() {
	rateLimited.Inc()
}
