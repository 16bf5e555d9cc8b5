// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PriceCacheHits counts price lookups served from the cache.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockfolio_price_cache_hits_total",
		Help: "Price lookups served from the cache",
	})

	// PriceCacheMisses counts price lookups that went upstream.
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockfolio_price_cache_misses_total",
		Help: "Price lookups not found in the cache",
	})

	// PriceFetches counts live fetches, partitioned by feed and outcome.
	PriceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfolio_price_fetches_total",
		Help: "Live price fetches by feed and outcome",
	}, []string{"feed", "outcome"})

	// PriceFetchLatency tracks upstream fetch duration by feed.
	PriceFetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockfolio_price_fetch_latency_seconds",
		Help:    "Upstream price fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})

	// PriceFallbacks counts tickers resolved to their average-cost fallback.
	PriceFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockfolio_price_fallbacks_total",
		Help: "Tickers resolved to the average-cost fallback",
	})

	// RewardsMinted counts successful activity-reward mints by activity kind.
	RewardsMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfolio_rewards_minted_total",
		Help: "Successful activity reward mints",
	}, []string{"activity"})

	// RewardsSkipped counts mints skipped by the daily-cap or wallet checks.
	RewardsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfolio_rewards_skipped_total",
		Help: "Reward mints skipped before reaching the chain",
	}, []string{"reason"})

	// AchievementsMinted counts successful achievement NFT mints by kind.
	AchievementsMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfolio_achievements_minted_total",
		Help: "Successful achievement NFT mints",
	}, []string{"kind"})

	// RiskJobsSubmitted counts async risk jobs handed to the analytics service.
	RiskJobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockfolio_risk_jobs_submitted_total",
		Help: "Risk computation jobs submitted",
	})

	// WebSocketClients tracks connected notification clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stockfolio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
