package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jrm_client_requests_total",
			Help: "Total number of requests sent to the revocation manager (count)",
		},
		[]string{"method", "endpoint", "status"},
	)

	ClientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jrm_client_request_duration_ms",
			Help:    "Duration of revocation manager requests in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"method", "endpoint"},
	)

	ClientCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jrm_client_cache_hits_total",
			Help: "Total number of responses served from the HTTP cache (count)",
		},
		[]string{"endpoint"},
	)

	TokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jrm_client_token_refreshes_total",
			Help: "Total number of bearer token refreshes after a 401 (count)",
		},
		[]string{"status"},
	)

	RateLimitWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jrm_client_rate_limit_wait_ms",
			Help:    "Time spent waiting on the client-side rate limiter in milliseconds",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jrm_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jrm_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jrm_circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	WatcherActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jrm_watcher_active_rules",
			Help: "Number of rules in the current rule set snapshot (count)",
		},
	)

	WatcherRuleSetTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jrm_watcher_ruleset_timestamp_seconds",
			Help: "Server-side computation time of the current rule set (epoch seconds)",
		},
	)

	WatcherReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jrm_watcher_reloads_total",
			Help: "Total number of rule set reload attempts (count)",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg (the default registerer when nil).
// Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			ClientRequestsTotal,
			ClientRequestDuration,
			ClientCacheHitsTotal,
			TokenRefreshesTotal,
			RateLimitWaitDuration,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			WatcherActiveRules,
			WatcherRuleSetTimestamp,
			WatcherReloadsTotal,
		)
	})
}

func IncClientRequest(method, endpoint string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ClientRequestsTotal.WithLabelValues(method, endpoint, label).Inc()
}

func ObserveClientRequestDuration(method, endpoint string, duration time.Duration) {
	ClientRequestDuration.WithLabelValues(method, endpoint).Observe(float64(duration.Milliseconds()))
}

func IncCacheHit(endpoint string) {
	ClientCacheHitsTotal.WithLabelValues(endpoint).Inc()
}

func IncTokenRefresh(status string) {
	TokenRefreshesTotal.WithLabelValues(status).Inc()
}

func ObserveRateLimitWait(duration time.Duration) {
	RateLimitWaitDuration.Observe(float64(duration.Milliseconds()))
}

func SetWatcherRuleSet(rules int, timestamp int64) {
	WatcherActiveRules.Set(float64(rules))
	WatcherRuleSetTimestamp.Set(float64(timestamp))
}

func IncWatcherReload(status string) {
	WatcherReloadsTotal.WithLabelValues(status).Inc()
}
