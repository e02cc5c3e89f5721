// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gatehouse engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets suited for credential verification
// latencies, from sub-millisecond header parsing to slow key-derivation
// checks and remote introspection calls.
var AuthBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

var (
	// AuthAttemptsTotal counts strategy evaluations by strategy name and outcome.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_auth_attempts_total",
			Help: "Strategy evaluations",
		},
		[]string{"strategy", "outcome"},
	)

	// StrategyDuration records strategy evaluation duration in seconds.
	StrategyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_strategy_duration_seconds",
			Help:    "Strategy evaluation duration",
			Buckets: AuthBuckets,
		},
		[]string{"strategy"},
	)

	// LoginsTotal counts established login sessions.
	LoginsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_logins_total",
			Help: "Login sessions established",
		},
	)

	// LogoutsTotal counts terminated login sessions.
	LogoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_logouts_total",
			Help: "Login sessions terminated",
		},
	)

	// SessionRestoresTotal counts users restored from existing sessions.
	SessionRestoresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_session_restores_total",
			Help: "Users restored from sessions",
		},
	)

	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthAttemptsTotal,
		StrategyDuration,
		LoginsTotal,
		LogoutsTotal,
		SessionRestoresTotal,
		RequestsTotal,
		RequestDuration,
	)
}
