// Package metrics provides Prometheus instrumentation for the pairing
// server. It exposes gauges for connection, queue, and session counts,
// counters for match and relay throughput, and a histogram for search wait
// time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drift_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// SearchingTotal tracks the current number of sessions waiting in a queue.
	SearchingTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drift_searching_total",
		Help: "Current number of sessions in the matchmaking queues",
	})

	// ActiveSessions tracks the current number of bound pairs.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drift_active_sessions",
		Help: "Current number of bound two-party sessions",
	})

	// MatchesTotal counts formed pairs.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drift_matches_total",
		Help: "Total number of pairs bound",
	})

	// SessionsEndedTotal counts dissolved pairs, labeled by reason:
	// "skipped", "ended", "disconnected", "timeout".
	SessionsEndedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_sessions_ended_total",
		Help: "Total number of pairs dissolved",
	}, []string{"reason"})

	// SearchTimeoutsTotal counts searches evicted by the housekeeping sweep.
	SearchTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drift_search_timeouts_total",
		Help: "Total number of searches that exceeded the max wait",
	})

	// RelaysTotal counts relayed payloads, labeled by kind ("signal",
	// "chat") and outcome ("forwarded", "dropped").
	RelaysTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_relays_total",
		Help: "Total number of relay attempts",
	}, []string{"kind", "outcome"})

	// SearchWait records the time from find-match to bind.
	SearchWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drift_search_wait_seconds",
		Help:    "Time from search start to match",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		SearchingTotal,
		ActiveSessions,
		MatchesTotal,
		SessionsEndedTotal,
		SearchTimeoutsTotal,
		RelaysTotal,
		SearchWait,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
