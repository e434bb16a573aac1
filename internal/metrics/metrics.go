// Package metrics exposes the service's Prometheus instrumentation. All
// collectors are package-level and registered once at init, so any package
// can increment them without wiring.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_events_total",
			Help: "Total number of normalized events processed, by phase",
		},
		[]string{"phase"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observatory_events_dropped_total",
			Help: "Inbound records dropped during normalization",
		},
	)

	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observatory_sessions_created_total",
			Help: "Sessions created, including implicit and reset creations",
		},
	)

	SessionsPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_sessions_pruned_total",
			Help: "Sessions removed or ended by the lifecycle pruner, by reason",
		},
		[]string{"reason"},
	)

	BroadcastsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observatory_broadcasts_total",
			Help: "State broadcasts pushed to WebSocket clients",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "observatory_active_sessions",
			Help: "Sessions currently in the active state",
		},
	)

	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "observatory_connected_clients",
			Help: "Currently connected WebSocket consumers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		EventsDropped,
		SessionsCreated,
		SessionsPruned,
		BroadcastsTotal,
		ActiveSessions,
		ConnectedClients,
	)
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
