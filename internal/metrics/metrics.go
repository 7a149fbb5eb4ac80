// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Wire client connection state and reconnects
//   - Execution-report bus depth and drops
//   - Reference price half-life and staleness
//   - Latency probe round-trip time
//   - Execution coordinator outcomes
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this agent exposes behind its own
// prometheus.Registry rather than the global default, so multiple agent
// instances (or tests) never collide on registration.
type Registry struct {
	reg *prometheus.Registry

	WireConnected     prometheus.Gauge
	WireReconnects    prometheus.Counter
	WireMessagesTotal *prometheus.CounterVec

	BusDepth *prometheus.GaugeVec
	BusDrops *prometheus.CounterVec

	ReferenceHalfLifeSeconds *prometheus.GaugeVec
	ReferenceStale           *prometheus.GaugeVec

	ProbeRTTMillis *prometheus.GaugeVec

	ExecOutcomesTotal *prometheus.CounterVec
	ExecResidualQty   *prometheus.HistogramVec
}

// New builds and registers every metric.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		WireConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mesita_wire_connected",
			Help: "1 if the wire client's websocket connection is currently up, else 0.",
		}),
		WireReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "mesita_wire_reconnects_total",
			Help: "Total number of times the wire client has reconnected.",
		}),
		WireMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesita_wire_messages_total",
			Help: "Total inbound wire messages by type.",
		}, []string{"type"}),

		BusDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mesita_erbus_depth",
			Help: "Current number of buffered execution reports per subscription.",
		}, []string{"subscription"}),
		BusDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesita_erbus_drops_total",
			Help: "Total execution reports dropped by drop-oldest subscriptions.",
		}, []string{"subscription"}),

		ReferenceHalfLifeSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mesita_reference_half_life_seconds",
			Help: "Current EMA half-life configured on the reference estimator.",
		}, []string{"pair"}),
		ReferenceStale: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mesita_reference_stale",
			Help: "1 if the reference estimator has no usable quote for a pair, else 0.",
		}, []string{"pair"}),

		ProbeRTTMillis: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mesita_latency_probe_rtt_milliseconds",
			Help: "Latency probe's current median round-trip time.",
		}, []string{"pair"}),

		ExecOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesita_execcoord_outcomes_total",
			Help: "Total two-leg execution outcomes by result.",
		}, []string{"pair", "direction", "result"}),
		ExecResidualQty: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mesita_execcoord_residual_qty",
			Help:    "Distribution of unfilled residual quantity after the sell leg.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pair"}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
