package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsReceived counts bus events received, by tag.
	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corvid",
			Name:      "bus_events_received_total",
			Help:      "Total number of event bus frames dispatched, by tag",
		},
		[]string{"tag"},
	)

	// ReconnectsTotal counts bus client reconnect attempts.
	ReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corvid",
			Name:      "bus_reconnects_total",
			Help:      "Total number of event bus reconnect attempts",
		},
		[]string{},
	)

	// CommandsSent counts attack/recon commands dispatched through the
	// bus client.
	CommandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corvid",
			Name:      "commands_sent_total",
			Help:      "Total number of commands sent through the bus client",
		},
		[]string{"outcome"},
	)

	// CapturesAnalyzed counts pcap files run through the handshake
	// analyzer, by verdict.
	CapturesAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corvid",
			Name:      "captures_analyzed_total",
			Help:      "Total number of pcap captures analyzed, by verdict",
		},
		[]string{"verdict"},
	)

	// RecoveryAttempts counts recovery controller attempts, by outcome.
	RecoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corvid",
			Name:      "recovery_attempts_total",
			Help:      "Total number of recovery controller attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// TopologyAPCount is a gauge of currently tracked access points.
	TopologyAPCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "corvid",
			Name:      "topology_ap_count",
			Help:      "Number of access points currently tracked",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus
// registry. Idempotent and safe to call multiple times.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(EventsReceived)
		prometheus.DefaultRegisterer.Register(ReconnectsTotal)
		prometheus.DefaultRegisterer.Register(CommandsSent)
		prometheus.DefaultRegisterer.Register(CapturesAnalyzed)
		prometheus.DefaultRegisterer.Register(RecoveryAttempts)
		prometheus.DefaultRegisterer.Register(TopologyAPCount)
	})
}
