// Package metrics exposes Prometheus counters for the control loop.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sump",
			Subsystem: "loop",
			Name:      "cycles_total",
			Help:      "Control loop cycles executed.",
		},
	)
	edges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sump",
			Subsystem: "pump",
			Name:      "edges_total",
			Help:      "Pump state transitions observed, including the first observation.",
		},
		[]string{"state"},
	)
	framesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sump",
			Subsystem: "client",
			Name:      "frames_sent_total",
			Help:      "Status frames fully delivered to a client.",
		},
	)
	clientConnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sump",
			Subsystem: "client",
			Name:      "connects_total",
			Help:      "Client connections accepted.",
		},
	)
	clientDisconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sump",
			Subsystem: "client",
			Name:      "disconnects_total",
			Help:      "Client slots torn down (peer close, send failure, or replacement).",
		},
	)
)

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(cycles, edges, framesSent, clientConnects, clientDisconnects)
	})
}

// RecordCycle counts one control loop cycle.
func RecordCycle() {
	cycles.Inc()
}

// RecordEdge counts one pump state transition.
func RecordEdge(active bool) {
	state := "off"
	if active {
		state = "on"
	}
	edges.WithLabelValues(state).Inc()
}

// RecordFrame counts one fully delivered status frame.
func RecordFrame() {
	framesSent.Inc()
}

// RecordConnect counts one accepted client.
func RecordConnect() {
	clientConnects.Inc()
}

// RecordDisconnect counts one emptied client slot.
func RecordDisconnect() {
	clientDisconnects.Inc()
}
