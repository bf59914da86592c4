// Package metrics holds the prometheus collectors shared by the client and relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the messaging counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	FramesSent     *prometheus.CounterVec
	Connections    *prometheus.CounterVec
	OpenSurfaces   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dock",
			Name:      "frames_received_total",
			Help:      "Inbound frames decoded, by frame type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dock",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped, by reason.",
		}, []string{"reason"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dock",
			Name:      "frames_sent_total",
			Help:      "Outbound frames written, by frame type.",
		}, []string{"type"}),
		Connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dock",
			Name:      "connection_transitions_total",
			Help:      "Connection state transitions, by resulting state.",
		}, []string{"state"}),
		OpenSurfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dock",
			Name:      "open_surfaces",
			Help:      "Conversations with an open surface.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesReceived, m.FramesDropped, m.FramesSent, m.Connections, m.OpenSurfaces)
	}
	return m
}

// Received counts an inbound frame of the given type.
func (m *Metrics) Received(frameType string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(frameType).Inc()
}

// Dropped counts an inbound frame discarded for reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// Sent counts an outbound frame of the given type.
func (m *Metrics) Sent(frameType string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(frameType).Inc()
}

// Transition counts a connection entering state.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues(state).Inc()
}

// Surfaces records the number of open surfaces.
func (m *Metrics) Surfaces(n int) {
	if m == nil {
		return
	}
	m.OpenSurfaces.Set(float64(n))
}
