// Package metrics holds the prometheus collectors shared by the session
// client and the development server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vidresearch"

// Metrics groups the protocol counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	FramesSent       *prometheus.CounterVec
	FramesReceived   *prometheus.CounterVec
	DecodeErrors     prometheus.Counter
	StateTransitions *prometheus.CounterVec
	Sessions         prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the socket, by command or event type.",
		}, []string{"kind"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames decoded from the socket, by command or event type.",
		}, []string{"kind"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they failed to decode.",
		}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Session state changes, by target state.",
		}, []string{"state"}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open WebSocket sessions.",
		}),
	}
}

func (m *Metrics) Sent(kind string) {
	if m != nil {
		m.FramesSent.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Received(kind string) {
	if m != nil {
		m.FramesReceived.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) DecodeFailed() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

func (m *Metrics) Transition(state string) {
	if m != nil {
		m.StateTransitions.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.Sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.Sessions.Dec()
	}
}
