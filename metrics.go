package nanogio

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts socket traffic. A nil *Metrics records nothing.
type Metrics struct {
	messages  *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	suspended *prometheus.CounterVec
}

// NewMetrics creates the socket counters and registers them with reg,
// or with the default registerer if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nanogio",
				Subsystem: "socket",
				Name:      "messages_total",
				Help:      "Total number of messages transferred.",
			},
			[]string{"pattern", "direction"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nanogio",
				Subsystem: "socket",
				Name:      "bytes_total",
				Help:      "Total number of payload bytes transferred.",
			},
			[]string{"pattern", "direction"},
		),
		suspended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nanogio",
				Subsystem: "socket",
				Name:      "would_block_total",
				Help:      "Total number of transport calls that reported would-block.",
			},
			[]string{"pattern", "direction"},
		),
	}
	reg.MustRegister(m.messages, m.bytes, m.suspended)
	return m
}

const (
	directionRecv = "recv"
	directionSend = "send"
)

func (m *Metrics) transferred(pattern, direction string, n int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(pattern, direction).Inc()
	m.bytes.WithLabelValues(pattern, direction).Add(float64(n))
}

func (m *Metrics) wouldBlock(pattern, direction string) {
	if m == nil {
		return
	}
	m.suspended.WithLabelValues(pattern, direction).Inc()
}

// Messages returns the message counter for a pattern and direction ("recv" or "send").
func (m *Metrics) Messages(pattern, direction string) prometheus.Counter {
	return m.messages.WithLabelValues(pattern, direction)
}

// Bytes returns the payload byte counter for a pattern and direction.
func (m *Metrics) Bytes(pattern, direction string) prometheus.Counter {
	return m.bytes.WithLabelValues(pattern, direction)
}

// WouldBlock returns the would-block counter for a pattern and direction.
func (m *Metrics) WouldBlock(pattern, direction string) prometheus.Counter {
	return m.suspended.WithLabelValues(pattern, direction)
}
