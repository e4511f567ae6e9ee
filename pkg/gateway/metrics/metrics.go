// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec

	// Stream metrics
	AudioBytesTotal      *prometheus.CounterVec
	TurnsTotal           prometheus.Counter
	InterruptionsTotal   prometheus.Counter
	MalformedFramesTotal prometheus.Counter
	ToolCallsTotal       *prometheus.CounterVec
}

// New creates a Metrics instance with all gateway metrics registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voicegate"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active live sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of live sessions",
		},
		[]string{"status"},
	)

	sessionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Live session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"model"},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total audio bytes relayed",
		},
		[]string{"direction"},
	)

	turnsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total completed assistant turns",
		},
	)

	interruptionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total assistant turns cut off by user input",
		},
	)

	malformedFramesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Total inbound audio frames dropped as malformed",
		},
	)

	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total tool invocations requested by the model",
		},
		[]string{"tool", "status"},
	)

	registry.MustRegister(
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		audioBytesTotal,
		turnsTotal,
		interruptionsTotal,
		malformedFramesTotal,
		toolCallsTotal,
	)

	return &Metrics{
		registry:             registry,
		SessionsActive:       sessionsActive,
		SessionsTotal:        sessionsTotal,
		SessionDuration:      sessionDuration,
		AudioBytesTotal:      audioBytesTotal,
		TurnsTotal:           turnsTotal,
		InterruptionsTotal:   interruptionsTotal,
		MalformedFramesTotal: malformedFramesTotal,
		ToolCallsTotal:       toolCallsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart records a new live session starting.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a live session ending.
func (m *Metrics) RecordSessionEnd(model, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordAudio records relayed audio bytes.
func (m *Metrics) RecordAudio(direction string, bytes int) {
	if m == nil || bytes <= 0 {
		return
	}
	m.AudioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// RecordTurn records a completed assistant turn.
func (m *Metrics) RecordTurn() {
	if m == nil {
		return
	}
	m.TurnsTotal.Inc()
}

// RecordInterruption records a barge-in.
func (m *Metrics) RecordInterruption() {
	if m == nil {
		return
	}
	m.InterruptionsTotal.Inc()
}

// RecordMalformedFrame records a dropped inbound frame.
func (m *Metrics) RecordMalformedFrame() {
	if m == nil {
		return
	}
	m.MalformedFramesTotal.Inc()
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
