// Package prometheus provides Prometheus implementations of the interfaces
// in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittopad/pkg/metrics"
)

const namespace = "dittopad"

// Label names.
const (
	LabelCommand = "command"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
	LabelReason  = "reason"
)

// Registration outcomes.
const (
	OutcomeGranted = "granted"
	OutcomeTaken   = "taken"
)

type notepadMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	connectionsActive      prometheus.Gauge

	registrations  *prometheus.CounterVec
	releases       *prometheus.CounterVec
	sessionsActive prometheus.Gauge

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	bytesSaved  prometheus.Counter
	bytesLoaded prometheus.Counter
}

var _ metrics.NotepadMetrics = (*notepadMetrics)(nil)

// NewNotepadMetrics registers notepad metrics on the process registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewNotepadMetrics() metrics.NotepadMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewNotepadMetricsWith(metrics.GetRegistry())
}

// NewNotepadMetricsWith registers notepad metrics on reg.
func NewNotepadMetricsWith(reg prometheus.Registerer) metrics.NotepadMetrics {
	f := promauto.With(reg)

	return &notepadMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "Total number of accepted TCP connections",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "closed_total",
			Help:      "Total number of closed TCP connections",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "force_closed_total",
			Help:      "Connections closed forcibly after the shutdown timeout",
		}),
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of open TCP connections",
		}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "registrations_total",
			Help:      "Username registration attempts by outcome",
		}, []string{LabelOutcome}),
		releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "releases_total",
			Help:      "Username releases by reason",
		}, []string{LabelReason}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of registered usernames",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "total",
			Help:      "Handled protocol commands by command and status",
		}, []string{LabelCommand, LabelStatus}),
		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "duration_milliseconds",
			Help:      "Command handling time in milliseconds, including storage and the reply write",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{LabelCommand}),
		bytesSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "saved_bytes_total",
			Help:      "Bytes written by SAVE",
		}),
		bytesLoaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "loaded_bytes_total",
			Help:      "Bytes read by LOAD",
		}),
	}
}

func (m *notepadMetrics) RecordConnectionAccepted()    { m.connectionsAccepted.Inc() }
func (m *notepadMetrics) RecordConnectionClosed()      { m.connectionsClosed.Inc() }
func (m *notepadMetrics) RecordConnectionForceClosed() { m.connectionsForceClosed.Inc() }

func (m *notepadMetrics) SetActiveConnections(count int32) {
	m.connectionsActive.Set(float64(count))
}

func (m *notepadMetrics) RecordRegistration(granted bool) {
	outcome := OutcomeGranted
	if !granted {
		outcome = OutcomeTaken
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *notepadMetrics) RecordRelease(reason string) {
	m.releases.WithLabelValues(reason).Inc()
}

func (m *notepadMetrics) SetActiveSessions(count int) {
	m.sessionsActive.Set(float64(count))
}

func (m *notepadMetrics) RecordCommand(command, status string, duration time.Duration) {
	m.commands.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *notepadMetrics) RecordBytesSaved(n int) {
	if n > 0 {
		m.bytesSaved.Add(float64(n))
	}
}

func (m *notepadMetrics) RecordBytesLoaded(n int) {
	if n > 0 {
		m.bytesLoaded.Add(float64(n))
	}
}
