// Package metrics holds the Prometheus collectors of the DVL driver.
//
// All methods are safe on a nil *Metrics so instrumented code does not need
// to guard every call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Command outcomes recorded by CommandsCompleted.
const (
	OutcomeSuccess       = "success"
	OutcomeDeviceFailure = "device_failure"
	OutcomeTimeout       = "timeout"
	OutcomeTransport     = "transport_failure"
)

// Protocol anomaly kinds recorded by Anomalies.
const (
	AnomalyMalformed      = "malformed"
	AnomalyUnknownType    = "unknown_type"
	AnomalyUnmatchedReply = "unmatched_reply"
)

// Metrics contains the driver's collectors.
type Metrics struct {
	PendingRequests   prometheus.Gauge
	CommandsIssued    *prometheus.CounterVec
	CommandsCompleted *prometheus.CounterVec
	CommandLatency    *prometheus.HistogramVec
	ReportsReceived   *prometheus.CounterVec
	Anomalies         *prometheus.CounterVec
}

// New creates the driver metrics.
func New() *Metrics {
	return &Metrics{
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dvla50",
			Subsystem: "commands",
			Name:      "pending",
			Help:      "Commands awaiting a reply from the DVL",
		}),

		CommandsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvla50",
				Subsystem: "commands",
				Name:      "issued_total",
				Help:      "Total number of commands issued",
			},
			[]string{"command"},
		),

		CommandsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvla50",
				Subsystem: "commands",
				Name:      "completed_total",
				Help:      "Total number of completed commands by outcome",
			},
			[]string{"command", "outcome"},
		),

		CommandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dvla50",
				Subsystem: "commands",
				Name:      "latency_seconds",
				Help:      "Time from issue to reply for answered commands",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"command"},
		),

		ReportsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvla50",
				Subsystem: "reports",
				Name:      "received_total",
				Help:      "Total number of telemetry reports received",
			},
			[]string{"type"},
		),

		Anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvla50",
				Subsystem: "protocol",
				Name:      "anomalies_total",
				Help:      "Lines skipped by the receive loop",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PendingRequests,
		m.CommandsIssued,
		m.CommandsCompleted,
		m.CommandLatency,
		m.ReportsReceived,
		m.Anomalies,
	}
}

// Register adds every collector to reg. On failure nothing stays registered.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}

	collectors := m.collectors()

	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range collectors[:i] {
				reg.Unregister(registered)
			}

			return err
		}
	}

	return nil
}

// Unregister removes every collector from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	if m == nil || reg == nil {
		return
	}

	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}

// CommandIssued records a newly queued command.
func (m *Metrics) CommandIssued(command string) {
	if m == nil {
		return
	}

	m.CommandsIssued.WithLabelValues(command).Inc()
	m.PendingRequests.Inc()
}

// CommandCompleted records the terminal outcome of a queued command.
func (m *Metrics) CommandCompleted(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.PendingRequests.Dec()
	m.CommandsCompleted.WithLabelValues(command, outcome).Inc()

	if outcome == OutcomeSuccess || outcome == OutcomeDeviceFailure {
		m.CommandLatency.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}

// ReportReceived records one telemetry report.
func (m *Metrics) ReportReceived(reportType string) {
	if m == nil {
		return
	}

	m.ReportsReceived.WithLabelValues(reportType).Inc()
}

// Anomaly records one skipped line.
func (m *Metrics) Anomaly(kind string) {
	if m == nil {
		return
	}

	m.Anomalies.WithLabelValues(kind).Inc()
}
