// Package monitoring holds the Prometheus metrics of the relay.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeUpstream = "upstream_error"
	OutcomeTimeout  = "timeout"
	OutcomeInternal = "internal_error"
)

// Metrics holds all relay metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	AttachmentsTotal *prometheus.CounterVec
	InFlight         prometheus.Gauge
}

// NewMetrics creates relay metrics registered on reg.
// A nil reg creates unregistered collectors, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditsseus_relay_requests_total",
				Help: "Total number of relayed chat turns by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auditsseus_relay_upstream_duration_seconds",
				Help:    "Duration of the outbound backend call in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		),
		AttachmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditsseus_relay_attachments_total",
				Help: "Total number of forwarded attachments by kind",
			},
			[]string{"kind"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "auditsseus_relay_in_flight",
				Help: "Number of relay calls currently waiting on the backend",
			},
		),
	}
}

// ObserveTurn records the outcome and upstream latency of one relayed turn.
func (m *Metrics) ObserveTurn(outcome string, upstream time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	if upstream > 0 {
		m.UpstreamDuration.WithLabelValues(outcome).Observe(upstream.Seconds())
	}
}

// ObserveAttachment counts a forwarded attachment.
func (m *Metrics) ObserveAttachment(kind string) {
	if m == nil {
		return
	}
	m.AttachmentsTotal.WithLabelValues(kind).Inc()
}
