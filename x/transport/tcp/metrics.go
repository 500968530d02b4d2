package tcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/streams/metrics"
)

// Metrics holds TCP transport metrics.
type Metrics struct {
	registry *metrics.ComponentRegistry

	ConnectionsTotal    prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	ConnectionsRejected prometheus.Counter
	ConnectionDuration  prometheus.Histogram
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
}

// NewMetrics creates transport metrics on the shared registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(metrics.NewComponentRegistry("streams", "tcp"))
}

// NewMetricsWith creates transport metrics on reg.
func NewMetricsWith(reg *metrics.ComponentRegistry) *Metrics {
	return &Metrics{
		registry: reg,

		ConnectionsTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "connections_total",
			Help: "Connections opened",
		}),

		ConnectionsActive: reg.NewGauge(prometheus.GaugeOpts{
			Name: "connections_active",
			Help: "Connections currently open",
		}),

		ConnectionsRejected: reg.NewCounter(prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "Inbound connections refused because the server was full",
		}),

		ConnectionDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "connection_duration_seconds",
			Help:    "How long connections stayed open",
			Buckets: metrics.LifetimeBuckets,
		}),

		BytesRead: reg.NewCounter(prometheus.CounterOpts{
			Name: "bytes_read_total",
			Help: "Bytes read from connections",
		}),

		BytesWritten: reg.NewCounter(prometheus.CounterOpts{
			Name: "bytes_written_total",
			Help: "Bytes written to connections",
		}),
	}
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) connClosed(lifetime time.Duration) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
	m.ConnectionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) connRejected() {
	if m == nil {
		return
	}
	m.ConnectionsRejected.Inc()
}

func (m *Metrics) addRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
}

func (m *Metrics) addWritten(n int) {
	if m == nil {
		return
	}
	m.BytesWritten.Add(float64(n))
}
