package stream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/streams/metrics"
)

// Metrics holds stream manager metrics, labelled by direction.
type Metrics struct {
	registry *metrics.ComponentRegistry

	Records         *prometheus.CounterVec
	RecordDuration  *prometheus.HistogramVec
	Exits           *prometheus.CounterVec
	ActiveManagers  *prometheus.GaugeVec
	ManagerLifetime *prometheus.HistogramVec
}

// NewMetrics creates stream metrics on the shared registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(metrics.NewComponentRegistry("streams", "manager"))
}

// NewMetricsWith creates stream metrics on reg.
func NewMetricsWith(reg *metrics.ComponentRegistry) *Metrics {
	return &Metrics{
		registry: reg,

		Records: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "records_total",
			Help: "Records read or written",
		}, []string{"direction"}),

		RecordDuration: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "record_duration_seconds",
			Help:    "Time to read and deliver, or dequeue and write, one record",
			Buckets: metrics.DurationBuckets,
		}, []string{"direction"}),

		Exits: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "exits_total",
			Help: "Manager exits by error type",
		}, []string{"direction", "type"}),

		ActiveManagers: reg.NewGaugeVec(prometheus.GaugeOpts{
			Name: "active",
			Help: "Managers currently running",
		}, []string{"direction"}),

		ManagerLifetime: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifetime_seconds",
			Help:    "Time from start to closed",
			Buckets: metrics.LifetimeBuckets,
		}, []string{"direction"}),
	}
}

func (m *Metrics) recordStarted(dir Direction) {
	if m == nil {
		return
	}
	m.ActiveManagers.WithLabelValues(string(dir)).Inc()
}

func (m *Metrics) recordRecord(dir Direction, took time.Duration) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(string(dir)).Inc()
	m.RecordDuration.WithLabelValues(string(dir)).Observe(took.Seconds())
}

func (m *Metrics) recordExit(dir Direction, err error, lifetime time.Duration) {
	if m == nil {
		return
	}
	kind := "none"
	if t, ok := TypeOf(err); ok {
		kind = t.String()
	}
	m.ActiveManagers.WithLabelValues(string(dir)).Dec()
	m.Exits.WithLabelValues(string(dir), kind).Inc()
	m.ManagerLifetime.WithLabelValues(string(dir)).Observe(lifetime.Seconds())
}
