package sink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/streams/metrics"
)

// Metrics holds fan-out metrics, labelled by fan-out name.
type Metrics struct {
	registry *metrics.ComponentRegistry

	ItemsEnqueued  *prometheus.CounterVec
	ItemsProcessed *prometheus.CounterVec
	ItemsDropped   *prometheus.CounterVec
	QueueDepth     *prometheus.GaugeVec
	WorkersAlive   *prometheus.GaugeVec
	WorkerFailures *prometheus.CounterVec
	ProcessSeconds *prometheus.HistogramVec
}

// NewMetrics creates fan-out metrics on the shared registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(metrics.NewComponentRegistry("streams", "fanout"))
}

// NewMetricsWith creates fan-out metrics on reg.
func NewMetricsWith(reg *metrics.ComponentRegistry) *Metrics {
	return &Metrics{
		registry: reg,

		ItemsEnqueued: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "items_enqueued_total",
			Help: "Items handed to a fan-out sink",
		}, []string{"fanout"}),

		ItemsProcessed: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "items_processed_total",
			Help: "Items delivered to the wrapped sink",
		}, []string{"fanout"}),

		ItemsDropped: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "items_dropped_total",
			Help: "Items discarded because the fan-out was stopped",
		}, []string{"fanout"}),

		QueueDepth: reg.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Items waiting for a worker",
		}, []string{"fanout"}),

		WorkersAlive: reg.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workers_alive",
			Help: "Workers still draining the queue",
		}, []string{"fanout"}),

		WorkerFailures: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_failures_total",
			Help: "Workers terminated by a failing sink",
		}, []string{"fanout"}),

		ProcessSeconds: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "process_duration_seconds",
			Help:    "Time spent in the wrapped sink per item",
			Buckets: metrics.DurationBuckets,
		}, []string{"fanout"}),
	}
}

func (m *Metrics) recordEnqueued(name string, depth int) {
	if m == nil {
		return
	}
	m.ItemsEnqueued.WithLabelValues(name).Inc()
	m.QueueDepth.WithLabelValues(name).Set(float64(depth))
}

func (m *Metrics) recordProcessed(name string, seconds float64, depth int) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(name).Inc()
	m.ProcessSeconds.WithLabelValues(name).Observe(seconds)
	m.QueueDepth.WithLabelValues(name).Set(float64(depth))
}

func (m *Metrics) recordDropped(name string) {
	if m == nil {
		return
	}
	m.ItemsDropped.WithLabelValues(name).Inc()
}

func (m *Metrics) setAlive(name string, alive int) {
	if m == nil {
		return
	}
	m.WorkersAlive.WithLabelValues(name).Set(float64(alive))
}

func (m *Metrics) recordWorkerFailure(name string) {
	if m == nil {
		return
	}
	m.WorkerFailures.WithLabelValues(name).Inc()
}
