package sink

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Option configures a FanOut.
type Option func(*Config)

// WorkerExitHook is invoked once per worker when it terminates.
type WorkerExitHook func(WorkerExit)

// WorkerExit describes a terminated worker. Err is nil when the worker ended because
// the fan-out was stopped.
type WorkerExit struct {
	FanOut    string
	Worker    int
	Processed uint64
	Err       error
}

// Config holds fan-out configuration.
type Config struct {
	// Name labels logs and metrics. Defaults to a random UUID.
	Name string
	// QueueCapacity bounds the queue when positive. Zero keeps the queue unbounded,
	// in which case Process never blocks and memory grows if workers fall behind.
	QueueCapacity int
	Logger        zerolog.Logger
	Metrics       *Metrics
	OnWorkerExit  WorkerExitHook
}

func defaultConfig() Config {
	return Config{
		Name:   uuid.NewString(),
		Logger: zerolog.Nop(),
	}
}

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithBoundedQueue makes Process block while capacity items are waiting.
func WithBoundedQueue(capacity int) Option {
	return func(c *Config) {
		c.QueueCapacity = capacity
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithMetrics enables metrics collection.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithWorkerExitHook registers a hook observing worker termination.
func WithWorkerExitHook(hook WorkerExitHook) Option {
	return func(c *Config) {
		c.OnWorkerExit = hook
	}
}
