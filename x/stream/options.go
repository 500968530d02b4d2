package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Option configures a manager.
type Option func(*Config)

// ExitHook is called once on the manager goroutine after teardown has finished and
// before Done is closed. It must not call Wait on the same manager.
type ExitHook func(Exit)

// Exit describes how a manager ended.
type Exit struct {
	ID        string
	Direction Direction
	Records   uint64
	Duration  time.Duration
	Err       error
}

// Config holds manager configuration.
type Config struct {
	// ID identifies the manager in logs, metrics and the monitor. Defaults to a random UUID.
	ID      string
	Logger  zerolog.Logger
	Metrics *Metrics
	OnExit  ExitHook
}

func defaultConfig() Config {
	return Config{
		ID:     uuid.NewString(),
		Logger: zerolog.Nop(),
	}
}

func WithID(id string) Option {
	return func(c *Config) {
		c.ID = id
	}
}

// WithLogger sets the parent logger; the manager derives a child logger from it.
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

// WithExitHook registers a hook observing the manager's termination.
func WithExitHook(hook ExitHook) Option {
	return func(c *Config) {
		c.OnExit = hook
	}
}
