package periodrunner

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultPeriod is used when the config leaves Period unset.
const DefaultPeriod = time.Minute

// PeriodRunnerConfig configures a PeriodRunner.
type PeriodRunnerConfig struct {
	// Handler is the function invoked whenever a new period starts.
	Handler PeriodCallback
	// Period is the length of one period.
	Period time.Duration
	// Origin is the timestamp at which period 0 starts. Defaults to the time of Start.
	Origin time.Time
	// StopOnError ends the run loop on the first handler error. Otherwise errors are
	// logged and the runner keeps going.
	StopOnError bool
	// Now returns the current time. Useful for deterministic tests. Defaults to time.Now if nil.
	Now    func() time.Time
	Logger zerolog.Logger
}

// DefaultPeriodRunnerConfig returns a config with sensible defaults.
func DefaultPeriodRunnerConfig(logger zerolog.Logger) PeriodRunnerConfig {
	return PeriodRunnerConfig{
		Handler: nil, // Set later by an upper layer
		Period:  DefaultPeriod,
		Now:     time.Now,
		Logger:  logger.With().Str("component", "period-runner").Logger(),
	}
}
