package periodrunner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LocalPeriodRunner implements PeriodRunner on the local clock.
// An event is emitted at origin + K * period, for K = 0,1,2,...
type LocalPeriodRunner struct {
	// Log and lifecycle
	log     zerolog.Logger
	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
	// Handler
	handler     PeriodCallback
	stopOnError bool
	// Time management
	period time.Duration
	now    func() time.Time
	origin time.Time
}

// NewLocalPeriodRunner constructs a LocalPeriodRunner using local time.
// If config.Handler is nil, SetHandler must be called before Start.
func NewLocalPeriodRunner(cfg PeriodRunnerConfig) *LocalPeriodRunner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}

	done := make(chan struct{})
	close(done)

	return &LocalPeriodRunner{
		handler:     cfg.Handler,
		stopOnError: cfg.StopOnError,
		period:      cfg.Period,
		now:         cfg.Now,
		origin:      cfg.Origin,
		log:         cfg.Logger,
		done:        done,
	}
}

// SetHandler sets the handler to be called whenever a new period ticks.
// It should be called before Start; otherwise Start will panic.
func (r *LocalPeriodRunner) SetHandler(handler PeriodCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Start begins emitting period events until the context is canceled or Stop is called.
func (r *LocalPeriodRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handler == nil {
		panic("periodrunner: LocalPeriodRunner requires a handler to start")
	}
	if r.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.started = true
	r.done = make(chan struct{})

	if r.origin.IsZero() {
		r.origin = r.now()
	}

	go r.run(runCtx, r.handler, r.done)
	return nil
}

// Stop halts the runner. It does not wait for an in-flight handler; use Done for that.
func (r *LocalPeriodRunner) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	r.started = false
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return nil
}

func (r *LocalPeriodRunner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// run calls the handler whenever there is a new period. lastEmitted makes sure every
// missed period is emitted up to the latest one.
func (r *LocalPeriodRunner) run(ctx context.Context, handler PeriodCallback, done chan struct{}) {
	defer close(done)

	now := r.now()
	var lastEmitted uint64
	hasEmitted := false

	var nextStart time.Time
	if now.Before(r.origin) {
		nextStart = r.origin
	} else {
		currentID, periodStart := r.PeriodForTime(now)
		if !r.emit(ctx, handler, currentID, periodStart) {
			return
		}
		lastEmitted = currentID
		hasEmitted = true
		nextStart = r.periodStart(currentID + 1)
	}

	delay := nextStart.Sub(now)
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			now = r.now()
			if now.Before(r.origin) {
				nextStart = r.origin
			} else {
				currentID, _ := r.PeriodForTime(now)
				startID := currentID
				if hasEmitted {
					startID = lastEmitted + 1
				}
				for id := startID; id <= currentID; id++ {
					if ctx.Err() != nil {
						return
					}
					if !r.emit(ctx, handler, id, r.periodStart(id)) {
						return
					}
					lastEmitted = id
					hasEmitted = true
				}
				nextStart = r.periodStart(lastEmitted + 1)
			}

			delay = nextStart.Sub(r.now())
			if delay < 0 {
				delay = 0
			}
			timer.Reset(delay)
		}
	}
}

// emit triggers the handler and reports whether the loop should continue.
func (r *LocalPeriodRunner) emit(ctx context.Context, handler PeriodCallback, periodID uint64, startedAt time.Time) bool {
	info := PeriodInfo{
		PeriodID:  periodID,
		StartedAt: startedAt,
		Duration:  r.period,
	}

	if err := handler(ctx, info); err != nil {
		r.log.Error().Err(err).Uint64("period_id", periodID).Msg("Period handler returned error")
		return !r.stopOnError
	}
	return true
}

// PeriodForTime returns the period ID and the corresponding period start time for the given timestamp.
func (r *LocalPeriodRunner) PeriodForTime(t time.Time) (uint64, time.Time) {
	if t.Before(r.origin) {
		return 0, r.origin
	}

	elapsed := t.Sub(r.origin)
	currentPeriod := uint64(elapsed / r.period)
	return currentPeriod, r.periodStart(currentPeriod)
}

// periodStart returns the start time for the given period ID.
func (r *LocalPeriodRunner) periodStart(periodID uint64) time.Time {
	return r.origin.Add(time.Duration(periodID) * r.period)
}

var _ PeriodRunner = (*LocalPeriodRunner)(nil)
