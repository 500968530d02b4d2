package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type interruptible interface {
	Interrupt()
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// lifecycle is the part of a manager that does not depend on its capability types.
type lifecycle struct {
	id         string
	direction  Direction
	capability any
	raw        io.Closer

	state     atomic.Int32
	startedAt time.Time
	records   atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	stopOnce  sync.Once
	closeOnce sync.Once

	log     zerolog.Logger
	metrics *Metrics
	onExit  ExitHook
}

func newLifecycle(dir Direction, raw io.Closer, capability any, opts []Option) *lifecycle {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &lifecycle{
		id:         cfg.ID,
		direction:  dir,
		capability: capability,
		raw:        raw,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log: cfg.Logger.With().
			Str("component", "stream-manager").
			Str("manager_id", cfg.ID).
			Str("direction", string(dir)).
			Logger(),
		metrics: cfg.Metrics,
		onExit:  cfg.OnExit,
	}
}

func (l *lifecycle) start(run func()) {
	l.startedAt = time.Now()
	l.state.Store(int32(StateRunning))
	l.metrics.recordStarted(l.direction)
	l.log.Debug().Msg("Stream manager started")
	go run()
}

func (l *lifecycle) ID() string            { return l.id }
func (l *lifecycle) Direction() Direction  { return l.direction }
func (l *lifecycle) State() State          { return State(l.state.Load()) }
func (l *lifecycle) StartedAt() time.Time  { return l.startedAt }
func (l *lifecycle) Records() uint64       { return l.records.Load() }
func (l *lifecycle) Done() <-chan struct{} { return l.done }
func (l *lifecycle) stopRequested() bool   { return l.ctx.Err() != nil }

func (l *lifecycle) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

func (l *lifecycle) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the loop and interrupts any I/O it is blocked in. Calling Stop more
// than once, or after the manager closed, has no further effect.
func (l *lifecycle) Stop() {
	l.stopOnce.Do(func() {
		l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		l.cancel()

		select {
		case <-l.done:
			return
		default:
		}

		l.log.Debug().Msg("Stop requested, interrupting channel")
		l.interrupt()
	})
}

func (l *lifecycle) interrupt() {
	if in, ok := l.capability.(Interrupter); ok {
		l.guarded("interrupt", func() { in.Interrupt(l.raw) })
		return
	}
	if in, ok := l.raw.(interruptible); ok {
		in.Interrupt()
		return
	}

	past := time.Unix(1, 0)
	switch l.direction {
	case DirectionRead:
		if d, ok := l.raw.(readDeadliner); ok && d.SetReadDeadline(past) == nil {
			return
		}
	case DirectionWrite:
		if d, ok := l.raw.(writeDeadliner); ok && d.SetWriteDeadline(past) == nil {
			return
		}
	}
	l.closeRaw()
}

// closeRaw closes the raw channel at most once, whoever calls it first.
func (l *lifecycle) closeRaw() {
	l.closeOnce.Do(func() {
		if l.raw == nil {
			return
		}
		if err := l.raw.Close(); err != nil {
			l.log.Debug().Err(err).Msg("Closing channel failed")
		}
	})
}

// protect runs fn and turns a panic into an ErrorTypePanic error.
func (l *lifecycle) protect(op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = NewError(ErrorTypePanic, op).WithMessage("%v", rec)
			l.log.Error().
				Str("op", op).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Capability panicked")
		}
	}()
	return fn()
}

// guarded runs a teardown step; a panic is logged and otherwise ignored so that the
// remaining steps still run.
func (l *lifecycle) guarded(step string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error().
				Str("step", step).
				Interface("panic", rec).
				Msg("Teardown step panicked")
		}
	}()
	fn()
}

// classify maps an error returned by a capability to the manager's error taxonomy.
// Any failure observed after Stop was requested counts as cancellation.
func (l *lifecycle) classify(op string, err error) error {
	if l.stopRequested() {
		return NewError(ErrorTypeCancelled, op).WithCause(err)
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return NewChannelError(op, err)
}

func (l *lifecycle) cancelled(op string) error {
	return NewError(ErrorTypeCancelled, op).WithCause(l.ctx.Err())
}

// teardown runs preClose, closes the raw channel, then runs the Closed hook.
func (l *lifecycle) teardown(preClose func()) {
	l.state.Store(int32(StateStopping))
	if preClose != nil {
		l.guarded("pre-close", preClose)
	}
	l.closeRaw()
	if c, ok := l.capability.(ClosedHook); ok {
		l.guarded("closed", c.Closed)
	}
}

func (l *lifecycle) finish(err error) {
	l.cancel()
	lifetime := time.Since(l.startedAt)
	l.err = err
	l.state.Store(int32(StateClosed))
	l.metrics.recordExit(l.direction, err, lifetime)

	ev := l.exitEvent(err)
	ev.Uint64("records", l.records.Load()).
		Dur("lifetime", lifetime).
		Msg("Stream manager closed")

	if l.onExit != nil {
		l.guarded("exit-hook", func() {
			l.onExit(Exit{
				ID:        l.id,
				Direction: l.direction,
				Records:   l.records.Load(),
				Duration:  lifetime,
				Err:       err,
			})
		})
	}
	close(l.done)
}

func (l *lifecycle) exitEvent(err error) *zerolog.Event {
	switch {
	case err == nil:
		return l.log.Debug()
	case IsCancelled(err):
		return l.log.Debug().Err(err)
	case errors.Is(err, io.EOF):
		return l.log.Info().Str("reason", "end of stream")
	default:
		return l.log.Error().Err(err)
	}
}

func (l *lifecycle) String() string {
	return fmt.Sprintf("%s manager %s (%s)", l.direction, l.id, l.State())
}
