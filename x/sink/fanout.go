package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/streams/x/queue"
)

// FanOut is a Sink that queues every item and hands it to a fixed pool of workers,
// each calling the wrapped sink. With one worker items are delivered in the order
// they were processed; with more, only each worker's own dequeues are ordered.
//
// Stop is abrupt: queued items are dropped and workers busy in the wrapped sink are
// not waited for.
type FanOut[T any] struct {
	name    string
	sink    Sink[T]
	queue   queue.Queue[T]
	workers int

	log     zerolog.Logger
	metrics *Metrics
	onExit  WorkerExitHook

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	stopped atomic.Bool

	alive     atomic.Int32
	processed atomic.Uint64
	dropped   atomic.Uint64
}

// NewFanOut starts workers goroutines draining a shared queue into s.
func NewFanOut[T any](s Sink[T], workers int, opts ...Option) (*FanOut[T], error) {
	if s == nil {
		return nil, errors.New("sink: wrapped sink is required")
	}
	if workers < 1 {
		return nil, fmt.Errorf("sink: worker count must be positive, got %d", workers)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &FanOut[T]{
		name:    cfg.Name,
		sink:    s,
		queue:   queue.New[T](cfg.QueueCapacity),
		workers: workers,
		log: cfg.Logger.With().
			Str("component", "fanout").
			Str("fanout", cfg.Name).
			Logger(),
		metrics: cfg.Metrics,
		onExit:  cfg.OnWorkerExit,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	f.alive.Store(int32(workers))
	f.metrics.setAlive(f.name, workers)

	f.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go f.work(i)
	}
	go func() {
		f.wg.Wait()
		close(f.done)
	}()

	f.log.Debug().
		Int("workers", workers).
		Int("queue_capacity", cfg.QueueCapacity).
		Msg("Fan-out started")

	return f, nil
}

// NewSingle starts a fan-out with exactly one worker, preserving delivery order.
func NewSingle[T any](s Sink[T], opts ...Option) (*FanOut[T], error) {
	return NewFanOut(s, 1, opts...)
}

// Process queues item for a worker. With an unbounded queue it never blocks; with a
// bounded queue it waits for a free slot or for Stop. Items processed after Stop are
// dropped.
func (f *FanOut[T]) Process(item T) {
	if f.stopped.Load() {
		f.drop()
		return
	}
	if err := f.queue.Enqueue(f.ctx, item); err != nil {
		f.drop()
		return
	}
	// Stop may have drained the queue between the check above and Enqueue.
	if f.stopped.Load() {
		f.discardQueued()
		return
	}
	f.metrics.recordEnqueued(f.name, f.queue.Len())
}

// Stop cancels every worker and discards queued items. It does not wait; use Done or
// Wait for that.
func (f *FanOut[T]) Stop() {
	if !f.stopped.CompareAndSwap(false, true) {
		return
	}
	f.cancel()

	f.log.Debug().Int("discarded", f.discardQueued()).Msg("Fan-out stopped")
}

func (f *FanOut[T]) discardQueued() int {
	discarded := 0
	for {
		if _, err := f.queue.TryDequeue(); err != nil {
			return discarded
		}
		f.drop()
		discarded++
	}
}

// Done is closed once every worker has exited.
func (f *FanOut[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until every worker has exited or ctx is done.
func (f *FanOut[T]) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FanOut[T]) Name() string { return f.name }

// Workers returns the configured worker count.
func (f *FanOut[T]) Workers() int { return f.workers }

// Alive returns the number of workers still draining the queue.
func (f *FanOut[T]) Alive() int { return int(f.alive.Load()) }

// Len returns the number of queued items.
func (f *FanOut[T]) Len() int { return f.queue.Len() }

// Processed returns how many items the wrapped sink accepted.
func (f *FanOut[T]) Processed() uint64 { return f.processed.Load() }

// Dropped returns how many items were discarded because of Stop.
func (f *FanOut[T]) Dropped() uint64 { return f.dropped.Load() }

func (f *FanOut[T]) drop() {
	f.dropped.Add(1)
	f.metrics.recordDropped(f.name)
}

func (f *FanOut[T]) work(id int) {
	defer f.wg.Done()

	var (
		handled uint64
		exitErr error
	)
	defer func() {
		f.exit(id, handled, exitErr)
	}()

	for {
		item, err := f.queue.Dequeue(f.ctx)
		if err != nil {
			return
		}
		if f.ctx.Err() != nil {
			f.drop()
			return
		}

		start := time.Now()
		if err := Invoke(f.sink, item); err != nil {
			exitErr = &WorkerError{FanOut: f.name, Worker: id, Cause: err}
			return
		}
		handled++
		f.processed.Add(1)
		f.metrics.recordProcessed(f.name, time.Since(start).Seconds(), f.queue.Len())
	}
}

func (f *FanOut[T]) exit(id int, handled uint64, exitErr error) {
	alive := int(f.alive.Add(-1))
	f.metrics.setAlive(f.name, alive)

	log := f.log.With().Int("worker", id).Uint64("processed", handled).Logger()
	if exitErr != nil {
		f.metrics.recordWorkerFailure(f.name)
		evt := log.Error().Err(exitErr).Int("alive", alive)
		var pe *PanicError
		if errors.As(exitErr, &pe) {
			evt = evt.Bytes("stack", pe.Stack)
		}
		evt.Msg("Fan-out worker terminated")
		if alive == 0 && !f.stopped.Load() {
			log.Warn().Int("queued", f.queue.Len()).Msg("No fan-out workers left, queue is no longer drained")
		}
	} else {
		log.Debug().Msg("Fan-out worker stopped")
	}

	if f.onExit != nil {
		f.onExit(WorkerExit{
			FanOut:    f.name,
			Worker:    id,
			Processed: handled,
			Err:       exitErr,
		})
	}
}
