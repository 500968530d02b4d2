package stream

import (
	"io"
	"time"

	"github.com/compose-network/streams/x/queue"
)

// WriterManager owns the write direction of a channel. It takes items from a queue
// and writes them with a Writer capability on its own goroutine.
type WriterManager[S, O any] struct {
	*lifecycle

	raw    io.WriteCloser
	writer Writer[S, O]
	queue  queue.Queue[O]
}

// StartWriter starts a goroutine that owns raw until the loop ends. Producers hand
// items to the manager through q, either directly or with Send.
//
// Items still queued when the manager stops are not written. Only what the writer's
// PreClose hook flushes reaches the channel.
func StartWriter[S, O any](raw io.WriteCloser, writer Writer[S, O], q queue.Queue[O], opts ...Option) *WriterManager[S, O] {
	if raw == nil || writer == nil || q == nil {
		panic("stream: StartWriter requires a channel, a writer and a queue")
	}

	m := &WriterManager[S, O]{
		lifecycle: newLifecycle(DirectionWrite, raw, writer, opts),
		raw:       raw,
		writer:    writer,
		queue:     q,
	}
	m.start(m.run)
	return m
}

// Send enqueues item for writing. It fails once the manager has been stopped or has
// closed; it may block while a bounded queue is full.
func (m *WriterManager[S, O]) Send(item O) error {
	if m.stopRequested() {
		return m.cancelled("send")
	}
	if err := m.queue.Enqueue(m.ctx, item); err != nil {
		return m.classify("send", err)
	}
	return nil
}

// Queue returns the queue the manager drains.
func (m *WriterManager[S, O]) Queue() queue.Queue[O] {
	return m.queue
}

func (m *WriterManager[S, O]) run() {
	var ch S
	err := m.protect("write", func() error {
		return m.loop(&ch)
	})

	var preClose func()
	if pc, ok := m.writer.(WriterPreCloser[S]); ok {
		preClose = func() { pc.PreClose(m.raw, ch) }
	}
	m.teardown(preClose)
	m.finish(err)
}

func (m *WriterManager[S, O]) loop(ch *S) error {
	if m.stopRequested() {
		return m.cancelled("setup")
	}
	working, err := m.writer.Setup(m.raw)
	if err != nil {
		return m.classify("setup", err)
	}
	*ch = working

	for {
		if m.stopRequested() {
			return m.cancelled("dequeue")
		}

		item, err := m.queue.Dequeue(m.ctx)
		if err != nil {
			return m.classify("dequeue", err)
		}
		// Stop may have raced with Dequeue; the item is discarded.
		if m.stopRequested() {
			return m.cancelled("write")
		}

		start := time.Now()
		if err := m.writer.WriteOne(m.ctx, working, item); err != nil {
			return m.classify("write", err)
		}

		m.records.Add(1)
		m.metrics.recordRecord(m.direction, time.Since(start))
	}
}
