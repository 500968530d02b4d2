package stream

import (
	"errors"
	"io"
	"time"

	"github.com/compose-network/streams/x/sink"
)

// ReaderManager owns the read direction of a channel. It reads items with a Reader
// capability and delivers each one to a sink on its own goroutine.
type ReaderManager[S, O any] struct {
	*lifecycle

	raw    io.ReadCloser
	reader Reader[S, O]
	sink   sink.Sink[O]
}

// StartReader starts a goroutine that owns raw until the loop ends. The sink is called
// synchronously on that goroutine, so a slow sink stalls reading; wrap it in a
// sink.FanOut to decouple the two.
//
// Nothing is returned when the loop fails. Use the returned manager, an exit hook or
// the logs to observe why it stopped.
func StartReader[S, O any](raw io.ReadCloser, reader Reader[S, O], s sink.Sink[O], opts ...Option) *ReaderManager[S, O] {
	if raw == nil || reader == nil || s == nil {
		panic("stream: StartReader requires a channel, a reader and a sink")
	}

	m := &ReaderManager[S, O]{
		lifecycle: newLifecycle(DirectionRead, raw, reader, opts),
		raw:       raw,
		reader:    reader,
		sink:      s,
	}
	m.start(m.run)
	return m
}

func (m *ReaderManager[S, O]) run() {
	var ch S
	err := m.protect("read", func() error {
		return m.loop(&ch)
	})

	var preClose func()
	if pc, ok := m.reader.(ReaderPreCloser[S]); ok {
		preClose = func() { pc.PreClose(m.raw, ch) }
	}
	m.teardown(preClose)
	m.finish(err)
}

func (m *ReaderManager[S, O]) loop(ch *S) error {
	if m.stopRequested() {
		return m.cancelled("setup")
	}
	working, err := m.reader.Setup(m.raw)
	if err != nil {
		return m.classify("setup", err)
	}
	*ch = working

	for {
		if m.stopRequested() {
			return m.cancelled("read")
		}

		start := time.Now()
		item, err := m.reader.ReadOne(m.ctx, working)
		if err != nil {
			return m.classify("read", err)
		}

		if err := sink.Invoke(m.sink, item); err != nil {
			var pe *sink.PanicError
			if errors.As(err, &pe) {
				m.log.Error().Bytes("stack", pe.Stack).Msg("Sink panicked")
			}
			return NewError(ErrorTypeSink, "deliver").WithCause(err)
		}

		m.records.Add(1)
		m.metrics.recordRecord(m.direction, time.Since(start))
	}
}
