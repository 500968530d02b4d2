package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// lineReader reads newline terminated strings.
type lineReader struct {
	preClosed atomic.Int32
	closed    atomic.Int32
	setupErr  error
	failWith  func(line string) error
	panicOn   string
}

func (r *lineReader) Setup(raw io.ReadCloser) (*bufio.Reader, error) {
	if r.setupErr != nil {
		return nil, r.setupErr
	}
	return bufio.NewReader(raw), nil
}

func (r *lineReader) ReadOne(_ context.Context, ch *bufio.Reader) (string, error) {
	line, err := ch.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	if r.panicOn != "" && line == r.panicOn {
		panic("bad line " + line)
	}
	if r.failWith != nil {
		if err := r.failWith(line); err != nil {
			return "", err
		}
	}
	return line, nil
}

func (r *lineReader) PreClose(_ io.ReadCloser, _ *bufio.Reader) { r.preClosed.Add(1) }
func (r *lineReader) Closed()                                   { r.closed.Add(1) }

// lineWriter writes newline terminated strings and flushes each one.
type lineWriter struct {
	preClosed atomic.Int32
	closed    atomic.Int32
	gate      chan struct{}
}

func (w *lineWriter) Setup(raw io.WriteCloser) (*bufio.Writer, error) {
	return bufio.NewWriter(raw), nil
}

func (w *lineWriter) WriteOne(ctx context.Context, ch *bufio.Writer, item string) error {
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if _, err := ch.WriteString(item + "\n"); err != nil {
		return err
	}
	return ch.Flush()
}

func (w *lineWriter) PreClose(_ io.WriteCloser, ch *bufio.Writer) {
	w.preClosed.Add(1)
	if ch != nil {
		_ = ch.Flush()
	}
}

func (w *lineWriter) Closed() { w.closed.Add(1) }

// countingCloser counts Close calls on the wrapped channel.
type countingCloser struct {
	io.ReadWriteCloser
	closes atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closes.Add(1)
	return c.ReadWriteCloser.Close()
}

// blockingChannel blocks reads until closed or interrupted.
type blockingChannel struct {
	once        sync.Once
	unblock     chan struct{}
	interrupted atomic.Bool
	closes      atomic.Int32
}

func newBlockingChannel() *blockingChannel {
	return &blockingChannel{unblock: make(chan struct{})}
}

var errInterrupted = errors.New("interrupted")

func (b *blockingChannel) Read(_ []byte) (int, error) {
	<-b.unblock
	if b.interrupted.Load() {
		return 0, errInterrupted
	}
	return 0, io.ErrClosedPipe
}

func (b *blockingChannel) Write(p []byte) (int, error) { return len(p), nil }

func (b *blockingChannel) Interrupt() {
	b.interrupted.Store(true)
	b.once.Do(func() { close(b.unblock) })
}

func (b *blockingChannel) Close() error {
	b.closes.Add(1)
	b.once.Do(func() { close(b.unblock) })
	return nil
}

// collector is a sink that records every item.
type collector struct {
	mu    sync.Mutex
	items []string
	seen  chan string
}

func newCollector() *collector {
	return &collector{seen: make(chan string, 64)}
}

func (c *collector) Process(item string) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
	c.seen <- item
}

func (c *collector) Items() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.items...)
}

func waitClosed(t *testing.T, h Handle) error {
	t.Helper()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("manager %s did not close in time", h.ID())
	}
	require.Equal(t, StateClosed, h.State())
	return h.Err()
}

// memChannel is an in-memory channel: reads drain a fixed input, writes are buffered.
type memChannel struct {
	mu       sync.Mutex
	in       *strings.Reader
	out      strings.Builder
	writeErr error
}

func newMemChannel(input string) *countingCloser {
	return &countingCloser{ReadWriteCloser: &memChannel{in: strings.NewReader(input)}}
}

func (m *memChannel) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.in.Read(p)
}

func (m *memChannel) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.out.Write(p)
}

func (m *memChannel) Close() error { return nil }

func (m *memChannel) written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.String()
}
