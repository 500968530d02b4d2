package monitor

import (
	"context"
	"io"
	"sync"
)

// idleChannel blocks reads until closed.
type idleChannel struct {
	once   sync.Once
	closed chan struct{}
}

func newIdleChannel() *idleChannel {
	return &idleChannel{closed: make(chan struct{})}
}

func (c *idleChannel) Read([]byte) (int, error) {
	<-c.closed
	return 0, io.ErrClosedPipe
}

func (c *idleChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type blockingReader struct{}

func (blockingReader) Setup(io.ReadCloser) (blockingReader, error) { return blockingReader{}, nil }

func (blockingReader) ReadOne(ctx context.Context, _ blockingReader) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type nopSink struct{}

func (nopSink) Process(string) {}
