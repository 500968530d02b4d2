package codec

import (
	"bufio"
	"context"
	"io"

	"github.com/compose-network/streams/x/stream"
)

// PacketWriter is a stream.Writer that writes tagged packets. Each record is flushed
// as soon as it is written.
type PacketWriter struct {
	bufferSize int
}

var (
	_ stream.Writer[*bufio.Writer, Packet]  = (*PacketWriter)(nil)
	_ stream.WriterPreCloser[*bufio.Writer] = (*PacketWriter)(nil)
)

// WriterOption configures a PacketWriter.
type WriterOption func(*PacketWriter)

// WithWriteBufferSize sets the write buffer size.
func WithWriteBufferSize(size int) WriterOption {
	return func(w *PacketWriter) {
		w.bufferSize = size
	}
}

func NewPacketWriter(opts ...WriterOption) *PacketWriter {
	w := &PacketWriter{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *PacketWriter) Setup(raw io.WriteCloser) (*bufio.Writer, error) {
	return bufio.NewWriterSize(raw, w.bufferSize), nil
}

func (w *PacketWriter) WriteOne(_ context.Context, ch *bufio.Writer, p Packet) error {
	if err := WritePacket(ch, p); err != nil {
		return err
	}
	return ch.Flush()
}

// PreClose flushes whatever is still buffered. Errors are ignored; the channel is
// about to be closed.
func (w *PacketWriter) PreClose(_ io.WriteCloser, ch *bufio.Writer) {
	if ch != nil {
		_ = ch.Flush()
	}
}
