package codec

import (
	"bufio"
	"context"
	"io"

	"github.com/compose-network/streams/x/stream"
)

const defaultBufferSize = 8 * 1024

// PacketReader is a stream.Reader that decodes tagged packets through a Registry.
// The raw channel is wrapped in a bufio.Reader unless Unbuffered is given.
type PacketReader struct {
	registry   *Registry
	bufferSize int
}

var _ stream.Reader[io.Reader, Packet] = (*PacketReader)(nil)

// ReaderOption configures a PacketReader.
type ReaderOption func(*PacketReader)

// Unbuffered reads straight from the raw channel. Nothing past the current record is
// consumed, so the channel may be handed to another reader afterwards.
func Unbuffered() ReaderOption {
	return func(r *PacketReader) {
		r.bufferSize = 0
	}
}

// WithReadBufferSize sets the read buffer size.
func WithReadBufferSize(size int) ReaderOption {
	return func(r *PacketReader) {
		r.bufferSize = size
	}
}

func NewPacketReader(registry *Registry, opts ...ReaderOption) *PacketReader {
	r := &PacketReader{
		registry:   registry,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PacketReader) Setup(raw io.ReadCloser) (io.Reader, error) {
	if r.bufferSize <= 0 {
		return raw, nil
	}
	return bufio.NewReaderSize(raw, r.bufferSize), nil
}

func (r *PacketReader) ReadOne(_ context.Context, ch io.Reader) (Packet, error) {
	return r.registry.Decode(ch)
}
