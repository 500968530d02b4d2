package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	cbor "github.com/fxamacker/cbor/v2"
)

var defaultCBORCodec = MustNewCBORCodec(DefaultMaxMessageSize)

// CBORCodec encodes values as length-prefixed canonical CBOR (RFC 8949 core
// deterministic encoding).
type CBORCodec struct {
	enc            cbor.EncMode
	dec            cbor.DecMode
	maxMessageSize int
}

// NewCBORCodec creates a codec rejecting payloads larger than maxMessageSize.
func NewCBORCodec(maxMessageSize int) (*CBORCodec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encode mode: %w", err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decode mode: %w", err)
	}
	return &CBORCodec{enc: em, dec: dm, maxMessageSize: maxMessageSize}, nil
}

// MustNewCBORCodec is NewCBORCodec that panics on error.
func MustNewCBORCodec(maxMessageSize int) *CBORCodec {
	c, err := NewCBORCodec(maxMessageSize)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *CBORCodec) MaxMessageSize() int {
	return c.maxMessageSize
}

// EncodeValue writes v to w as a uint32 big-endian length followed by its CBOR bytes.
func (c *CBORCodec) EncodeValue(w io.Writer, v any) error {
	data, err := c.enc.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	if len(data) > c.maxMessageSize {
		return fmt.Errorf("message size %d exceeds max %d", len(data), c.maxMessageSize)
	}

	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(data)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeValue reads one length-prefixed CBOR value from r into v.
func (c *CBORCodec) DecodeValue(r io.Reader, v any) error {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if int64(length) > int64(c.maxMessageSize) {
		return fmt.Errorf("message size %d exceeds max %d", length, c.maxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return c.dec.Unmarshal(data, v)
}

// CBORPacket carries a value of type T encoded as CBOR.
type CBORPacket[T any] struct {
	tag   string
	value T
	codec *CBORCodec
}

// NewCBORPacket wraps v with the default CBOR codec.
func NewCBORPacket[T any](tag string, v T) *CBORPacket[T] {
	return NewCBORPacketWith(defaultCBORCodec, tag, v)
}

func NewCBORPacketWith[T any](c *CBORCodec, tag string, v T) *CBORPacket[T] {
	return &CBORPacket[T]{tag: tag, value: v, codec: c}
}

func (p *CBORPacket[T]) Tag() string { return p.tag }
func (p *CBORPacket[T]) Value() T    { return p.value }

func (p *CBORPacket[T]) Encode(w io.Writer) error {
	return p.codec.EncodeValue(w, p.value)
}

// CBORDecoder returns a DecodeFunc reading a T with the default codec.
func CBORDecoder[T any](tag string) DecodeFunc {
	return CBORDecoderWith[T](defaultCBORCodec, tag)
}

// CBORDecoderWith is CBORDecoder with an explicit codec.
func CBORDecoderWith[T any](c *CBORCodec, tag string) DecodeFunc {
	return func(r io.Reader) (Packet, error) {
		var v T
		if err := c.DecodeValue(r, &v); err != nil {
			return nil, err
		}
		return &CBORPacket[T]{tag: tag, value: v, codec: c}, nil
	}
}
