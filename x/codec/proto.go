package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"google.golang.org/protobuf/proto"
)

// DefaultMaxMessageSize caps protobuf payloads built through the package defaults.
const DefaultMaxMessageSize = 10 * 1024 * 1024

var defaultProtoCodec = NewProtoCodec(DefaultMaxMessageSize)

// ProtoCodec implements length-prefixed protobuf encoding
type ProtoCodec struct {
	maxMessageSize int

	bufferPool  sync.Pool
	scratchPool sync.Pool
}

var _ StreamCodec = (*ProtoCodec)(nil)

// NewProtoCodec creates a codec rejecting messages larger than maxMessageSize
func NewProtoCodec(maxMessageSize int) *ProtoCodec {
	return &ProtoCodec{
		maxMessageSize: maxMessageSize,
		bufferPool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, 1024)
				return &buf
			},
		},
		scratchPool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 4096)
				return &buf
			},
		},
	}
}

// Encode marshals a message with length prefix
func (c *ProtoCodec) Encode(msg proto.Message) ([]byte, error) {
	bufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufPtr)

	data, err := proto.MarshalOptions{}.MarshalAppend((*bufPtr)[:0], msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	*bufPtr = data

	dataLen := len(data)
	if dataLen > c.maxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds max %d", dataLen, c.maxMessageSize)
	}
	if dataLen > math.MaxUint32 {
		return nil, fmt.Errorf("message size %d exceeds uint32 max", dataLen)
	}

	// The pooled buffer is reused, so the result is a fresh slice.
	result := make([]byte, 4+dataLen)
	binary.BigEndian.PutUint32(result[:4], uint32(dataLen))
	copy(result[4:], data)
	return result, nil
}

// Decode unmarshals a length-prefixed message
func (c *ProtoCodec) Decode(data []byte, msg proto.Message) error {
	if len(data) < 4 {
		return fmt.Errorf("data too short for length prefix")
	}

	length := binary.BigEndian.Uint32(data[:4])
	if int64(length) > int64(c.maxMessageSize) {
		return fmt.Errorf("message size %d exceeds max %d", length, c.maxMessageSize)
	}
	if uint64(len(data)) < 4+uint64(length) {
		return fmt.Errorf("data too short for claimed message length")
	}

	return proto.Unmarshal(data[4:4+length], msg)
}

// DecodeStream reads a length-prefixed message from r. A zero length is a valid
// message with every field unset.
func (c *ProtoCodec) DecodeStream(r io.Reader, msg proto.Message) error {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if int64(length) > int64(c.maxMessageSize) {
		return fmt.Errorf("message size %d exceeds max %d", length, c.maxMessageSize)
	}

	scratchPtr := c.scratchPool.Get().(*[]byte)
	defer c.scratchPool.Put(scratchPtr)

	var messageData []byte
	if scratch := *scratchPtr; int(length) <= len(scratch) {
		messageData = scratch[:length]
	} else {
		messageData = make([]byte, length)
	}

	if _, err := io.ReadFull(r, messageData); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	return proto.Unmarshal(messageData, msg)
}

// EncodeStream writes a length-prefixed message to w
func (c *ProtoCodec) EncodeStream(w io.Writer, msg proto.Message) error {
	data, err := c.Encode(msg)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// MaxMessageSize returns the maximum message size
func (c *ProtoCodec) MaxMessageSize() int {
	return c.maxMessageSize
}

// ProtoPacket carries a protobuf message under a tag.
type ProtoPacket struct {
	tag   string
	msg   proto.Message
	codec StreamCodec
}

// NewProtoPacket wraps msg for writing under tag with the default codec.
func NewProtoPacket(tag string, msg proto.Message) *ProtoPacket {
	return NewProtoPacketWith(defaultProtoCodec, tag, msg)
}

// NewProtoPacketWith wraps msg for writing under tag with c.
func NewProtoPacketWith(c StreamCodec, tag string, msg proto.Message) *ProtoPacket {
	return &ProtoPacket{tag: tag, msg: msg, codec: c}
}

func (p *ProtoPacket) Tag() string            { return p.tag }
func (p *ProtoPacket) Message() proto.Message { return p.msg }

func (p *ProtoPacket) Encode(w io.Writer) error {
	return p.codec.EncodeStream(w, p.msg)
}

// ProtoDecoder returns a DecodeFunc that reads a message created by newMsg with the
// default codec and wraps it in a ProtoPacket tagged tag.
func ProtoDecoder(tag string, newMsg func() proto.Message) DecodeFunc {
	return ProtoDecoderWith(defaultProtoCodec, tag, newMsg)
}

// ProtoDecoderWith is ProtoDecoder with an explicit codec.
func ProtoDecoderWith(c StreamCodec, tag string, newMsg func() proto.Message) DecodeFunc {
	return func(r io.Reader) (Packet, error) {
		msg := newMsg()
		if err := c.DecodeStream(r, msg); err != nil {
			return nil, err
		}
		return &ProtoPacket{tag: tag, msg: msg, codec: c}, nil
	}
}
