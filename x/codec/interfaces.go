package codec

import (
	"io"

	"google.golang.org/protobuf/proto"
)

// Packet is a self-describing record. Encode writes the payload only; the tag is
// written by WritePacket.
type Packet interface {
	Tag() string
	Encode(w io.Writer) error
}

// DecodeFunc reads one payload from r. The tag has already been consumed.
type DecodeFunc func(r io.Reader) (Packet, error)

// Codec turns a protobuf payload into bytes and back. Encode and Decode work on whole
// buffers; implementations refuse messages larger than MaxMessageSize.
type Codec interface {
	Encode(msg proto.Message) ([]byte, error)
	Decode(data []byte, msg proto.Message) error
	MaxMessageSize() int
}

// StreamCodec frames protobuf payloads directly on a channel. ProtoPacket writes its
// body with EncodeStream and ProtoDecoder reads it back with DecodeStream.
type StreamCodec interface {
	Codec
	DecodeStream(r io.Reader, msg proto.Message) error
	EncodeStream(w io.Writer, msg proto.Message) error
}
