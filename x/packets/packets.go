// Package packets provides example payload codecs for the tagged packet format:
// fixed-width points, length-prefixed text, protobuf-encoded notes and CBOR-encoded
// events.
package packets

import (
	"github.com/compose-network/streams/x/codec"
)

const (
	TagPoint = "Point"
	TagText  = "Text"
	TagNote  = "Note"
	TagEvent = "Event"
)

// Registry returns a codec registry knowing every packet in this package.
func Registry() *codec.Registry {
	return RegistryWith(codec.DefaultMaxMessageSize)
}

// RegistryWith is Registry with protobuf and CBOR bodies capped at maxMessageSize bytes.
func RegistryWith(maxMessageSize int) *codec.Registry {
	return codec.MustNewRegistry(
		codec.Register(TagPoint, DecodePoint),
		codec.Register(TagText, DecodeText),
		codec.Register(TagNote, NoteDecoder(codec.NewProtoCodec(maxMessageSize))),
		codec.Register(TagEvent, EventDecoder(codec.MustNewCBORCodec(maxMessageSize))),
	)
}
