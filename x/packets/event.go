package packets

import (
	"fmt"
	"io"

	"github.com/compose-network/streams/x/codec"
)

// Event is a sequenced application event carried as canonical CBOR.
type Event struct {
	Kind  string            `json:"kind"            cbor:"kind"`
	Seq   uint64            `json:"seq"             cbor:"seq"`
	Attrs map[string]string `json:"attrs,omitempty" cbor:"attrs,omitempty"`
}

var _ codec.Packet = Event{}

var eventCodec = codec.MustNewCBORCodec(codec.DefaultMaxMessageSize)

func (e Event) Tag() string { return TagEvent }

func (e Event) Encode(w io.Writer) error {
	return eventCodec.EncodeValue(w, e)
}

func (e Event) String() string {
	return fmt.Sprintf("%s#%d", e.Kind, e.Seq)
}

// DecodeEvent decodes an Event with the default CBOR codec.
var DecodeEvent = EventDecoder(eventCodec)

// EventDecoder returns an Event decoder reading through c.
func EventDecoder(c *codec.CBORCodec) codec.DecodeFunc {
	decode := codec.CBORDecoderWith[Event](c, TagEvent)
	return func(r io.Reader) (codec.Packet, error) {
		p, err := decode(r)
		if err != nil {
			return nil, err
		}
		e := p.(*codec.CBORPacket[Event]).Value()
		if e.Kind == "" {
			return nil, fmt.Errorf("event kind is empty")
		}
		return e, nil
	}
}
