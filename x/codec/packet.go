package codec

import (
	"bytes"
	"fmt"
	"io"
)

// WritePacket writes p's tag followed by its payload.
func WritePacket(w io.Writer, p Packet) error {
	if err := WriteTag(w, p.Tag()); err != nil {
		return err
	}
	if err := p.Encode(w); err != nil {
		return fmt.Errorf("encode %q: %w", p.Tag(), err)
	}
	return nil
}

// Marshal returns the wire form of p.
func Marshal(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
