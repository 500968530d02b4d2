package codec

import (
	"encoding/binary"
	"errors"
	"io"
)

type pointPacket struct {
	X, Y int32
}

func (p pointPacket) Tag() string { return "Point" }

func (p pointPacket) Encode(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, [2]int32{p.X, p.Y})
}

func decodePoint(r io.Reader) (Packet, error) {
	var v [2]int32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return nil, err
	}
	return pointPacket{X: v[0], Y: v[1]}, nil
}

type textPacket string

func (p textPacket) Tag() string { return "Text" }

func (p textPacket) Encode(w io.Writer) error {
	return WriteTag(w, string(p))
}

var errRejected = errors.New("payload rejected")

func decodeText(r io.Reader) (Packet, error) {
	s, err := ReadTag(r)
	if err != nil {
		return nil, err
	}
	if s == "reject" {
		return nil, errRejected
	}
	return textPacket(s), nil
}

func testRegistry() *Registry {
	return MustNewRegistry(
		Register("Point", decodePoint),
		Register("Text", decodeText),
	)
}
