package packets

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/compose-network/streams/x/codec"
)

// Point is a pair of signed 32-bit coordinates, written big-endian.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

var _ codec.Packet = Point{}

func (p Point) Tag() string { return TagPoint }

func (p Point) Encode(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.X))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Y))
	_, err := w.Write(buf[:])
	return err
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func DecodePoint(r io.Reader) (codec.Packet, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	return Point{
		X: int32(binary.BigEndian.Uint32(buf[0:4])),
		Y: int32(binary.BigEndian.Uint32(buf[4:8])),
	}, nil
}
