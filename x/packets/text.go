package packets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/compose-network/streams/x/codec"
)

// MaxTextLen caps the body of a Text packet.
const MaxTextLen = 1 << 20

var ErrInvalidText = errors.New("text is not valid UTF-8")

// Text is a UTF-8 string with a 32-bit length prefix.
type Text struct {
	Body string `json:"body"`
}

var _ codec.Packet = Text{}

func (t Text) Tag() string { return TagText }

func (t Text) Encode(w io.Writer) error {
	if len(t.Body) > MaxTextLen {
		return fmt.Errorf("text length %d exceeds max %d", len(t.Body), MaxTextLen)
	}
	if !utf8.ValidString(t.Body) {
		return ErrInvalidText
	}

	buf := make([]byte, 4+len(t.Body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(t.Body)))
	copy(buf[4:], t.Body)
	_, err := w.Write(buf)
	return err
}

func DecodeText(r io.Reader) (codec.Packet, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxTextLen {
		return nil, fmt.Errorf("text length %d exceeds max %d", n, MaxTextLen)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if !utf8.Valid(body) {
		return nil, ErrInvalidText
	}
	return Text{Body: string(body)}, nil
}
