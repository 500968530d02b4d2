package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/compose-network/streams/x/stream"
)

// MaxTagLen is the longest tag the 16-bit length prefix can describe.
const MaxTagLen = 1<<16 - 1

var (
	ErrEmptyTag   = errors.New("empty tag")
	ErrTagTooLong = fmt.Errorf("tag longer than %d bytes", MaxTagLen)
	ErrInvalidTag = errors.New("tag is not valid UTF-8")
)

// ValidateTag reports whether tag can be framed.
func ValidateTag(tag string) error {
	switch {
	case tag == "":
		return ErrEmptyTag
	case len(tag) > MaxTagLen:
		return ErrTagTooLong
	case !utf8.ValidString(tag):
		return ErrInvalidTag
	}
	return nil
}

// WriteTag writes tag as a big-endian uint16 byte length followed by its UTF-8 bytes.
func WriteTag(w io.Writer, tag string) error {
	if err := ValidateTag(tag); err != nil {
		return fmt.Errorf("write tag %q: %w", tag, err)
	}

	buf := make([]byte, 2+len(tag))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(tag)))
	copy(buf[2:], tag)
	_, err := w.Write(buf)
	return err
}

// ReadTag reads a tag written by WriteTag. It returns io.EOF untouched when the stream
// ends cleanly before a new record, and a decode error for a malformed tag.
func ReadTag(r io.Reader) (string, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", err
	}

	n := binary.BigEndian.Uint16(prefix[:])
	if n == 0 {
		return "", stream.NewDecodeError("", ErrEmptyTag)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", stream.NewDecodeError("", ErrInvalidTag)
	}
	return string(buf), nil
}
