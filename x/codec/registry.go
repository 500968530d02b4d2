package codec

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"

	"github.com/compose-network/streams/x/stream"
)

// Registration binds a tag to its decoder. Build one with Register.
type Registration struct {
	tag    string
	decode DecodeFunc
}

// Register pairs tag with decode for NewRegistry.
func Register(tag string, decode DecodeFunc) Registration {
	return Registration{tag: tag, decode: decode}
}

// Registry maps tags to decoders. It is immutable once built and safe for
// concurrent use.
type Registry struct {
	decoders map[string]DecodeFunc
	tags     []string
}

// NewRegistry builds a registry from regs. It fails on an invalid or duplicate tag
// and on a nil decoder.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{
		decoders: make(map[string]DecodeFunc, len(regs)),
		tags:     make([]string, 0, len(regs)),
	}
	for _, reg := range regs {
		if err := ValidateTag(reg.tag); err != nil {
			return nil, fmt.Errorf("register %q: %w", reg.tag, err)
		}
		if reg.decode == nil {
			return nil, fmt.Errorf("register %q: nil decoder", reg.tag)
		}
		if _, exists := r.decoders[reg.tag]; exists {
			return nil, fmt.Errorf("register %q: duplicate tag", reg.tag)
		}
		r.decoders[reg.tag] = reg.decode
		r.tags = append(r.tags, reg.tag)
	}
	sort.Strings(r.tags)
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the decoder registered for tag.
func (r *Registry) Lookup(tag string) (DecodeFunc, bool) {
	fn, ok := r.decoders[tag]
	return fn, ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	return append([]string(nil), r.tags...)
}

func (r *Registry) Len() int {
	return len(r.tags)
}

// Decode reads one record from rd: the tag, then the payload through the decoder
// registered for it. An unregistered tag and a payload the decoder rejects are decode
// errors. Plain I/O failures are returned as they are, except that running out of
// input after the tag is io.ErrUnexpectedEOF: only a stream that ends between records
// reports io.EOF.
func (r *Registry) Decode(rd io.Reader) (Packet, error) {
	tag, err := ReadTag(rd)
	if err != nil {
		return nil, err
	}

	decode, ok := r.decoders[tag]
	if !ok {
		return nil, stream.NewUnknownTagError(tag)
	}

	p, err := decode(rd)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	switch {
	case err == nil && p == nil:
		return nil, stream.NewDecodeError(tag, errors.New("decoder returned no packet"))
	case err == nil:
		return p, nil
	case isIOFailure(err):
		return nil, err
	default:
		var se *stream.Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, stream.NewDecodeError(tag, err)
	}
}

func isIOFailure(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
