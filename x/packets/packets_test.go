package packets

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/compose-network/streams/x/codec"
	"github.com/compose-network/streams/x/stream"
)

func TestPackets_RoundTripThroughRegistry(t *testing.T) {
	t.Parallel()

	in := []codec.Packet{
		Point{X: 1, Y: 2},
		Point{X: -2147483648, Y: 2147483647},
		Text{Body: ""},
		Text{Body: "héllo, 世界"},
		Text{Body: strings.Repeat("z", 70000)},
		Note{},
		Note{
			Author:    "ada",
			Body:      "meet at noon",
			Labels:    []string{"urgent", "team"},
			CreatedAt: time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC),
		},
		Event{Kind: "login", Seq: 1},
		Event{Kind: "upload", Seq: 1 << 40, Attrs: map[string]string{"file": "a.txt", "size": "42"}},
	}

	var wire bytes.Buffer
	for _, p := range in {
		require.NoError(t, codec.WritePacket(&wire, p))
	}

	reg := Registry()
	for _, want := range in {
		got, err := reg.Decode(&wire)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := reg.Decode(&wire)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPoint_WireFormat(t *testing.T) {
	t.Parallel()

	raw, err := codec.Marshal(Point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00, 0x05, 'P', 'o', 'i', 'n', 't',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
	}, raw)
	assert.Equal(t, "(1, 2)", Point{X: 1, Y: 2}.String())
}

func TestText_RejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, Text{Body: string([]byte{0xff})}.Encode(io.Discard), ErrInvalidText)

	var wire bytes.Buffer
	require.NoError(t, codec.WriteTag(&wire, TagText))
	require.NoError(t, binary.Write(&wire, binary.BigEndian, uint32(2)))
	wire.Write([]byte{0xc3, 0x28})

	_, err := Registry().Decode(&wire)
	assert.True(t, stream.IsDecodeError(err), "got %v", err)
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestText_RejectsOversizedLength(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	require.NoError(t, codec.WriteTag(&wire, TagText))
	require.NoError(t, binary.Write(&wire, binary.BigEndian, uint32(MaxTextLen+1)))

	_, err := Registry().Decode(&wire)
	assert.True(t, stream.IsDecodeError(err), "got %v", err)
}

func TestNote_RejectsWrongFieldType(t *testing.T) {
	t.Parallel()

	bad, err := structpb.NewStruct(map[string]any{"author": 42.0})
	require.NoError(t, err)

	raw, err := codec.Marshal(codec.NewProtoPacket(TagNote, bad))
	require.NoError(t, err)

	_, err = Registry().Decode(bytes.NewReader(raw))
	assert.True(t, stream.IsDecodeError(err), "got %v", err)
	assert.Contains(t, err.Error(), "author")
}

func TestRegistry_Tags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{TagEvent, TagNote, TagPoint, TagText}, Registry().Tags())
}

func TestRegistryWith_EnforcesMessageLimit(t *testing.T) {
	t.Parallel()

	raw, err := codec.Marshal(Note{Author: "ada", Body: strings.Repeat("x", 256)})
	require.NoError(t, err)

	_, err = RegistryWith(64).Decode(bytes.NewReader(raw))
	assert.True(t, stream.IsDecodeError(err), "got %v", err)
	assert.Contains(t, err.Error(), "exceeds max")

	got, err := Registry().Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "ada", got.(Note).Author)
}

func TestEvent_RejectsEmptyKind(t *testing.T) {
	t.Parallel()

	raw, err := codec.Marshal(Event{Seq: 3})
	require.NoError(t, err)

	_, err = Registry().Decode(bytes.NewReader(raw))
	assert.True(t, stream.IsDecodeError(err), "got %v", err)
	assert.Contains(t, err.Error(), "kind")
}
