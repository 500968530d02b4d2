package codec

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/streams/x/queue"
	"github.com/compose-network/streams/x/sink"
	"github.com/compose-network/streams/x/stream"
)

// hookedReader counts the teardown hooks the manager runs.
type hookedReader struct {
	*PacketReader
	closed atomic.Int32
}

func (r *hookedReader) Closed() { r.closed.Add(1) }

func waitDone(t *testing.T, h stream.Handle) error {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("manager %s did not close in time", h.ID())
	}
	return h.Err()
}

func TestManagers_PointRoundTrip(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	w := stream.StartWriter[*bufio.Writer, Packet](pw, NewPacketWriter(), queue.NewUnbounded[Packet]())

	received := make(chan Packet, 1)
	r := stream.StartReader[io.Reader, Packet](pr, NewPacketReader(testRegistry()), sink.Func[Packet](func(p Packet) {
		received <- p
	}))

	require.NoError(t, w.Send(pointPacket{X: 1, Y: 2}))

	select {
	case p := <-received:
		assert.Equal(t, pointPacket{X: 1, Y: 2}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("point not delivered")
	}

	w.Stop()
	waitDone(t, w)
	err := waitDone(t, r)
	assert.True(t, stream.IsChannelError(err), "got %v", err)
	assert.EqualValues(t, 1, r.Records())
}

func TestManagers_UnknownTagStopsReader(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	require.NoError(t, WriteTag(&wire, "Unknown"))
	wire.WriteString("whatever follows")

	delivered := atomic.Int32{}
	hr := &hookedReader{PacketReader: NewPacketReader(testRegistry(), Unbuffered())}
	r := stream.StartReader[io.Reader, Packet](io.NopCloser(&wire), hr, sink.Func[Packet](func(Packet) {
		delivered.Add(1)
	}))

	err := waitDone(t, r)
	require.True(t, stream.IsDecodeError(err), "got %v", err)
	assert.ErrorIs(t, err, stream.ErrUnknownTag)
	assert.Zero(t, delivered.Load())
	assert.EqualValues(t, 1, hr.closed.Load())
}

func TestManagers_UnbufferedReaderLeavesRestUnread(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	require.NoError(t, WritePacket(&wire, pointPacket{X: 5, Y: 6}))
	require.NoError(t, WriteTag(&wire, "Unknown"))
	wire.WriteString("tail")

	r := stream.StartReader[io.Reader, Packet](io.NopCloser(&wire), NewPacketReader(testRegistry(), Unbuffered()), sink.Func[Packet](func(Packet) {}))
	err := waitDone(t, r)

	assert.True(t, stream.IsDecodeError(err))
	assert.Equal(t, "tail", wire.String())
}
