package stream

import (
	"bufio"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/streams/x/queue"
)

func TestWriter_WritesInQueueOrder(t *testing.T) {
	t.Parallel()

	raw := newMemChannel("")
	mem := raw.ReadWriteCloser.(*memChannel)
	q := queue.NewUnbounded[string]()
	w := StartWriter[*bufio.Writer, string](raw, &lineWriter{}, q)

	for _, s := range []string{"1", "2", "3"} {
		require.NoError(t, q.Enqueue(t.Context(), s))
	}
	require.Eventually(t, func() bool { return w.Records() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "1\n2\n3\n", mem.written())
	assert.Same(t, q, w.Queue())

	w.Stop()
	waitClosed(t, w)
	assert.EqualValues(t, 1, raw.closes.Load())
}

func TestWriter_StopDiscardsQueuedItems(t *testing.T) {
	t.Parallel()

	raw := newMemChannel("")
	mem := raw.ReadWriteCloser.(*memChannel)
	lw := &lineWriter{gate: make(chan struct{})}
	q := queue.NewUnbounded[string]()
	w := StartWriter[*bufio.Writer, string](raw, lw, q)

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, w.Send(s))
	}
	require.Eventually(t, func() bool { return q.Len() == 2 }, 2*time.Second, time.Millisecond)

	w.Stop()
	err := waitClosed(t, w)

	assert.True(t, IsCancelled(err), "got %v", err)
	assert.Zero(t, w.Records())
	assert.Empty(t, mem.written())
	assert.Equal(t, 2, q.Len())
	assert.EqualValues(t, 1, lw.preClosed.Load())
	assert.EqualValues(t, 1, lw.closed.Load())
}

func TestWriter_StopRightAfterStart(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		raw := newMemChannel("")
		lw := &lineWriter{}

		w := StartWriter[*bufio.Writer, string](raw, lw, queue.NewUnbounded[string]())
		w.Stop()
		w.Stop()

		err := waitClosed(t, w)
		require.True(t, IsCancelled(err), "got %v", err)
		require.EqualValues(t, 1, lw.preClosed.Load())
		require.EqualValues(t, 1, lw.closed.Load())
		require.EqualValues(t, 1, raw.closes.Load())

		w.Stop()
		require.EqualValues(t, 1, lw.preClosed.Load())
		require.EqualValues(t, 1, lw.closed.Load())
		require.EqualValues(t, 1, raw.closes.Load())
	}
}

func TestWriter_SendAfterStop(t *testing.T) {
	t.Parallel()

	w := StartWriter[*bufio.Writer, string](newMemChannel(""), &lineWriter{}, queue.NewUnbounded[string]())
	w.Stop()
	waitClosed(t, w)

	err := w.Send("late")
	assert.True(t, IsCancelled(err), "got %v", err)
}

func TestWriter_WriteFailureEndsManager(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken pipe")
	raw := newMemChannel("")
	raw.ReadWriteCloser.(*memChannel).writeErr = errBroken
	lw := &lineWriter{}
	w := StartWriter[*bufio.Writer, string](raw, lw, queue.NewUnbounded[string]())

	require.NoError(t, w.Send("x"))
	err := waitClosed(t, w)

	assert.True(t, IsChannelError(err), "got %v", err)
	assert.ErrorIs(t, err, errBroken)
	assert.EqualValues(t, 1, lw.closed.Load())
	assert.EqualValues(t, 1, raw.closes.Load())
	assert.Equal(t, DirectionWrite, w.Direction())
}
