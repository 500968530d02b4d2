package sink

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke(t *testing.T) {
	t.Parallel()

	var got []int
	require.NoError(t, Invoke[int](Func[int](func(v int) { got = append(got, v) }), 7))
	assert.Equal(t, []int{7}, got)

	boom := errors.New("boom")
	err := Invoke[int](FallibleFunc[int](func(int) error { return boom }), 1)
	assert.ErrorIs(t, err, boom)

	err = Invoke[int](Func[int](func(int) { panic("kaput") }), 1)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaput", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestFallibleFunc_ProcessDropsError(t *testing.T) {
	t.Parallel()

	calls := 0
	f := FallibleFunc[string](func(string) error {
		calls++
		return errors.New("ignored")
	})
	f.Process("x")
	assert.Equal(t, 1, calls)
}

func TestLogSinks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	Lines(logger, zerolog.InfoLevel).Process("line one")
	Log[map[string]int](logger, zerolog.WarnLevel, "record").Process(map[string]int{"x": 1})

	out := buf.String()
	assert.Contains(t, out, `"message":"line one"`)
	assert.Contains(t, out, `"item":{"x":1}`)
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestWorkerError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	err := &WorkerError{FanOut: "f", Worker: 3, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "worker 3")
}
