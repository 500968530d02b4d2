package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/streams/x/monitor"
	"github.com/compose-network/streams/x/stream"
)

type idleChannel struct{ closed chan struct{} }

func (c *idleChannel) Read([]byte) (int, error) { <-c.closed; return 0, io.EOF }
func (c *idleChannel) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type waitReader struct{}

func (waitReader) Setup(io.ReadCloser) (struct{}, error) { return struct{}{}, nil }

func (waitReader) ReadOne(ctx context.Context, _ struct{}) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type nopSink struct{}

func (nopSink) Process(string) {}

func setup(t *testing.T) (*mux.Router, *monitor.Tracker) {
	t.Helper()

	tr := monitor.NewTracker(zerolog.New(io.Discard))
	m := stream.StartReader[struct{}, string](&idleChannel{closed: make(chan struct{})}, waitReader{}, nopSink{}, stream.WithID("m1"))
	tr.Track(m, map[string]string{"conn_id": "c1"})
	t.Cleanup(m.Stop)

	r := mux.NewRouter()
	NewHandler(tr, zerolog.New(io.Discard)).RegisterMux(r)
	return r, tr
}

func TestHandler_ListAndGet(t *testing.T) {
	t.Parallel()

	r, _ := setup(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routeManagers, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Managers, 1)
	assert.Equal(t, "m1", list.Managers[0].ID)
	assert.Equal(t, 1, list.Summary.Running)

	u, err := r.Get(routeNameManagerByID).URL("id", "m1")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st monitor.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "running", st.State)
	assert.Equal(t, "c1", st.Labels["conn_id"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routeManagers+"?state=closed", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Empty(t, list.Managers)
}

func TestHandler_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := setup(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/managers/nope", nil),
		httptest.NewRequest(http.MethodPost, "/v1/managers/nope/stop", nil),
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_found")
	}
}

func TestHandler_Stop(t *testing.T) {
	t.Parallel()

	r, tr := setup(t)

	u, err := r.Get(routeNameStopManager).URL("id", "m1")
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, u.String(), nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		st, _ := tr.Get("m1")
		return st.State == "closed"
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := tr.Get("m1")
	assert.Equal(t, "cancelled", st.ErrorType)
}
