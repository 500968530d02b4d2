package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/streams/metrics"
)

func startServer(t *testing.T, cfg ServerConfig, m *Metrics) (*Server, <-chan *Conn) {
	t.Helper()

	accepted := make(chan *Conn, 4)
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewServer(cfg, func(_ context.Context, c *Conn) { accepted <- c }, zerolog.Nop(), m)
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, accepted
}

func accept(t *testing.T, accepted <-chan *Conn) *Conn {
	t.Helper()
	select {
	case c := <-accepted:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func dial(t *testing.T, s *Server) *Conn {
	t.Helper()
	c, err := Dial(t.Context(), s.Addr().String(), DialConfig{Timeouts: DefaultTimeoutConfig(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConn_HalvesCloseSocketTogether(t *testing.T) {
	t.Parallel()

	s, accepted := startServer(t, DefaultServerConfig(), nil)
	client := dial(t, s)
	server := accept(t, accepted)

	_, err := client.WriteHalf().Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(server.ReadHalf(), buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	require.NoError(t, server.ReadHalf().Close())
	select {
	case <-server.Done():
		t.Fatal("socket closed while the write half is open")
	default:
	}

	_, err = server.WriteHalf().Write([]byte("pong"))
	require.NoError(t, err)
	_, err = io.ReadFull(client.ReadHalf(), buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))

	require.NoError(t, server.WriteHalf().Close())
	select {
	case <-server.Done():
	case <-time.After(time.Second):
		t.Fatal("socket still open after both halves closed")
	}

	_, err = client.ReadHalf().Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	info := server.Info()
	assert.EqualValues(t, 4, info.BytesRead)
	assert.EqualValues(t, 4, info.BytesWritten)
	assert.NotEmpty(t, info.RemoteAddr)
}

func TestReadHalf_InterruptUnblocksRead(t *testing.T) {
	t.Parallel()

	s, accepted := startServer(t, DefaultServerConfig(), nil)
	dial(t, s)
	server := accept(t, accepted)

	errs := make(chan error, 1)
	go func() {
		_, err := server.ReadHalf().Read(make([]byte, 1))
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	server.ReadHalf().Interrupt()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(2 * time.Second):
		t.Fatal("read not interrupted")
	}

	_, err := server.ReadHalf().Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestReadHalf_IdleTimeout(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()
	cfg.Timeouts.Read = 30 * time.Millisecond
	s, accepted := startServer(t, cfg, nil)
	dial(t, s)
	server := accept(t, accepted)

	_, err := server.ReadHalf().Read(make([]byte, 1))
	var ne net.Error
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.True(t, ne.Timeout())
	assert.NotErrorIs(t, err, ErrInterrupted)
}

func TestServer_RejectsOverLimit(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetricsWith(metrics.NewComponentRegistryWith(reg, "test", "tcp"))

	cfg := DefaultServerConfig()
	cfg.MaxConnections = 1
	s, accepted := startServer(t, cfg, m)

	dial(t, s)
	accept(t, accepted)
	require.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond)

	second := dial(t, s)
	_, err := second.ReadHalf().Read(make([]byte, 1))
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsRejected))
	assert.Len(t, s.Connections(), 1)
}

func TestServer_StopClosesConnections(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetricsWith(metrics.NewComponentRegistryWith(reg, "test", "tcp"))

	s, accepted := startServer(t, DefaultServerConfig(), m)
	client := dial(t, s)
	server := accept(t, accepted)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsActive))

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	<-server.Done()
	assert.Zero(t, s.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionsActive))

	_, err := client.ReadHalf().Read(make([]byte, 1))
	assert.Error(t, err)
}
