package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ServerConfig holds the TCP server configuration.
type ServerConfig struct {
	ListenAddr     string
	MaxConnections int
	Timeouts       TimeoutConfig
}

// DefaultServerConfig returns defaults for a local relay.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":7070",
		MaxConnections: 100,
		Timeouts:       DefaultTimeoutConfig(),
	}
}

// Handler takes ownership of an accepted connection. It is called on its own
// goroutine and may return before the connection is done with.
type Handler func(ctx context.Context, c *Conn)

// Server accepts TCP connections and hands each to a Handler. Connections are tracked
// until their socket closes and are closed by Stop.
type Server struct {
	cfg     ServerConfig
	handler Handler
	log     zerolog.Logger
	metrics *Metrics

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewServer(cfg ServerConfig, handler Handler, log zerolog.Logger, m *Metrics) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     log.With().Str("component", "tcp-server").Logger(),
		metrics: m,
		conns:   make(map[string]*Conn),
	}
}

// Start binds the listener and starts accepting connections.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}

	s.listener = ln
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("TCP server started")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every tracked connection, then waits for the
// server goroutines or ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.cancel()
	_ = s.listener.Close()

	for _, c := range s.snapshot() {
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("TCP server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connections returns information about open connections, oldest first.
func (s *Server) Connections() []ConnInfo {
	conns := s.snapshot()
	infos := make([]ConnInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// Len returns the number of open connections.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) snapshot() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("Accept failed")
			continue
		}

		if s.cfg.MaxConnections > 0 && s.Len() >= s.cfg.MaxConnections {
			s.metrics.connRejected()
			s.log.Warn().
				Str("remote_addr", netConn.RemoteAddr().String()).
				Msg("Connection limit reached, rejecting")
			_ = netConn.Close()
			continue
		}

		c := NewConnWithTimeouts(netConn, uuid.NewString(), s.log, s.cfg.Timeouts, s.metrics)
		s.mu.Lock()
		s.conns[c.ID()] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c *Conn) {
	defer s.wg.Done()

	c.log.Info().Str("remote_addr", c.Info().RemoteAddr).Msg("Connection accepted")
	s.handler(s.ctx, c)

	select {
	case <-c.Done():
	case <-s.ctx.Done():
		_ = c.Close()
	}

	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()
}
