package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrInterrupted is returned by a half whose blocked I/O was interrupted.
var ErrInterrupted = errors.New("tcp: interrupted")

// TimeoutConfig contains timeout settings for connection operations
type TimeoutConfig struct {
	Dial  time.Duration // Timeout for establishing outbound connections (default: 5s)
	Read  time.Duration // Idle timeout per read, zero disables it (default: 0)
	Write time.Duration // Timeout per write (default: 20s)
}

// DefaultTimeoutConfig returns production-ready timeout defaults
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Dial:  5 * time.Second,
		Read:  0,
		Write: 20 * time.Second,
	}
}

// ConnInfo describes a connection.
type ConnInfo struct {
	ID           string    `json:"id"`
	RemoteAddr   string    `json:"remote_addr"`
	LocalAddr    string    `json:"local_addr"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastSeen     time.Time `json:"last_seen"`
	BytesRead    uint64    `json:"bytes_read"`
	BytesWritten uint64    `json:"bytes_written"`
}

// Conn wraps a net.Conn and splits it into a read half and a write half, so one
// reader manager and one writer manager can each own a direction. The socket is
// closed once both halves are closed, or at once by Close.
type Conn struct {
	conn     net.Conn
	id       string
	log      zerolog.Logger
	timeouts TimeoutConfig
	metrics  *Metrics

	mu   sync.RWMutex
	info ConnInfo

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	read       *ReadHalf
	write      *WriteHalf
	openHalves atomic.Int32
	closeOnce  sync.Once
	closeErr   error
	done       chan struct{}
}

// NewConn creates a connection wrapper with default timeouts
func NewConn(netConn net.Conn, id string, log zerolog.Logger) *Conn {
	return NewConnWithTimeouts(netConn, id, log, DefaultTimeoutConfig(), nil)
}

// NewConnWithTimeouts creates a connection wrapper with custom timeout configuration
func NewConnWithTimeouts(netConn net.Conn, id string, log zerolog.Logger, timeouts TimeoutConfig, m *Metrics) *Conn {
	now := time.Now()

	c := &Conn{
		conn:     netConn,
		id:       id,
		log:      log.With().Str("conn_id", id).Logger(),
		timeouts: timeouts,
		metrics:  m,
		info: ConnInfo{
			ID:          id,
			RemoteAddr:  addrString(netConn.RemoteAddr()),
			LocalAddr:   addrString(netConn.LocalAddr()),
			ConnectedAt: now,
			LastSeen:    now,
		},
		done: make(chan struct{}),
	}
	c.read = &ReadHalf{c: c}
	c.write = &WriteHalf{c: c}
	c.openHalves.Store(2)
	m.connOpened()
	return c
}

// ID returns the connection ID.
func (c *Conn) ID() string {
	return c.id
}

// ReadHalf returns the read direction of the connection.
func (c *Conn) ReadHalf() *ReadHalf {
	return c.read
}

// WriteHalf returns the write direction of the connection.
func (c *Conn) WriteHalf() *WriteHalf {
	return c.write
}

// Done is closed once the socket has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Info returns connection information.
func (c *Conn) Info() ConnInfo {
	c.mu.RLock()
	info := c.info
	c.mu.RUnlock()

	info.BytesRead = c.bytesRead.Load()
	info.BytesWritten = c.bytesWritten.Load()
	return info
}

// Close closes the socket regardless of the halves.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		c.mu.RLock()
		connectedAt := c.info.ConnectedAt
		c.mu.RUnlock()
		c.metrics.connClosed(time.Since(connectedAt))
		c.log.Debug().
			Uint64("bytes_read", c.bytesRead.Load()).
			Uint64("bytes_written", c.bytesWritten.Load()).
			Msg("Connection closed")
		close(c.done)
	})
	return c.closeErr
}

func (c *Conn) releaseHalf() error {
	if c.openHalves.Add(-1) > 0 {
		return nil
	}
	return c.Close()
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.info.LastSeen = time.Now()
	c.mu.Unlock()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// ReadHalf is the read direction of a Conn. It implements io.ReadCloser and can be
// interrupted from another goroutine.
type ReadHalf struct {
	c           *Conn
	interrupted atomic.Bool
	closed      atomic.Bool
}

func (h *ReadHalf) Read(p []byte) (int, error) {
	if h.interrupted.Load() {
		return 0, ErrInterrupted
	}
	if h.c.timeouts.Read > 0 {
		if err := h.c.conn.SetReadDeadline(time.Now().Add(h.c.timeouts.Read)); err != nil {
			return 0, fmt.Errorf("failed to set read deadline: %w", err)
		}
		// An Interrupt racing with the deadline above must still win.
		if h.interrupted.Load() {
			return 0, ErrInterrupted
		}
	}

	n, err := h.c.conn.Read(p)
	if n > 0 {
		h.c.bytesRead.Add(uint64(n))
		h.c.metrics.addRead(n)
		h.c.touch()
	}
	if err != nil && h.interrupted.Load() {
		err = fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return n, err
}

// Interrupt makes a blocked or future Read return ErrInterrupted.
func (h *ReadHalf) Interrupt() {
	h.interrupted.Store(true)
	if err := h.c.conn.SetReadDeadline(time.Unix(1, 0)); err != nil {
		h.c.log.Debug().Err(err).Msg("Failed to interrupt read")
	}
}

// Close shuts down the read direction. The socket closes with the last half.
func (h *ReadHalf) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if cr, ok := h.c.conn.(interface{ CloseRead() error }); ok {
		_ = cr.CloseRead()
	}
	return h.c.releaseHalf()
}

// WriteHalf is the write direction of a Conn. It implements io.WriteCloser and can be
// interrupted from another goroutine. Closing it sends FIN to the peer.
type WriteHalf struct {
	c           *Conn
	mu          sync.Mutex
	interrupted atomic.Bool
	closed      atomic.Bool
}

func (h *WriteHalf) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.interrupted.Load() {
		return 0, ErrInterrupted
	}
	if h.c.timeouts.Write > 0 {
		if err := h.c.conn.SetWriteDeadline(time.Now().Add(h.c.timeouts.Write)); err != nil {
			return 0, fmt.Errorf("failed to set write deadline: %w", err)
		}
		if h.interrupted.Load() {
			return 0, ErrInterrupted
		}
	}

	n, err := h.c.conn.Write(p)
	if n > 0 {
		h.c.bytesWritten.Add(uint64(n))
		h.c.metrics.addWritten(n)
		h.c.touch()
	}
	if err != nil && h.interrupted.Load() {
		err = fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return n, err
}

// Interrupt makes a blocked or future Write return ErrInterrupted.
func (h *WriteHalf) Interrupt() {
	h.interrupted.Store(true)
	if err := h.c.conn.SetWriteDeadline(time.Unix(1, 0)); err != nil {
		h.c.log.Debug().Err(err).Msg("Failed to interrupt write")
	}
}

// Close shuts down the write direction. The socket closes with the last half.
func (h *WriteHalf) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if cw, ok := h.c.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	return h.c.releaseHalf()
}
