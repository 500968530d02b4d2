package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DialConfig configures an outbound connection.
type DialConfig struct {
	Timeouts TimeoutConfig
	Logger   zerolog.Logger
	Metrics  *Metrics
}

// Dial opens a TCP connection to addr.
func Dial(ctx context.Context, addr string, cfg DialConfig) (*Conn, error) {
	if cfg.Timeouts.Dial > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Dial)
		defer cancel()
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := NewConnWithTimeouts(netConn, uuid.NewString(), cfg.Logger, cfg.Timeouts, cfg.Metrics)
	c.log.Debug().Str("remote_addr", addr).Msg("Connected")
	return c, nil
}
