package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/compose-network/streams/log"
	"github.com/compose-network/streams/x/codec"
	"github.com/compose-network/streams/x/packets"
	"github.com/compose-network/streams/x/queue"
	"github.com/compose-network/streams/x/sink"
	"github.com/compose-network/streams/x/stream"
	"github.com/compose-network/streams/x/transport/tcp"
)

type sendOptions struct {
	addr     string
	kind     string
	count    int
	body     string
	author   string
	labels   []string
	waitEcho bool
	timeout  time.Duration
}

func newSendCmd() *cobra.Command {
	opts := sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send packets to a running relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:7070", "relay address")
	cmd.Flags().StringVar(&opts.kind, "kind", "point", "packet kind (point, text, note, event)")
	cmd.Flags().IntVar(&opts.count, "count", 1, "number of packets to send")
	cmd.Flags().StringVar(&opts.body, "body", "hello", "body for text and note packets, kind for event packets")
	cmd.Flags().StringVar(&opts.author, "author", "stream-relay", "author for note packets")
	cmd.Flags().StringSliceVar(&opts.labels, "labels", nil, "labels for note packets, key=value attributes for event packets")
	cmd.Flags().BoolVar(&opts.waitEcho, "wait-echo", false, "wait until every packet is echoed back")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall timeout")
	return cmd
}

func runSend(cmd *cobra.Command, opts sendOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.New(cfg.Log.Level, cfg.Log.Pretty).Component("send")

	pkts, err := buildPackets(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	conn, err := tcp.Dial(ctx, opts.addr, tcp.DialConfig{
		Timeouts: tcp.TimeoutConfig{Dial: opts.timeout, Write: cfg.Server.WriteTimeout},
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := sendPackets(ctx, conn, pkts, opts.waitEcho, logger)
	fmt.Fprintf(cmd.OutOrStdout(), "sent %d %s packet(s) to %s", res.sent, opts.kind, opts.addr)
	if opts.waitEcho {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d echoed", res.echoed)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return err
}

func buildPackets(opts sendOptions) ([]codec.Packet, error) {
	if opts.count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.count)
	}

	pkts := make([]codec.Packet, 0, opts.count)
	for i := 0; i < opts.count; i++ {
		switch opts.kind {
		case "point":
			pkts = append(pkts, packets.Point{X: int32(i), Y: int32(i * i)})
		case "text":
			pkts = append(pkts, packets.Text{Body: opts.body})
		case "event":
			pkts = append(pkts, packets.Event{Kind: opts.body, Seq: uint64(i + 1), Attrs: labelAttrs(opts.labels)})
		case "note":
			pkts = append(pkts, packets.Note{
				Author:    opts.author,
				Body:      opts.body,
				Labels:    opts.labels,
				CreatedAt: time.Now().UTC(),
			})
		default:
			return nil, fmt.Errorf("unknown packet kind %q", opts.kind)
		}
	}
	return pkts, nil
}

// labelAttrs turns key=value labels into event attributes. A label without '=' maps to "".
func labelAttrs(labels []string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(labels))
	for _, l := range labels {
		k, v, _ := strings.Cut(l, "=")
		attrs[k] = v
	}
	return attrs
}

type sendResult struct {
	sent   uint64
	echoed uint64
}

// sendPackets writes pkts over conn through a writer manager and, when waitEcho is
// set, reads until as many packets have come back.
func sendPackets(ctx context.Context, conn *tcp.Conn, pkts []codec.Packet, waitEcho bool, logger zerolog.Logger) (sendResult, error) {
	want := uint64(len(pkts))

	var echoed atomic.Uint64
	echoesDone := make(chan struct{})

	var reader *stream.ReaderManager[io.Reader, codec.Packet]
	if waitEcho {
		reader = stream.StartReader[io.Reader, codec.Packet](
			conn.ReadHalf(),
			codec.NewPacketReader(packets.Registry()),
			sink.Func[codec.Packet](func(p codec.Packet) {
				logger.Debug().Str("tag", p.Tag()).Msg("Echo received")
				if echoed.Add(1) == want {
					close(echoesDone)
				}
			}),
			stream.WithLogger(logger),
		)
		defer reader.Stop()
	}

	writer := stream.StartWriter[*bufio.Writer, codec.Packet](
		conn.WriteHalf(),
		codec.NewPacketWriter(),
		queue.NewUnbounded[codec.Packet](),
		stream.WithLogger(logger),
	)
	defer writer.Stop()

	for _, p := range pkts {
		if err := writer.Send(p); err != nil {
			return sendResult{sent: writer.Records()}, err
		}
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for writer.Records() < want {
		select {
		case <-ctx.Done():
			return sendResult{sent: writer.Records()}, fmt.Errorf("waiting for writes: %w", ctx.Err())
		case <-writer.Done():
			if writer.Records() < want {
				return sendResult{sent: writer.Records()}, fmt.Errorf("writer stopped: %w", writer.Err())
			}
		case <-ticker.C:
		}
	}

	res := sendResult{sent: writer.Records()}
	if !waitEcho {
		return res, nil
	}

	select {
	case <-echoesDone:
	case <-reader.Done():
	case <-ctx.Done():
	}
	res.echoed = echoed.Load()
	if res.echoed < want {
		if err := reader.Err(); err != nil {
			return res, fmt.Errorf("waiting for echoes: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("waiting for echoes: %w", err)
		}
		return res, errors.New("waiting for echoes: connection closed")
	}
	return res, nil
}
