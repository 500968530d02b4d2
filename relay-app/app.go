package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/compose-network/streams/metrics"
	"github.com/compose-network/streams/relay-app/config"
	apisrv "github.com/compose-network/streams/server/api"
	apimw "github.com/compose-network/streams/server/api/middleware"
	"github.com/compose-network/streams/x/codec"
	"github.com/compose-network/streams/x/monitor"
	monitorhttp "github.com/compose-network/streams/x/monitor/http"
	"github.com/compose-network/streams/x/packets"
	periodrunner "github.com/compose-network/streams/x/period-runner"
	"github.com/compose-network/streams/x/queue"
	"github.com/compose-network/streams/x/sink"
	"github.com/compose-network/streams/x/stream"
	"github.com/compose-network/streams/x/transport/tcp"
)

// delivery is a packet together with the connection it arrived on.
type delivery struct {
	connID string
	packet codec.Packet
}

// session holds the managers serving one connection.
type session struct {
	conn   *tcp.Conn
	reader *stream.ReaderManager[io.Reader, codec.Packet]
	writer *stream.WriterManager[*bufio.Writer, codec.Packet]
}

// App is the relay: it accepts TCP connections, decodes tagged packets from each one
// and hands them to a shared fan-out that logs, counts and optionally echoes them.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	registry      *codec.Registry
	streamMetrics *stream.Metrics
	sinkMetrics   *sink.Metrics
	tcpMetrics    *tcp.Metrics

	tracker   *monitor.Tracker
	pruner    *periodrunner.LocalPeriodRunner
	fanout    *sink.FanOut[delivery]
	tcpServer *tcp.Server
	apiServer *apisrv.Server

	mu       sync.RWMutex
	sessions map[string]*session
	perTag   map[string]uint64

	startedAt time.Time
	accepted  atomic.Uint64
	echoed    atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg:      cfg,
		log:      log.With().Str("component", "app").Logger(),
		registry: packets.RegistryWith(cfg.Server.MaxMessageSize),
		tracker:  monitor.NewTracker(log),
		sessions: make(map[string]*session),
		perTag:   make(map[string]uint64),
	}

	if cfg.Metrics.Enabled {
		app.streamMetrics = stream.NewMetrics()
		app.sinkMetrics = sink.NewMetrics()
		app.tcpMetrics = tcp.NewMetrics()
	}

	if err := app.initialize(log); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return app, nil
}

func (a *App) initialize(log zerolog.Logger) error {
	opts := []sink.Option{
		sink.WithName("relay"),
		sink.WithLogger(log),
		sink.WithMetrics(a.sinkMetrics),
		sink.WithWorkerExitHook(func(e sink.WorkerExit) {
			if e.Err != nil {
				a.log.Warn().Err(e.Err).Int("worker", e.Worker).Msg("Relay worker lost")
			}
		}),
	}
	if a.cfg.Stream.QueueCapacity > 0 {
		opts = append(opts, sink.WithBoundedQueue(a.cfg.Stream.QueueCapacity))
	}

	fanout, err := sink.NewFanOut[delivery](sink.Func[delivery](a.process), a.cfg.Stream.Workers, opts...)
	if err != nil {
		return fmt.Errorf("failed to create fan-out: %w", err)
	}
	a.fanout = fanout

	a.tcpServer = tcp.NewServer(tcp.ServerConfig{
		ListenAddr:     a.cfg.Server.ListenAddr,
		MaxConnections: a.cfg.Server.MaxConnections,
		Timeouts: tcp.TimeoutConfig{
			Read:  a.cfg.Server.ReadTimeout,
			Write: a.cfg.Server.WriteTimeout,
		},
	}, a.handleConn, log, a.tcpMetrics)

	prunerCfg := periodrunner.DefaultPeriodRunnerConfig(log)
	prunerCfg.Period = a.cfg.Stream.PruneInterval
	prunerCfg.Handler = a.prune
	a.pruner = periodrunner.NewLocalPeriodRunner(prunerCfg)

	a.initializeAPIServer(log)
	return nil
}

// initializeAPIServer sets up the HTTP API server with all endpoints
func (a *App) initializeAPIServer(log zerolog.Logger) {
	s := apisrv.NewServer(a.cfg.API, log)
	s.Use(apimw.Recover(log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(log, "/health", a.cfg.Metrics.Path))

	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)

	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	monitorhttp.NewHandler(a.tracker, log).RegisterMux(s.Router)
	a.apiServer = s
}

// Start starts the TCP server, the API server and the housekeeping loop.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.startedAt = time.Now()

	if err := a.tcpServer.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start tcp server: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("API server error")
		}
	}()

	if err := a.pruner.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start pruner: %w", err)
	}

	return nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.runWithGracefulShutdown(ctx)
}

// runWithGracefulShutdown handles shutdown signals.
func (a *App) runWithGracefulShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a.log.Info().Msg("Relay started successfully")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	return a.Shutdown()
}

// Shutdown stops every manager, the servers and the fan-out.
func (a *App) Shutdown() error {
	a.log.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.tracker.StopAll()

	if err := a.tcpServer.Stop(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("TCP server shutdown error")
	}

	if err := a.pruner.Stop(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Pruner shutdown error")
	}
	if a.cancel != nil {
		a.cancel()
	}

	a.fanout.Stop()
	if err := a.fanout.Wait(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Fan-out shutdown error")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		<-a.pruner.Done()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}

	a.log.Info().
		Uint64("packets", a.accepted.Load()).
		Uint64("dropped", a.fanout.Dropped()).
		Msg("Graceful shutdown complete")
	return nil
}

// handleConn wires one accepted connection: a reader manager on the read half and,
// when echo is enabled, a writer manager on the write half.
func (a *App) handleConn(_ context.Context, c *tcp.Conn) {
	sess := &session{conn: c}
	labels := map[string]string{"conn_id": c.ID(), "remote_addr": c.Info().RemoteAddr}

	if a.cfg.Stream.Echo {
		sess.writer = stream.StartWriter[*bufio.Writer, codec.Packet](
			c.WriteHalf(),
			codec.NewPacketWriter(),
			queue.NewUnbounded[codec.Packet](),
			stream.WithID(c.ID()+"/write"),
			stream.WithLogger(a.log),
			stream.WithMetrics(a.streamMetrics),
		)
		a.tracker.Track(sess.writer, labels)
	} else if err := c.WriteHalf().Close(); err != nil {
		a.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("Failed to close write half")
	}

	var readerOpts []codec.ReaderOption
	if !a.cfg.Stream.Buffered {
		readerOpts = append(readerOpts, codec.Unbuffered())
	}

	a.mu.Lock()
	a.sessions[c.ID()] = sess
	a.mu.Unlock()

	connID := c.ID()
	sess.reader = stream.StartReader[io.Reader, codec.Packet](
		c.ReadHalf(),
		codec.NewPacketReader(a.registry, readerOpts...),
		sink.Func[codec.Packet](func(p codec.Packet) {
			a.fanout.Process(delivery{connID: connID, packet: p})
		}),
		stream.WithID(connID+"/read"),
		stream.WithLogger(a.log),
		stream.WithMetrics(a.streamMetrics),
		stream.WithExitHook(a.readerExited(sess)),
	)
	a.tracker.Track(sess.reader, labels)
}

// readerExited ends the session once its reader is gone: the writer is stopped, which
// closes the write half and with it the socket.
func (a *App) readerExited(sess *session) stream.ExitHook {
	return func(e stream.Exit) {
		if sess.writer != nil {
			sess.writer.Stop()
		}

		a.mu.Lock()
		delete(a.sessions, sess.conn.ID())
		a.mu.Unlock()

		a.log.Debug().
			Str("conn_id", sess.conn.ID()).
			Uint64("records", e.Records).
			Dur("duration", e.Duration).
			Msg("Session ended")
	}
}

// process is the fan-out sink: it counts, logs and optionally echoes one packet.
func (a *App) process(d delivery) {
	tag := d.packet.Tag()
	a.accepted.Add(1)

	a.mu.Lock()
	a.perTag[tag]++
	sess := a.sessions[d.connID]
	a.mu.Unlock()

	if a.cfg.Stream.LogPackets {
		a.log.Info().
			Str("conn_id", d.connID).
			Str("tag", tag).
			Str("packet", describe(d.packet)).
			Msg("Packet received")
	}

	if sess == nil || sess.writer == nil {
		return
	}
	if err := sess.writer.Send(d.packet); err != nil {
		a.log.Debug().Err(err).Str("conn_id", d.connID).Msg("Echo dropped")
		return
	}
	a.echoed.Add(1)
}

// prune drops closed managers from the tracker once they are older than RetainClosed.
func (a *App) prune(_ context.Context, info periodrunner.PeriodInfo) error {
	if n := a.tracker.Prune(a.cfg.Stream.RetainClosed); n > 0 {
		a.log.Debug().Uint64("period_id", info.PeriodID).Int("pruned", n).Msg("Pruned closed managers")
	}
	return nil
}

// handleHealth responds to health check requests.
func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, a.GetStats())
}

// GetStats returns application statistics.
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	perTag := make(map[string]uint64, len(a.perTag))
	for tag, n := range a.perTag {
		perTag[tag] = n
	}
	sessions := len(a.sessions)
	a.mu.RUnlock()

	stats := map[string]any{
		"app_version":        Version,
		"app_build_time":     BuildTime,
		"app_git_commit":     GitCommit,
		"active_connections": a.tcpServer.Len(),
		"active_sessions":    sessions,
		"packets_received":   a.accepted.Load(),
		"packets_echoed":     a.echoed.Load(),
		"packets_by_tag":     perTag,
		"managers":           a.tracker.Summary(),
		"fanout": map[string]any{
			"workers_alive": a.fanout.Alive(),
			"queued":        a.fanout.Len(),
			"processed":     a.fanout.Processed(),
			"dropped":       a.fanout.Dropped(),
		},
		"tags": a.registry.Tags(),
	}
	if !a.startedAt.IsZero() {
		stats["uptime_seconds"] = time.Since(a.startedAt).Seconds()
	}
	return stats
}

func describe(p codec.Packet) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%+v", p)
}
