package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/config"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/server"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// serveFlags are the collector settings that can be overridden per run.
type serveFlags struct {
	addr       string
	rateLimit  float64
	burst      int
	idle       time.Duration
	uploadURL  string
	autoUpload time.Duration
	recordFile string
	sinks      sinkOptions
}

func (f *serveFlags) addFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().StringVar(&f.addr, "addr", d.Server.Addr, "address to listen on")
	cmd.Flags().Float64Var(&f.rateLimit, "rate-limit", d.Server.RateLimit, "requests per second per client (0 = unlimited)")
	cmd.Flags().IntVar(&f.burst, "burst", d.Server.Burst, "request burst per client")
	cmd.Flags().DurationVar(&f.idle, "idle-timeout", d.Server.IdleTimeout, "evict sessions idle this long (0 = never)")
	cmd.Flags().StringVar(&f.uploadURL, "upload-url", "", "endpoint reports are uploaded to")
	cmd.Flags().DurationVar(&f.autoUpload, "auto-upload", 0, "upload a report once errors are quiet for this long (0 = off)")
	cmd.Flags().StringVar(&f.recordFile, "record", "", "append session events to this NDJSON file")
	f.sinks = defaultSinkOptions()
	f.sinks.addFlags(cmd)
}

// apply overrides cfg with the flags that were set on cmd.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Server.Addr = f.addr
	}
	if changed("rate-limit") {
		cfg.Server.RateLimit = f.rateLimit
	}
	if changed("burst") {
		cfg.Server.Burst = f.burst
	}
	if changed("idle-timeout") {
		cfg.Server.IdleTimeout = f.idle
	}
	if changed("upload-url") {
		cfg.Monitor.UploadURL = f.uploadURL
	}
	if changed("auto-upload") {
		cfg.Monitor.AutoUpload = f.autoUpload
	}
	if changed("record") {
		cfg.Recorder.Enabled = f.recordFile != ""
		cfg.Recorder.Path = f.recordFile
	}

	sc, err := f.sinks.resolve(cmd, cfg.Sink)
	if err != nil {
		return err
	}
	cfg.Sink = sc
	return cfg.Validate()
}

func newServeCmd(ro *rootOptions) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the Beacon collector",
		Long: `Starts the HTTP collector. Pages create a session, post their timing
data and error events, and read or upload the aggregated report.

Endpoints:
  GET    /                              Live error dashboard
  GET    /health                        Health check
  WS     /ws                            Live error and report stream
  GET    /api/sessions                  List sessions
  POST   /api/sessions                  Create a session
  GET    /api/sessions/{id}/report      Current report
  POST   /api/sessions/{id}/timing      Navigation and resource timing
  POST   /api/sessions/{id}/events      error, rejection or load event
  POST   /api/sessions/{id}/errors      Add an error manually
  DELETE /api/sessions/{id}/errors      Clear errors
  POST   /api/sessions/{id}/reset       Re-snapshot timing and clear errors
  PUT    /api/sessions/{id}/url         Set the upload endpoint
  POST   /api/sessions/{id}/upload      Upload the report
  GET    /api/uploads                   Reports held by the memory sink`,
		Example: `  beacon serve
  beacon serve --addr :9090 --rate-limit 50 --burst 100
  beacon serve --sink http,log --upload-url https://collector.example.com/reports
  beacon serve --sink redis --redis-host localhost:6379 --record sessions.ndjson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			logger, err := ro.logger(&cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, logger, func(addr string) {
				logger.Info("collector ready",
					zap.String("dashboard", "http://"+addr+"/"),
					zap.String("api", "http://"+addr+"/api/sessions"))
			})
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// runServer runs the collector until ctx is done. ready is called with the
// bound address once the listener is open.
func runServer(ctx context.Context, cfg config.Config, logger *zap.Logger, ready func(addr string)) error {
	clk := clock.NewRealClock()

	snk, err := sink.Open(cfg.Sink, clk, logger)
	if err != nil {
		return fmt.Errorf("opening sink: %w", err)
	}
	defer snk.Close()

	rec, closeRec, err := openRecorder(cfg.Recorder)
	if err != nil {
		return err
	}
	defer closeRec()

	srv := server.New(server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Clock:        clk,
		Logger:       logger,
		Sessions:     session.NewRegistry(clk, logger, monitorOptions(cfg.Monitor, snk)...),
		Recorder:     rec,
		Uploads:      sink.MemoryOf(snk),
		RateLimit:    cfg.Server.RateLimit,
		Burst:        cfg.Server.Burst,
		Snapshot:     cfg.Server.Snapshot,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.StartOnListener(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down", zap.Int("recorded", recordedLen(rec)))
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// monitorOptions turns the monitor config into options for every session.
func monitorOptions(mc config.MonitorConfig, snk sink.Sink) []telemetry.Option {
	opts := []telemetry.Option{
		telemetry.WithUploader(snk),
		telemetry.WithURL(mc.UploadURL),
	}
	if mc.AutoUpload > 0 {
		opts = append(opts, telemetry.WithAutoUpload(mc.AutoUpload))
	}
	if mc.Beacon.URL != "" || mc.Beacon.TimeoutURL != "" {
		opts = append(opts, telemetry.WithBeacon(snk, mc.Beacon))
	}
	return opts
}

func openRecorder(rc config.RecorderConfig) (*recorder.Recorder, func(), error) {
	if !rc.Enabled {
		return nil, func() {}, nil
	}
	if rc.Path == "" {
		return recorder.New(nil), func() {}, nil
	}

	f, err := os.OpenFile(rc.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening record file: %w", err)
	}
	return recorder.New(f), func() { _ = f.Close() }, nil
}

func recordedLen(rec *recorder.Recorder) int {
	if rec == nil {
		return 0
	}
	return rec.Len()
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
