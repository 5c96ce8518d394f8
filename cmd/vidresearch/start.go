package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vidresearch/internal/console"
	"vidresearch/internal/logging"
	"vidresearch/internal/metrics"
	"vidresearch/internal/render"
	"vidresearch/internal/session"
	"vidresearch/internal/tui"
	"vidresearch/internal/ui"
	"vidresearch/internal/upload"
)

var startCmd = &cobra.Command{
	Use:   "start [video]",
	Short: "Upload a video and follow the research session",
	Long: `start connects to the research server derived from --url, uploads the video
and shows progress until the report arrives. Without a video argument it waits
for a video to be dropped into --watch-dir.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	flags := startCmd.Flags()
	flags.String("url", "", "page URL of the research server (default http://localhost:8000/)")
	flags.Bool("plain", false, "line-oriented output instead of the full-screen UI")
	flags.String("save-report", "", "write the final report as HTML to this file")
	flags.String("watch-dir", "", "wait for a video to appear in this directory")
	flags.Int64("max-upload-mb", 0, "refuse videos larger than this")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address")
	flags.String("log-file", "", "log file used by the full-screen UI")
	rootCmd.AddCommand(startCmd)
}

// host is the surface a session renders into.
type host interface {
	Controls() ui.Controls
	LogRegion() render.Region
	ReportRegion() render.Region
	ScrollToBottom()
}

// teeRegion mirrors report writes into a buffer for --save-report.
type teeRegion struct {
	render.Region
	saved *render.Buffer
}

func (t teeRegion) Append(b render.Block) {
	t.Region.Append(b)
	t.saved.Append(b)
}

func (t teeRegion) Reset() {
	t.Region.Reset()
	t.saved.Reset()
}

type client struct {
	machine *ui.Machine
	ctrl    *session.Controller
	report  *render.Buffer
}

func newClient(h host, endpoint string, m *metrics.Metrics, logger zerolog.Logger) *client {
	report := &render.Buffer{}
	machine := ui.New(h.Controls(), logger)
	sink := render.NewSink(h.LogRegion(), teeRegion{h.ReportRegion(), report}, h, render.NewGoldmark(), logger)
	ctrl := session.New(endpoint, machine, sink, session.Options{
		Reader:  upload.FileReader{MaxSize: cfg.Client.MaxUploadBytes()},
		Metrics: m,
		Logger:  logger,
	})
	return &client{machine: machine, ctrl: ctrl, report: report}
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint, err := session.Endpoint(cfg.Client.URL)
	if err != nil {
		return err
	}
	if len(args) == 0 && cfg.Client.WatchDir == "" {
		return errors.New("give a video path or --watch-dir")
	}

	logger, closeLog, err := clientLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Client.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.Client.MetricsAddr, reg, logger)
	}

	if cfg.Client.Plain {
		err = runConsole(ctx, endpoint, args, m, logger)
	} else {
		err = runTUI(ctx, endpoint, args, m, logger)
	}
	return err
}

func runConsole(ctx context.Context, endpoint string, args []string, m *metrics.Metrics, logger zerolog.Logger) error {
	c := console.New(os.Stdout)
	defer c.Close()
	cl := newClient(c, endpoint, m, logger)
	c.Observe(cl.machine)

	go cl.begin(ctx, args, logger)
	go func() {
		if err := c.ReadLoop(ctx, os.Stdin, cl.ctrl.SendChatMessage, session.ErrInvalidInput); err != nil {
			logger.Warn().Err(err).Msg("stdin read failed")
		}
	}()

	select {
	case <-ctx.Done():
	case <-cl.ctrl.Done():
	}
	return cl.finish()
}

func runTUI(ctx context.Context, endpoint string, args []string, m *metrics.Metrics, logger zerolog.Logger) error {
	screen := tui.NewScreen(tui.DefaultScrollback)
	cl := newClient(screen, endpoint, m, logger)

	go cl.begin(ctx, args, logger)
	err := tui.Run(ctx, screen, tui.Options{
		Title:  "vidresearch",
		Submit: cl.ctrl.SendChatMessage,
		State:  cl.ctrl.UIState,
		Quiet:  session.ErrInvalidInput,
	})
	if finishErr := cl.finish(); err == nil {
		err = finishErr
	}
	return err
}

// begin picks the video and starts the session.
func (cl *client) begin(ctx context.Context, args []string, logger zerolog.Logger) {
	path, err := pickVideo(ctx, args, logger)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error().Err(err).Msg("no video to research")
			cl.ctrl.Close()
		}
		return
	}
	if err := cl.ctrl.StartSession(ctx, path); err != nil {
		logger.Error().Err(err).Msg("start session")
	}
}

// finish closes the session and saves the report when asked to.
func (cl *client) finish() error {
	cl.ctrl.Close()
	if cfg.Client.SaveReport == "" {
		return nil
	}
	blocks := cl.report.Blocks()
	if len(blocks) == 0 {
		return nil
	}

	f, err := os.Create(cfg.Client.SaveReport)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := render.WriteHTML(f, "Research report", blocks); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func pickVideo(ctx context.Context, args []string, logger zerolog.Logger) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	w, err := upload.Watch(cfg.Client.WatchDir, upload.DefaultVideoExtensions, cfg.Client.Settle, logger)
	if err != nil {
		return "", err
	}
	defer w.Close()
	logger.Info().Str("dir", cfg.Client.WatchDir).Msg("waiting for a video")
	return w.Next(ctx)
}

// clientLogger logs to stderr in plain mode and to a file under the
// full-screen UI.
func clientLogger() (zerolog.Logger, func(), error) {
	if cfg.Client.Plain {
		return logging.New(cfg.Logging.Level, os.Stderr), func() {}, nil
	}
	logger, f, err := logging.NewFile(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logger, func() { f.Close() }, nil
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server")
	}
}
