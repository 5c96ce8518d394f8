package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"vidresearch/internal/logging"
	"vidresearch/internal/metrics"
	"vidresearch/internal/realtime"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development research server",
	Long: `serve accepts research sessions on /ws. Uploaded videos are stored under
--upload-dir and handed to --analyzer; without an analyzer a scripted pipeline
replays the usual progress steps and answers with a placeholder summary.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "", "listen address (default :8000)")
	flags.String("upload-dir", "", "directory for received videos (default uploads)")
	flags.String("static-dir", "", "serve a web client from this directory")
	flags.StringSlice("analyzer", nil, "analyzer command; the video path is appended")
	flags.StringSlice("responder", nil, "chat command; reads the transcript as JSON on stdin")
	flags.Duration("step-delay", 0, "pause between scripted progress steps")
	rootCmd.AddCommand(serveCmd)
}

func newPipeline() realtime.Pipeline {
	scripted := realtime.ScriptedPipeline{StepDelay: cfg.Server.StepDelay}
	if len(cfg.Server.Analyzer) == 0 {
		return scripted
	}
	return realtime.CommandPipeline{
		AnalyzeArgs: cfg.Server.Analyzer,
		ChatArgs:    cfg.Server.Responder,
		Fallback:    scripted,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(cfg.Logging.Level, os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rtServer := realtime.New(realtime.Config{
		UploadDir: cfg.Server.UploadDir,
		StaticDir: cfg.Server.StaticDir,
		Pipeline:  newPipeline(),
		Metrics:   metrics.New(reg),
		Gatherer:  reg,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           rtServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on signals.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		rtServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("uploads", cfg.Server.UploadDir).
		Strs("analyzer", cfg.Server.Analyzer).
		Msg("research server running")
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
