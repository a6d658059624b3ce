package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdougie/jobtrace/internal/capture"
	"github.com/bdougie/jobtrace/internal/chunker"
	"github.com/bdougie/jobtrace/internal/config"
	"github.com/bdougie/jobtrace/internal/control"
	"github.com/bdougie/jobtrace/internal/engine"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	Interval    int
	Capacity    int
	Listen      string
	NoConsole   bool
	AutoAnalyze bool
	Provider    string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the capture engine",
		Long: `Start the capture engine with its control surfaces.

The engine starts in WAITING. Use the console (s = start, a = analyze,
n = new session, p = pause, r = resume, q = quit) or the HTTP control
server (POST /commands/{name}, GET /state, GET /events) to drive it.

Example:
  jobtrace run --interval 3 --listen 127.0.0.1:8765
  jobtrace run --config jobtrace.yaml --no-console`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Interval, "interval", 0, "capture interval in seconds")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "frame buffer capacity")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "control server address (empty string disables)")
	cmd.Flags().BoolVar(&opts.NoConsole, "no-console", false, "do not read commands from stdin")
	cmd.Flags().BoolVar(&opts.AutoAnalyze, "auto-analyze", false, "analyze automatically when a chunk closes")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "inference provider (gemini|ollama)")

	return cmd
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Capture.IntervalSeconds = o.Interval
	}
	if flags.Changed("capacity") {
		cfg.Capture.BufferCapacity = o.Capacity
	}
	if flags.Changed("listen") {
		cfg.Control.Listen = o.Listen
	}
	if flags.Changed("no-console") {
		cfg.Control.Console = !o.NoConsole
	}
	if flags.Changed("auto-analyze") {
		cfg.Chunk.AutoAnalyze = o.AutoAnalyze
	}
	if flags.Changed("provider") {
		cfg.Inference.Provider = o.Provider
		cfg.Inference.Model = ""
	}
}

func runEngine(cmd *cobra.Command, opts *runOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	opts.apply(cmd, cfg)
	cfg.FillModel()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close(logger)

	var sampler capture.Sampler = capture.NewFFmpegSampler(capture.FFmpegConfig{
		Binary:   cfg.Capture.FFmpegPath,
		Display:  cfg.Capture.Display,
		MaxWidth: cfg.Capture.MaxWidth,
	}, logger)
	if cfg.Capture.SpoolDir != "" {
		spool, err := capture.NewSpoolSampler(sampler, cfg.Capture.SpoolDir)
		if err != nil {
			return err
		}
		sampler = spool
	}

	buffer := capture.NewFrameBuffer(cfg.Capture.BufferCapacity, logger)
	defer buffer.Clear()

	eng, err := engine.New(engine.Options{
		Buffer:          buffer,
		Sampler:         sampler,
		Pipeline:        p.processor,
		Chunker:         chunker.New(cfg.ChunkLimit(), nil),
		Interval:        cfg.CaptureInterval(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	d := control.NewDispatcher(eng, cfg.AnalyzeTimeout(), logger)
	hub := control.NewHub()
	control.Observe(eng, hub, d, cfg.Chunk.AutoAnalyze, logger)

	var wg sync.WaitGroup
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		_ = d.Run(ctx)
	}()

	if cfg.Control.Listen != "" {
		srv := control.NewServer(d, eng, hub, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.Control.Listen); err != nil {
				logger.Error("control server failed", "error", err)
				stop()
			}
		}()
	}

	if cfg.Control.Console {
		console := control.NewConsole(d, eng, os.Stdout, stop)
		go func() {
			if err := console.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("console stopped", "error", err)
			}
		}()
	}

	logger.Info("jobtrace ready",
		slog.String("state", eng.State().String()),
		slog.Duration("interval", cfg.CaptureInterval()),
		slog.Int("capacity", cfg.Capture.BufferCapacity),
		slog.Bool("auto_analyze", cfg.Chunk.AutoAnalyze),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Commands run on the dispatcher goroutine; let it finish the one in
	// flight before stopping the capture loop.
	<-dispatcherDone
	eng.Shutdown()
	wg.Wait()
	return nil
}
