package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bdougie/jobtrace/internal/engine"
	"github.com/bdougie/jobtrace/internal/extractor"
)

type videoOptions struct {
	*rootOptions
	Video    string
	Output   string
	Interval int
}

func newAnalyzeVideoCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &videoOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze-video",
		Short: "Extract frames from a screen recording and analyze them once",
		Long: `Extract frames from a recorded video at a fixed interval, keep the most
recent buffer_capacity frames and run one analysis pass over them.

Example:
  jobtrace analyze-video --video session.mp4 --interval 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyzeVideo(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Video, "video", "", "path to the video file (required)")
	cmd.Flags().StringVar(&opts.Output, "output", "output_frames", "directory for extracted frames")
	cmd.Flags().IntVar(&opts.Interval, "interval", 5, "seconds between extracted frames")
	_ = cmd.MarkFlagRequired("video")

	return cmd
}

func analyzeVideo(cmd *cobra.Command, opts *videoOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("extracting frames", "video", opts.Video, "interval", opts.Interval)
	frames, err := extractor.ExtractFrames(ctx, opts.Video, opts.Output, opts.Interval, cfg.Capture.MaxWidth)
	if err != nil {
		return err
	}
	if n := cfg.Capture.BufferCapacity; len(frames) > n {
		logger.Info("keeping most recent frames", "extracted", len(frames), "kept", n)
		frames = frames[len(frames)-n:]
	}

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close(logger)

	session := engine.NewSessionToken()
	count, err := p.processor.Process(ctx, session, frames)
	if err != nil {
		return fmt.Errorf("analysis %s failed: %w", session, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Video processing completed: %d actions from %d frames (session %s)\n", count, len(frames), session)
	return nil
}
