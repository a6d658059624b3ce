package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/bdougie/jobtrace/internal/models"
)

// DefaultMaxWidth bounds captured frames; wider screens are downscaled.
const DefaultMaxWidth = 1280

// FFmpegConfig configures the ffmpeg screen grabber
type FFmpegConfig struct {
	// Binary is the ffmpeg executable name or path.
	Binary string
	// Display is the platform input: an X11 display on Linux (":0.0"),
	// an avfoundation device on macOS ("1:none"), "desktop" on Windows.
	Display string
	// MaxWidth downscales wider frames, preserving aspect ratio.
	MaxWidth int
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpegSampler grabs a single frame of the desktop per call by running
// ffmpeg with the platform's screen-grab input device.
type FFmpegSampler struct {
	cfg      FFmpegConfig
	logger   *slog.Logger
	run      commandRunner
	lookPath func(string) (string, error)
	goos     string

	// set on first capture, on the capture goroutine
	binary    string
	inputArgs []string
	seq       uint64
}

// NewFFmpegSampler creates a sampler. Nothing is resolved until the first
// CaptureFrame call.
func NewFFmpegSampler(cfg FFmpegConfig, logger *slog.Logger) *FFmpegSampler {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSampler{
		cfg:      cfg,
		logger:   logger.With("component", "sampler"),
		run:      runCommand,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
	}
}

func (s *FFmpegSampler) ensureContext() error {
	if s.binary != "" {
		return nil
	}
	path, err := s.lookPath(s.cfg.Binary)
	if err != nil {
		return fmt.Errorf("%w: ffmpeg not found: %v", ErrCapture, err)
	}
	args, err := screenInputArgs(s.goos, s.cfg.Display)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}
	s.binary = path
	s.inputArgs = args
	s.logger.Info("screen grabber initialized in capture goroutine", "ffmpeg", path, "input", strings.Join(args, " "))
	return nil
}

// CaptureFrame grabs one JPEG-encoded frame of the screen.
func (s *FFmpegSampler) CaptureFrame(ctx context.Context) (models.Frame, error) {
	if err := s.ensureContext(); err != nil {
		return models.Frame{}, err
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, s.inputArgs...)
	args = append(args,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", s.cfg.MaxWidth),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"-",
	)

	capturedAt := time.Now()
	data, err := s.run(ctx, s.binary, args...)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if len(data) == 0 {
		return models.Frame{}, fmt.Errorf("%w: ffmpeg produced no image", ErrCapture)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: undecodable frame: %v", ErrCapture, err)
	}

	s.seq++
	return models.Frame{
		Seq:        s.seq,
		CapturedAt: capturedAt,
		Width:      cfg.Width,
		Height:     cfg.Height,
		MIMEType:   "image/jpeg",
		Data:       data,
	}, nil
}

// Close forgets the resolved backend so the next capture initializes again.
func (s *FFmpegSampler) Close() error {
	s.binary = ""
	s.inputArgs = nil
	return nil
}

func screenInputArgs(goos, display string) ([]string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		if display == "" {
			display = os.Getenv("DISPLAY")
		}
		if display == "" {
			return nil, fmt.Errorf("no X11 display available (DISPLAY is unset)")
		}
		return []string{"-f", "x11grab", "-i", display}, nil
	case "darwin":
		if display == "" {
			display = "1:none"
		}
		return []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", display}, nil
	case "windows":
		if display == "" {
			display = "desktop"
		}
		return []string{"-f", "gdigrab", "-i", display}, nil
	default:
		return nil, fmt.Errorf("screen capture is not supported on %s", goos)
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
