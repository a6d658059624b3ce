package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bdougie/jobtrace/internal/models"
)

// SpoolSampler writes every frame produced by the wrapped sampler to a
// directory and returns a frame that only carries the file path. Releasing
// the frame deletes the file, so the buffer bounds disk use the same way it
// bounds memory.
type SpoolSampler struct {
	inner Sampler
	dir   string
}

// NewSpoolSampler wraps inner, creating dir if it does not exist.
func NewSpoolSampler(inner Sampler, dir string) (*SpoolSampler, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory '%s': %v", dir, err)
	}
	return &SpoolSampler{inner: inner, dir: dir}, nil
}

func (s *SpoolSampler) CaptureFrame(ctx context.Context) (models.Frame, error) {
	frame, err := s.inner.CaptureFrame(ctx)
	if err != nil {
		return models.Frame{}, err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d_%d%s", frame.Seq, frame.CapturedAt.UnixNano(), extensionFor(frame.MIMEType)))
	if err := os.WriteFile(path, frame.Data, 0644); err != nil {
		return models.Frame{}, fmt.Errorf("%w: spool frame: %v", ErrCapture, err)
	}
	frame.Path = path
	frame.Data = nil
	return frame, nil
}

func (s *SpoolSampler) Close() error {
	return s.inner.Close()
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}
