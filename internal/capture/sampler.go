package capture

import (
	"context"
	"errors"

	"github.com/bdougie/jobtrace/internal/models"
)

// ErrCapture marks a failed single-frame capture. It is transient: the
// capture loop logs it and tries again on the next tick.
var ErrCapture = errors.New("capture failed")

// Sampler produces one frame per call.
//
// Samplers are thread-affine. The first CaptureFrame call initializes the
// backend on the calling goroutine's OS thread and later calls reuse that
// setup, so a sampler must only be driven from a single goroutine locked to
// its thread (see engine's capture loop). Close tears the setup down; the
// next CaptureFrame initializes again on whichever thread calls it.
type Sampler interface {
	CaptureFrame(ctx context.Context) (models.Frame, error)
	Close() error
}
