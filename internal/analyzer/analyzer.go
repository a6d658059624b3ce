package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bdougie/jobtrace/internal/actions"
	"github.com/bdougie/jobtrace/internal/models"
	"github.com/bdougie/jobtrace/internal/storage"
)

// Archiver stores a copy of a session's frames. Archiving is best effort.
type Archiver interface {
	ArchiveFrames(ctx context.Context, session string, frames []models.Frame) error
}

// Processor runs one snapshot of frames through inference, parsing,
// validation and the sink.
type Processor struct {
	backend   Backend
	validator *actions.Validator
	sink      storage.Sink
	archive   Archiver
	logger    *slog.Logger
}

func NewProcessor(backend Backend, validator *actions.Validator, sink storage.Sink, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		backend:   backend,
		validator: validator,
		sink:      sink,
		logger:    logger.With("component", "processor"),
	}
}

// WithArchive uploads every processed snapshot before inference.
func (p *Processor) WithArchive(a Archiver) *Processor {
	p.archive = a
	return p
}

// Process analyzes frames and writes the resulting actions, returning how
// many were written. Inference and sink failures are returned wrapped in
// ErrInference and storage.ErrSink; unparseable model output counts as zero
// actions.
func (p *Processor) Process(ctx context.Context, session string, frames []models.Frame) (int, error) {
	logger := p.logger.With("session", session)

	if p.archive != nil && len(frames) > 0 {
		if err := p.archive.ArchiveFrames(ctx, session, frames); err != nil {
			logger.Warn("frame archive failed", "error", err)
		}
	}

	text, err := p.backend.Analyze(ctx, frames, session)
	if err != nil {
		if !errors.Is(err, ErrInference) {
			err = fmt.Errorf("%w: %v", ErrInference, err)
		}
		return 0, err
	}

	candidates, err := actions.Parse(text)
	if err != nil {
		logger.Error("failed to parse model JSON", "error", err)
		candidates = nil
	}

	valid := p.validator.Validate(candidates)
	logger.Info("actions validated", "candidates", len(candidates), "valid", len(valid))

	if err := p.sink.AppendActions(ctx, valid); err != nil {
		if !errors.Is(err, storage.ErrSink) {
			err = fmt.Errorf("%w: %v", storage.ErrSink, err)
		}
		return 0, err
	}
	return len(valid), nil
}
