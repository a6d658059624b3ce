package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bdougie/jobtrace/internal/models"
)

// MultiSink writes every batch to each of its sinks. A failure in one sink
// does not stop the others; all failures are reported together.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) AppendActions(ctx context.Context, actions []models.JobAction) error {
	if len(actions) == 0 {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.AppendActions(ctx, actions); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSink, errors.Join(errs...))
	}
	return nil
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }
