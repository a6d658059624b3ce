package analyzer

import (
	"context"
	"errors"

	"github.com/bdougie/jobtrace/internal/models"
)

// ErrInference marks a failed call to the vision backend. It ends the
// current analyze attempt.
var ErrInference = errors.New("inference failed")

// Backend turns an ordered batch of frames into raw model text. An empty
// string means the model found nothing.
type Backend interface {
	Analyze(ctx context.Context, frames []models.Frame, session string) (string, error)
	Name() string
}
