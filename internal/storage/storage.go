package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/jobtrace/internal/models"
)

// ErrSink marks a failed write of a batch of actions.
var ErrSink = errors.New("sink write failed")

// Sink receives validated actions. AppendActions with an empty slice is a
// no-op. Any schema or header setup happens when the sink is built.
type Sink interface {
	AppendActions(ctx context.Context, actions []models.JobAction) error
	Close() error
}

// JSONSink appends actions to a JSON array file. Each batch is written in
// full or not at all.
type JSONSink struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewJSONSink creates a sink writing to path.
func NewJSONSink(path string, logger *slog.Logger) *JSONSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONSink{
		path:   path,
		logger: logger.With("component", "json_sink"),
	}
}

// AppendActions writes the batch after the actions already in the file.
func (s *JSONSink) AppendActions(ctx context.Context, actions []models.JobAction) error {
	if len(actions) == 0 {
		s.logger.Info("no valid job actions to write")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(actions); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	s.logger.Info("wrote job actions", "count", len(actions), "path", s.path)
	return nil
}

// Close is a no-op; every batch is on disk once AppendActions returns.
func (s *JSONSink) Close() error {
	return nil
}

// write rewrites the file with batch appended. A failed write leaves the
// previous file untouched.
func (s *JSONSink) write(batch []models.JobAction) error {
	existing, err := ReadJSONActions(s.path)
	if err != nil {
		return err
	}
	all := append(existing, batch...)

	// Create directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for actions: %v", err)
		}
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

// ReadJSONActions loads the actions stored in a JSON sink file. A missing
// file holds no actions.
func ReadJSONActions(path string) ([]models.JobAction, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read actions file: %v", err)
	}
	var out []models.JobAction
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing actions: %v", err)
	}
	return out, nil
}
