package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/bdougie/jobtrace/internal/models"
)

const (
	// DefaultOllamaModel is the local vision model used when none is configured.
	DefaultOllamaModel = "llama3.2-vision:11b"

	defaultOllamaURL  = "http://localhost"
	defaultOllamaPort = 11434
	defaultWorkers    = 4
)

// OllamaConfig configures the local vision backend
type OllamaConfig struct {
	BaseURL string
	Port    int
	Model   string
	Workers int
}

// agentRunner runs one agent turn and returns the model's last message.
type agentRunner func(ctx context.Context, systemPrompt, input, imagePath string) (string, error)

// OllamaBackend analyzes frames with a local vision model. Small local
// models handle one image per turn, so each frame is described separately
// by a worker pool and a final text-only turn turns the ordered
// descriptions into the JSON action list.
type OllamaBackend struct {
	run     agentRunner
	model   string
	workers int
	logger  *slog.Logger
}

// NewOllamaBackend checks that Ollama is reachable and sets up the provider.
func NewOllamaBackend(ctx context.Context, cfg OllamaConfig, logger *slog.Logger) (*OllamaBackend, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Port == 0 {
		cfg.Port = defaultOllamaPort
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Check if Ollama is running
	if err := pingOllama(ctx, cfg.BaseURL, cfg.Port); err != nil {
		return nil, err
	}

	// Set up Ollama provider
	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	provider.UseModel(ctx, &types.Model{ID: cfg.Model})

	run := func(ctx context.Context, systemPrompt, input, imagePath string) (string, error) {
		a := agent.NewAgent(&agent.NewAgentConfig{
			Provider:     provider,
			Logger:       logger,
			SystemPrompt: systemPrompt,
		})
		opts := runOptions(agent.WithInput(input))
		if imagePath != "" {
			opts = append(opts, agent.WithImagePath(imagePath))
		}
		response := a.Run(ctx, opts...)
		if response.Err != nil {
			return "", response.Err
		}
		if len(response.Messages) == 0 {
			return "", fmt.Errorf("no response messages received from model")
		}
		// Get the model's response (not the prompt)
		return response.Messages[len(response.Messages)-1].Content, nil
	}

	return newOllamaBackend(run, cfg.Model, cfg.Workers, logger), nil
}

// runOptions collects agent run options into a slice that can grow.
func runOptions[T any](opts ...T) []T { return opts }

func newOllamaBackend(run agentRunner, model string, workers int, logger *slog.Logger) *OllamaBackend {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaBackend{run: run, model: model, workers: workers, logger: logger.With("component", "ollama")}
}

func (o *OllamaBackend) Name() string { return "Ollama:" + o.model }

// Analyze describes every frame, then asks for the action list.
func (o *OllamaBackend) Analyze(ctx context.Context, frames []models.Frame, session string) (string, error) {
	logger := o.logger.With("session", session)
	if len(frames) == 0 {
		logger.Warn("no frames provided to Ollama")
		return "", nil
	}

	tmpDir, err := os.MkdirTemp("", "jobtrace-"+session+"-")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer os.RemoveAll(tmpDir)

	descriptions, err := o.describeFrames(ctx, frames, tmpDir, logger)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(descriptions) == 0 {
		logger.Warn("no frame could be described")
		return "", nil
	}

	var b strings.Builder
	b.WriteString(VisionPrompt)
	b.WriteString("\nThe screenshots were described as follows, in capture order:\n\n")
	for _, d := range descriptions {
		fmt.Fprintf(&b, "Frame %d (%s): %s\n", d.FrameNum, d.CapturedAt.Format(time.TimeOnly), strings.TrimSpace(d.Content))
	}

	logger.Info("extracting actions from frame descriptions", "described", len(descriptions), "frames", len(frames))
	text, err := o.run(ctx, extractSystemPrompt, b.String(), "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	logger.Debug("Ollama raw response", "text", text)
	return strings.TrimSpace(text), nil
}

func (o *OllamaBackend) describeFrames(ctx context.Context, frames []models.Frame, tmpDir string, logger *slog.Logger) ([]models.FrameDescription, error) {
	workChan := make(chan models.WorkItem, len(frames))
	resultsChan := make(chan models.FrameDescription, len(frames))
	errorsChan := make(chan error, len(frames))

	var wg sync.WaitGroup

	remainingFrames := atomic.Int64{}
	remainingFrames.Store(int64(len(frames)))

	// Start worker pool
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				path, err := framePath(work.Frame, tmpDir)
				if err != nil {
					errorsChan <- fmt.Errorf("frame %d/%d unreadable: %v", work.FrameNum, work.Total, err)
					continue
				}
				content, err := o.run(ctx, describeSystemPrompt, describePrompt, path)
				if err != nil {
					errorsChan <- fmt.Errorf("frame %d/%d failed: %v", work.FrameNum, work.Total, err)
					continue
				}
				resultsChan <- models.FrameDescription{
					FrameNum:   work.FrameNum,
					CapturedAt: work.Frame.CapturedAt,
					Content:    content,
				}
				remaining := remainingFrames.Add(-1)
				logger.Debug("frame described", "frame", work.FrameNum, "remaining", remaining)
			}
		}()
	}

	for i, frame := range frames {
		workChan <- models.WorkItem{Frame: frame, FrameNum: i + 1, Total: len(frames)}
	}
	close(workChan)

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var descriptions []models.FrameDescription
	for d := range resultsChan {
		descriptions = append(descriptions, d)
	}
	sort.Slice(descriptions, func(i, j int) bool { return descriptions[i].FrameNum < descriptions[j].FrameNum })

	var errorMessages []string
	for err := range errorsChan {
		logger.Warn("frame description failed", "error", err)
		errorMessages = append(errorMessages, err.Error())
	}
	if len(descriptions) == 0 && len(errorMessages) > 0 {
		return nil, fmt.Errorf("encountered errors during processing: %v", strings.Join(errorMessages, "; "))
	}
	return descriptions, nil
}

// framePath returns a file holding the frame's image, writing in-memory
// frames into tmpDir.
func framePath(f models.Frame, tmpDir string) (string, error) {
	if f.Path != "" {
		if _, err := os.Stat(f.Path); err != nil {
			return "", err
		}
		return f.Path, nil
	}
	data, err := f.Bytes()
	if err != nil {
		return "", err
	}
	path := filepath.Join(tmpDir, fmt.Sprintf("frame_%04d%s", f.Seq, extensionFor(f.MIMEType)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func extensionFor(mime string) string {
	if mime == "image/png" {
		return ".png"
	}
	return ".jpg"
}

func pingOllama(ctx context.Context, baseURL string, port int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	url := fmt.Sprintf("%s:%d/api/tags", strings.TrimSuffix(baseURL, "/"), port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama at %s answered %s", url, resp.Status)
	}
	return nil
}
