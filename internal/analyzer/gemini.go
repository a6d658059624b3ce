package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	genai "google.golang.org/genai"

	"github.com/bdougie/jobtrace/internal/models"
)

// DefaultGeminiModel is the vision model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// ErrMissingAPIKey is returned when the Gemini backend is built without a key.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY not set")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend sends all frames of a session to Gemini in one request.
type GeminiBackend struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

// NewGeminiBackend creates a client for the Gemini API.
func NewGeminiBackend(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newGeminiBackend(cli.Models, model, logger), nil
}

func newGeminiBackend(models contentGenerator, model string, logger *slog.Logger) *GeminiBackend {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gemini")
	logger.Info("Gemini client initialized", "model", model)
	return &GeminiBackend{models: models, model: model, logger: logger}
}

func (g *GeminiBackend) Name() string { return "Gemini:" + g.model }

// Analyze sends the vision prompt followed by every readable frame. Frames
// whose bytes cannot be loaded are skipped; with no frames left no request
// is made and the answer is empty.
func (g *GeminiBackend) Analyze(ctx context.Context, frames []models.Frame, session string) (string, error) {
	logger := g.logger.With("session", session)
	logger.Info("preparing content for Gemini")

	parts := []*genai.Part{{Text: VisionPrompt}}
	for _, f := range frames {
		data, err := f.Bytes()
		if err != nil {
			logger.Warn("skipping unreadable frame", "seq", f.Seq, "error", err)
			continue
		}
		mime := f.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}})
	}

	images := len(parts) - 1
	logger.Info("added images to Gemini input", "images", images, "frames", len(frames))
	if images == 0 {
		logger.Warn("no valid images provided to Gemini")
		return "", nil
	}

	logger.Info("sending request to Gemini Vision")
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}

	text := responseText(resp)
	if text == "" {
		logger.Warn("Gemini returned empty response")
	} else {
		logger.Debug("Gemini raw response", "text", text)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
