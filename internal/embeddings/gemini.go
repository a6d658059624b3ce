package embeddings

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "text-embedding-004"

type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiProvider produces embeddings with the Gemini embedding API.
type GeminiProvider struct {
	models     embedContenter
	model      string
	dimensions int32
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, dimensions int) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return newGeminiProvider(cli.Models, model, dimensions), nil
}

func newGeminiProvider(m embedContenter, model string, dimensions int) *GeminiProvider {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiProvider{models: m, model: model, dimensions: int32(dimensions)}
}

func (p *GeminiProvider) Embed(ctx context.Context, content string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if p.dimensions > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(p.dimensions)}
	}
	resp, err := p.models.EmbedContent(ctx, p.model, genai.Text(content), cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("embed content: empty response")
	}
	return resp.Embeddings[0].Values, nil
}
