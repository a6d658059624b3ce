package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bdougie/jobtrace/internal/actions"
	"github.com/bdougie/jobtrace/internal/analyzer"
	"github.com/bdougie/jobtrace/internal/config"
	"github.com/bdougie/jobtrace/internal/embeddings"
	"github.com/bdougie/jobtrace/internal/storage"
)

// pipeline bundles the processor with everything that must be closed when
// the command exits.
type pipeline struct {
	processor *analyzer.Processor
	sink      *storage.MultiSink
	embedder  *embeddings.Service
}

func (p *pipeline) Close(logger *slog.Logger) {
	if p.sink != nil {
		if err := p.sink.Close(); err != nil {
			logger.Error("error closing sinks", "error", err)
		}
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	backend, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	validator, err := actions.NewValidator(cfg.Validation.ConfidenceThreshold, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	p := &pipeline{}
	p.embedder, err = buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.sink, err = buildSinks(ctx, cfg, p.embedder, logger)
	if err != nil {
		p.Close(logger)
		return nil, err
	}

	p.processor = analyzer.NewProcessor(backend, validator, p.sink, logger)
	archive, err := buildArchive(cfg, logger)
	if err != nil {
		p.Close(logger)
		return nil, err
	}
	if archive != nil {
		p.processor.WithArchive(archive)
	}
	logger.Info("pipeline ready", "backend", backend.Name(), "sinks", p.sink.Len(), "archive", archive != nil)
	return p, nil
}

func buildBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (analyzer.Backend, error) {
	switch cfg.Inference.Provider {
	case config.ProviderOllama:
		return analyzer.NewOllamaBackend(ctx, analyzer.OllamaConfig{
			BaseURL: cfg.Inference.OllamaURL,
			Port:    cfg.Inference.OllamaPort,
			Model:   cfg.Inference.Model,
			Workers: cfg.Inference.Workers,
		}, logger)
	case config.ProviderGemini:
		return analyzer.NewGeminiBackend(ctx, cfg.Inference.APIKey, cfg.Inference.Model, logger)
	}
	return nil, fmt.Errorf("%w: unknown inference provider %q", config.ErrInvalid, cfg.Inference.Provider)
}

// buildEmbedder returns nil when embeddings cannot be produced: they are only
// stored alongside Postgres rows and need a Gemini key.
func buildEmbedder(ctx context.Context, cfg *config.Config) (*embeddings.Service, error) {
	if cfg.Sinks.PostgresURL == "" || cfg.Inference.APIKey == "" {
		return nil, nil
	}
	provider, err := embeddings.NewGeminiProvider(ctx, cfg.Inference.APIKey, cfg.Embeddings.Model, cfg.Embeddings.Dimensions)
	if err != nil {
		return nil, err
	}
	return embeddings.NewService(provider, cfg.Embeddings.Workers, cfg.Embeddings.CacheSize)
}

func buildSinks(ctx context.Context, cfg *config.Config, embedder *embeddings.Service, logger *slog.Logger) (*storage.MultiSink, error) {
	var sinks []storage.Sink
	fail := func(err error) (*storage.MultiSink, error) {
		closeErr := storage.NewMultiSink(sinks...).Close()
		return nil, errors.Join(err, closeErr)
	}

	if path := cfg.JSONSinkPath(); path != "" {
		sinks = append(sinks, storage.NewJSONSink(path, logger))
	}
	if cfg.Sinks.SQLitePath != "" {
		s, err := storage.OpenSQLiteSink(cfg.Sinks.SQLitePath, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Sinks.PostgresURL != "" {
		var e storage.Embedder
		if embedder != nil {
			e = embedder
		}
		s, err := storage.NewPostgresSink(ctx, cfg.Sinks.PostgresURL, e, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Sinks.SheetsID != "" {
		s, err := storage.NewSheetsSink(ctx, cfg.Sinks.SheetsID, cfg.Sinks.SheetsCredentials, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	return storage.NewMultiSink(sinks...), nil
}

func buildArchive(cfg *config.Config, logger *slog.Logger) (*storage.FrameArchive, error) {
	if cfg.Archive.Endpoint == "" {
		return nil, nil
	}
	return storage.NewFrameArchive(storage.ArchiveConfig{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	}, logger)
}
