package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/jobtrace/internal/models"
)

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PostgresSink stores actions in PostgreSQL, with an optional pgvector
// embedding of each action for similarity search.
type PostgresSink struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

// NewPostgresSink connects to the database at connString. embedder may be
// nil, in which case actions are stored without embeddings.
func NewPostgresSink(ctx context.Context, connString string, embedder Embedder, logger *slog.Logger) (*PostgresSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSink{
		pool:     pool,
		embedder: embedder,
		logger:   logger.With("component", "postgres_sink"),
	}, nil
}

// Close closes the database connection
func (s *PostgresSink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// AppendActions inserts the batch in one transaction.
func (s *PostgresSink) AppendActions(ctx context.Context, actions []models.JobAction) error {
	if len(actions) == 0 {
		return nil
	}

	vectors := make([]any, len(actions))
	if s.embedder != nil {
		for i, a := range actions {
			embedding, err := s.embedder.Embed(ctx, a.Summary())
			if err != nil {
				// Log error but continue without embedding
				s.logger.Warn("failed to generate embedding", "company", a.CompanyName, "error", err)
				continue
			}
			vectors[i] = pgvector.NewVector(embedding)
		}
	}

	batch := &pgx.Batch{}
	for i, a := range actions {
		batch.Queue(
			`INSERT INTO job_actions
			(company_name, role, recruiter_name, action_type, channel, confidence, notes, embedding, action_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.CompanyName, a.Role, a.RecruiterName, a.ActionType, a.Channel, a.Confidence, a.Notes,
			vectors[i], a.Timestamp, time.Now(),
		)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store actions: %v", ErrSink, err)
	}
	s.logger.Info("wrote job actions", "count", len(actions))
	return nil
}

// SearchSimilarActions finds stored actions closest to query.
func (s *PostgresSink) SearchSimilarActions(ctx context.Context, query string, limit int) ([]models.ActionSearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("similarity search needs an embedder")
	}
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT company_name, role, recruiter_name, action_type, channel, confidence, notes, action_time,
		1 - (embedding <=> $1) AS similarity
		FROM job_actions
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar actions: %w", err)
	}
	defer rows.Close()

	var results []models.ActionSearchResult
	for rows.Next() {
		var r models.ActionSearchResult
		if err := rows.Scan(&r.Action.CompanyName, &r.Action.Role, &r.Action.RecruiterName, &r.Action.ActionType,
			&r.Action.Channel, &r.Action.Confidence, &r.Action.Notes, &r.Action.Timestamp, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InitPostgresSchema creates the pgvector extension and job_actions table.
func InitPostgresSchema(ctx context.Context, connString string, dimensions int) error {
	if dimensions <= 0 {
		dimensions = 768
	}

	// Connect to PostgreSQL
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	// Check if vector extension exists
	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for vector extension: %w", err)
	}

	// Create vector extension if it doesn't exist
	if !exists {
		_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
		if err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS job_actions (
            id SERIAL PRIMARY KEY,
            company_name TEXT NOT NULL,
            role TEXT NOT NULL,
            recruiter_name TEXT NOT NULL DEFAULT '',
            action_type TEXT NOT NULL,
            channel TEXT NOT NULL,
            confidence DOUBLE PRECISION,
            notes TEXT NOT NULL DEFAULT '',
            embedding vector(%d),
            action_time TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `, dimensions))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_job_actions_company ON job_actions(company_name);
        CREATE INDEX IF NOT EXISTS idx_job_actions_embedding ON job_actions USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}
	return nil
}
