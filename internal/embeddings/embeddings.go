package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrQueueFull is returned when the work queue cannot take another request.
var ErrQueueFull = errors.New("embedding queue is full, try again later")

// ErrClosed is returned by requests made after Close.
var ErrClosed = errors.New("embedding service closed")

// Provider generates a single embedding.
type Provider interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Result represents the result of embedding generation
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// Work represents a unit of embedding work
type Work struct {
	Ctx     context.Context
	Content string
	Result  chan<- Result
}

// Service runs a pool of workers in front of a Provider and caches the
// embeddings it has already produced.
type Service struct {
	provider   Provider
	numWorkers int
	workQueue  chan Work
	cache      *lru.Cache[string, []float32]
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewService creates a new embedding service with the specified number of
// workers and cache entries.
func NewService(provider Provider, numWorkers, cacheSize int) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if numWorkers <= 0 {
		numWorkers = 2
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	s := &Service{
		provider:   provider,
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100), // Buffer size for embedding requests
		cache:      cache,
	}
	s.startWorkers()
	return s, nil
}

// startWorkers starts a pool of goroutines for generating embeddings
func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				if cached, ok := s.cache.Get(work.Content); ok {
					work.Result <- Result{Content: work.Content, Embedding: cached}
					continue
				}

				embedding, err := s.provider.Embed(work.Ctx, work.Content)
				if err == nil {
					s.cache.Add(work.Content, embedding)
				}
				work.Result <- Result{
					Content:   work.Content,
					Embedding: embedding,
					Error:     err,
				}
			}
		}()
	}
}

// GetEmbedding requests an embedding asynchronously. The returned channel
// receives exactly one Result.
func (s *Service) GetEmbedding(ctx context.Context, content string) <-chan Result {
	resultChan := make(chan Result, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		resultChan <- Result{Content: content, Error: ErrClosed}
		return resultChan
	}
	if cached, ok := s.cache.Get(content); ok {
		resultChan <- Result{Content: content, Embedding: cached}
		return resultChan
	}

	select {
	case s.workQueue <- Work{Ctx: ctx, Content: content, Result: resultChan}:
	default:
		resultChan <- Result{Content: content, Error: ErrQueueFull}
	}
	return resultChan
}

// Embed blocks until the embedding for content is ready.
func (s *Service) Embed(ctx context.Context, content string) ([]float32, error) {
	select {
	case r := <-s.GetEmbedding(ctx, content):
		return r.Embedding, r.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cached reports how many embeddings are held in the cache.
func (s *Service) Cached() int {
	return s.cache.Len()
}

// Close shuts down the embedding service and waits for all workers to finish
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.workQueue)
	s.mu.Unlock()
	s.wg.Wait()
}
