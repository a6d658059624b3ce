// Package chunker decides when a continuous capture session has run long
// enough to be closed as a chunk.
package chunker

import (
	"sync"
	"time"
)

// DefaultLimit is the default chunk time budget.
const DefaultLimit = 300 * time.Second

// Clock supplies the current time.
type Clock func() time.Time

// Chunker tracks elapsed time since the last Reset.
type Chunker struct {
	mu    sync.Mutex
	limit time.Duration
	now   Clock
	start time.Time
}

// New creates a chunker whose clock starts now.
func New(limit time.Duration, now Clock) *Chunker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Chunker{limit: limit, now: now, start: now()}
}

// ShouldCloseChunk reports whether the elapsed time exceeds the limit.
func (c *Chunker) ShouldCloseChunk() bool {
	return c.Elapsed() > c.limit
}

// Elapsed returns the time since the last Reset.
func (c *Chunker) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.start)
}

// Reset rebases the clock to now.
func (c *Chunker) Reset() {
	c.mu.Lock()
	c.start = c.now()
	c.mu.Unlock()
}

// Limit returns the configured budget.
func (c *Chunker) Limit() time.Duration {
	return c.limit
}
