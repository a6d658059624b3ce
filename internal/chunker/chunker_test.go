package chunker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestChunker_ClosesOnlyAfterLimit(t *testing.T) {
	clock := newFakeClock()
	c := New(10*time.Second, clock.Now)

	assert.False(t, c.ShouldCloseChunk())

	clock.Advance(10 * time.Second)
	assert.False(t, c.ShouldCloseChunk(), "exactly at the limit is not past it")

	clock.Advance(time.Millisecond)
	assert.True(t, c.ShouldCloseChunk())
}

func TestChunker_ResetRebases(t *testing.T) {
	clock := newFakeClock()
	c := New(5*time.Second, clock.Now)

	clock.Advance(6 * time.Second)
	assert.True(t, c.ShouldCloseChunk())

	c.Reset()
	assert.False(t, c.ShouldCloseChunk())
	assert.Equal(t, time.Duration(0), c.Elapsed())

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Elapsed())
}

func TestChunker_Defaults(t *testing.T) {
	c := New(0, nil)
	assert.Equal(t, DefaultLimit, c.Limit())
	assert.False(t, c.ShouldCloseChunk())
}
