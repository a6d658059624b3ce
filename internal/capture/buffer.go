package capture

import (
	"log/slog"
	"sync"

	"github.com/bdougie/jobtrace/internal/models"
)

// DefaultBufferCapacity holds roughly six minutes of frames at a 3s interval.
const DefaultBufferCapacity = 120

// BufferStats reports lifetime counters of a FrameBuffer
type BufferStats struct {
	Len     int    `json:"len"`
	Cap     int    `json:"cap"`
	Added   uint64 `json:"added"`
	Evicted uint64 `json:"evicted"`
	Cleared uint64 `json:"cleared"`
}

// FrameBuffer is a bounded FIFO of frames.
//
// Frames are stored in a ring; when the ring is full the oldest frame is
// evicted and released before the new one is written. All methods are safe
// for concurrent use. The buffer's lock is independent of any caller lock,
// so the capture loop can insert while the analyzer snapshots or clears.
type FrameBuffer struct {
	mu     sync.Mutex
	frames []models.Frame
	head   int
	size   int
	stats  BufferStats
	logger *slog.Logger
}

// NewFrameBuffer creates a buffer holding at most capacity frames.
func NewFrameBuffer(capacity int, logger *slog.Logger) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameBuffer{
		frames: make([]models.Frame, capacity),
		logger: logger.With("component", "buffer"),
	}
}

// Add appends a frame, evicting and releasing the oldest one when the buffer
// is full.
func (b *FrameBuffer) Add(frame models.Frame) {
	if evicted, ok := b.Push(frame); ok {
		b.release(evicted)
	}
	b.logger.Debug("frame added", "seq", frame.Seq)
}

// Push appends a frame like Add but hands the evicted frame, if any, back to
// the caller unreleased. Push neither logs nor touches disk.
func (b *FrameBuffer) Push(frame models.Frame) (evicted models.Frame, ok bool) {
	b.mu.Lock()
	if b.size == len(b.frames) {
		evicted, ok = b.frames[b.head], true
		b.frames[b.head] = models.Frame{}
		b.head = (b.head + 1) % len(b.frames)
		b.size--
		b.stats.Evicted++
	}
	b.frames[(b.head+b.size)%len(b.frames)] = frame
	b.size++
	b.stats.Added++
	b.mu.Unlock()
	return evicted, ok
}

// Release frees a frame handed back by Push.
func (b *FrameBuffer) Release(frame models.Frame) {
	b.release(frame)
}

// Snapshot returns the current contents, oldest first.
func (b *FrameBuffer) Snapshot() []models.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Frame, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.frames[(b.head+i)%len(b.frames)]
	}
	return out
}

// Drain empties the buffer and returns its contents, oldest first, without
// releasing them. The caller owns the returned frames.
func (b *FrameBuffer) Drain() []models.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.takeLocked()
}

// Clear releases every held frame and empties the buffer.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	held := b.takeLocked()
	b.mu.Unlock()

	for _, f := range held {
		b.release(f)
	}
	if len(held) > 0 {
		b.logger.Info("frame buffer cleared", "released", len(held))
	}
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the maximum number of frames the buffer holds.
func (b *FrameBuffer) Cap() int {
	return len(b.frames)
}

// Stats returns a copy of the buffer counters.
func (b *FrameBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Len = b.size
	s.Cap = len(b.frames)
	return s
}

func (b *FrameBuffer) release(f models.Frame) {
	if err := f.Release(); err != nil {
		b.logger.Warn("failed to release frame", "seq", f.Seq, "error", err)
	}
}

func (b *FrameBuffer) takeLocked() []models.Frame {
	held := make([]models.Frame, 0, b.size)
	for i := 0; i < b.size; i++ {
		idx := (b.head + i) % len(b.frames)
		held = append(held, b.frames[idx])
		b.frames[idx] = models.Frame{}
	}
	b.head = 0
	b.size = 0
	if len(held) > 0 {
		b.stats.Cleared++
	}
	return held
}
