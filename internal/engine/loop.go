package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/bdougie/jobtrace/internal/models"
)

// spawnLoopLocked starts the capture goroutine unless one is alive. A loop
// that Shutdown gave up on may still be inside the sampler; the new loop
// waits for it to exit first. Callers hold e.mu.
func (e *Engine) spawnLoopLocked() {
	if e.loopAliveLocked() {
		return
	}
	prev := e.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go e.captureLoop(ctx, prev, done)
}

// loopAliveLocked reports whether a loop is running and not cancelled.
func (e *Engine) loopAliveLocked() bool {
	if e.cancel == nil || e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// captureLoop owns the sampler for its whole life. The goroutine stays on one
// OS thread so samplers with thread-bound handles see a single thread from
// first capture to Close.
func (e *Engine) captureLoop(ctx context.Context, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		if err := e.sampler.Close(); err != nil {
			e.logger.Warn("sampler close failed", "error", err)
		}
	}()

	e.logger.Debug("capture loop started", "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.tick(ctx)
		select {
		case <-ctx.Done():
			e.logger.Debug("capture loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if e.State() != models.StateCapturing {
		return
	}

	frame, err := e.sampler.CaptureFrame(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("frame capture failed", "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		e.buffer.Release(frame)
		return
	}

	// The state may have moved on while the sampler was busy. Checking and
	// inserting under e.mu keeps a late frame out of a buffer that Analyze
	// or NewSession has already cleared. Releases happen outside the lock
	// since a spooled frame's release removes its file.
	e.mu.Lock()
	if e.state != models.StateCapturing {
		e.mu.Unlock()
		e.buffer.Release(frame)
		return
	}
	evicted, ok := e.buffer.Push(frame)
	e.mu.Unlock()
	if ok {
		e.buffer.Release(evicted)
	}

	if e.chunker.ShouldCloseChunk() {
		elapsed := e.chunker.Elapsed()
		e.chunker.Reset()
		frames := e.buffer.Len()
		e.logger.Info("chunk closed", "elapsed", elapsed.Round(time.Second), "frames", frames)
		e.notifyChunk(elapsed, frames)
	}
}
