package engine

import (
	"sync"
	"time"

	"github.com/bdougie/jobtrace/internal/models"
)

// observers holds at most one callback per kind. Callbacks run on the
// goroutine that caused the event, outside the engine lock.
type observers struct {
	mu       sync.RWMutex
	complete func(count int)
	failed   func(message string)
	chunk    func(elapsed time.Duration, frames int)
	state    func(from, to models.EngineState)
}

// OnAnalysisComplete registers fn, replacing any previous one. nil removes it.
func (e *Engine) OnAnalysisComplete(fn func(count int)) {
	e.observers.mu.Lock()
	e.observers.complete = fn
	e.observers.mu.Unlock()
}

func (e *Engine) OnAnalysisError(fn func(message string)) {
	e.observers.mu.Lock()
	e.observers.failed = fn
	e.observers.mu.Unlock()
}

// OnChunkClosed is called from the capture goroutine.
func (e *Engine) OnChunkClosed(fn func(elapsed time.Duration, frames int)) {
	e.observers.mu.Lock()
	e.observers.chunk = fn
	e.observers.mu.Unlock()
}

func (e *Engine) OnStateChange(fn func(from, to models.EngineState)) {
	e.observers.mu.Lock()
	e.observers.state = fn
	e.observers.mu.Unlock()
}

func (e *Engine) notifyComplete(count int) {
	e.observers.mu.RLock()
	fn := e.observers.complete
	e.observers.mu.RUnlock()
	if fn != nil {
		fn(count)
	}
}

func (e *Engine) notifyError(message string) {
	e.observers.mu.RLock()
	fn := e.observers.failed
	e.observers.mu.RUnlock()
	if fn != nil {
		fn(message)
	}
}

func (e *Engine) notifyChunk(elapsed time.Duration, frames int) {
	e.observers.mu.RLock()
	fn := e.observers.chunk
	e.observers.mu.RUnlock()
	if fn != nil {
		fn(elapsed, frames)
	}
}

func (e *Engine) notifyState(from, to models.EngineState) {
	e.observers.mu.RLock()
	fn := e.observers.state
	e.observers.mu.RUnlock()
	if fn != nil {
		fn(from, to)
	}
}
