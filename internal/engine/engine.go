// Package engine runs the capture/analyze state machine.
//
// Two goroutines touch an Engine: the command goroutine, which calls Start,
// Pause, Resume, Analyze, NewSession and Shutdown, and the capture goroutine
// spawned by the engine itself. The engine lock guards the state and the
// capture loop handle and is never held across capture, inference or sink
// I/O. The frame buffer carries its own lock, always taken after the engine
// lock when both are held.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bdougie/jobtrace/internal/capture"
	"github.com/bdougie/jobtrace/internal/chunker"
	"github.com/bdougie/jobtrace/internal/models"
)

const (
	DefaultInterval        = 3 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Pipeline turns one snapshot of frames into stored actions.
type Pipeline interface {
	Process(ctx context.Context, session string, frames []models.Frame) (int, error)
}

// Options configures an Engine. Buffer, Sampler and Pipeline are required.
type Options struct {
	Buffer          *capture.FrameBuffer
	Sampler         capture.Sampler
	Pipeline        Pipeline
	Chunker         *chunker.Chunker
	Interval        time.Duration
	ShutdownTimeout time.Duration
	Tokens          TokenSource
	Logger          *slog.Logger
}

// Outcome describes one Analyze call. Accepted is false when the engine was
// not capturing; nothing else happened in that case.
type Outcome struct {
	Accepted bool
	Session  string
	Count    int
	Err      error
}

// Status is a point-in-time view of the engine for display.
type Status struct {
	State        models.EngineState  `json:"state"`
	Buffered     int                 `json:"buffered"`
	Capacity     int                 `json:"capacity"`
	ChunkElapsed time.Duration       `json:"chunk_elapsed"`
	LoopAlive    bool                `json:"loop_alive"`
	Buffer       capture.BufferStats `json:"buffer"`
}

type Engine struct {
	mu        sync.Mutex
	state     models.EngineState
	analyzing bool
	cancel    context.CancelFunc
	done      chan struct{}

	buffer          *capture.FrameBuffer
	sampler         capture.Sampler
	pipeline        Pipeline
	chunker         *chunker.Chunker
	interval        time.Duration
	shutdownTimeout time.Duration
	tokens          TokenSource
	logger          *slog.Logger

	observers observers
}

func New(opts Options) (*Engine, error) {
	if opts.Buffer == nil {
		return nil, errors.New("engine: frame buffer is required")
	}
	if opts.Sampler == nil {
		return nil, errors.New("engine: sampler is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("engine: pipeline is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Chunker == nil {
		opts.Chunker = chunker.New(chunker.DefaultLimit, nil)
	}
	if opts.Tokens == nil {
		opts.Tokens = NewSessionToken
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		state:           models.StateWaiting,
		buffer:          opts.Buffer,
		sampler:         opts.Sampler,
		pipeline:        opts.Pipeline,
		chunker:         opts.Chunker,
		interval:        opts.Interval,
		shutdownTimeout: opts.ShutdownTimeout,
		tokens:          opts.Tokens,
		logger:          opts.Logger.With("component", "engine"),
	}, nil
}

// State returns the current state.
func (e *Engine) State() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{State: e.state, LoopAlive: e.loopAliveLocked()}
	e.mu.Unlock()
	st.Buffered = e.buffer.Len()
	st.Capacity = e.buffer.Cap()
	st.Buffer = e.buffer.Stats()
	st.ChunkElapsed = e.chunker.Elapsed()
	return st
}

// Start begins capturing from Waiting. It is a no-op while capturing and is
// ignored while an analysis is running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	from := e.state
	switch from {
	case models.StateCapturing:
		e.mu.Unlock()
		e.logger.Info("already capturing")
		return false
	case models.StateAnalyzing:
		e.mu.Unlock()
		e.logger.Info("start ignored while analyzing")
		return false
	}
	e.state = models.StateCapturing
	e.chunker.Reset()
	e.spawnLoopLocked()
	e.mu.Unlock()

	e.logger.Info("capture started")
	e.notifyState(from, models.StateCapturing)
	return true
}

// Pause stops sampling without touching the buffer.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	if e.state != models.StateCapturing {
		state := e.state
		e.mu.Unlock()
		e.logger.Info("pause ignored", "state", state)
		return false
	}
	e.state = models.StateWaiting
	e.mu.Unlock()

	e.logger.Info("capture paused")
	e.notifyState(models.StateCapturing, models.StateWaiting)
	return true
}

// Resume continues sampling into the existing buffer.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	if e.state != models.StateWaiting {
		state := e.state
		e.mu.Unlock()
		e.logger.Info("resume ignored", "state", state)
		return false
	}
	e.state = models.StateCapturing
	e.spawnLoopLocked()
	e.mu.Unlock()

	e.logger.Info("capture resumed")
	e.notifyState(models.StateWaiting, models.StateCapturing)
	return true
}

// NewSession discards all buffered frames and starts capturing from any
// state. During an analysis the frames being analyzed are left to it, and
// no further Analyze is accepted until it returns.
func (e *Engine) NewSession() {
	e.buffer.Clear()
	e.chunker.Reset()

	e.mu.Lock()
	from := e.state
	e.state = models.StateCapturing
	e.spawnLoopLocked()
	e.mu.Unlock()

	e.logger.Info("new session started")
	if from != models.StateCapturing {
		e.notifyState(from, models.StateCapturing)
	}
}

// Analyze runs the buffered frames through the pipeline on the calling
// goroutine. It is accepted only while capturing and no other analysis is
// running. The analyzed frames leave the buffer when the analysis starts and
// are released when it ends, whatever the pipeline returns. The engine then
// returns to Waiting, unless NewSession intervened, and exactly one of the
// completion or error observers fires.
func (e *Engine) Analyze(ctx context.Context) Outcome {
	e.mu.Lock()
	if e.state != models.StateCapturing || e.analyzing {
		state := e.state
		e.mu.Unlock()
		e.logger.Info("analyze ignored", "state", state)
		return Outcome{}
	}
	e.state = models.StateAnalyzing
	e.analyzing = true
	frames := e.buffer.Drain()
	e.mu.Unlock()
	e.notifyState(models.StateCapturing, models.StateAnalyzing)

	session := e.tokens()
	logger := e.logger.With("session", session)
	logger.Info("analysis started", "frames", len(frames))

	start := time.Now()
	count, err := e.pipeline.Process(ctx, session, frames)

	for _, f := range frames {
		e.buffer.Release(f)
	}

	e.mu.Lock()
	e.analyzing = false
	finished := e.state == models.StateAnalyzing
	if finished {
		e.state = models.StateWaiting
		e.chunker.Reset()
	}
	e.mu.Unlock()
	if finished {
		e.notifyState(models.StateAnalyzing, models.StateWaiting)
	}

	out := Outcome{Accepted: true, Session: session, Count: count, Err: err}
	if err != nil {
		logger.Error("analysis failed", "error", err, "duration", time.Since(start))
		e.notifyError(err.Error())
		return out
	}
	logger.Info("analysis complete", "actions", count, "duration", time.Since(start))
	e.notifyComplete(count)
	return out
}

// Shutdown stops the capture loop, waiting up to the shutdown timeout for it
// to exit, and leaves the engine in Waiting. Safe to call at any time and
// more than once.
func (e *Engine) Shutdown() {
	// done is kept after a timeout so a later Start waits for the old loop
	// to let go of the sampler.
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	from := e.state
	e.state = models.StateWaiting
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(e.shutdownTimeout):
			e.logger.Warn("capture loop did not stop in time", "timeout", e.shutdownTimeout)
		}
	}
	e.logger.Info("engine shut down")
	if from != models.StateWaiting {
		e.notifyState(from, models.StateWaiting)
	}
}

// Buffer exposes the frame buffer for read-only inspection.
func (e *Engine) Buffer() *capture.FrameBuffer { return e.buffer }
