// Package control serializes engine commands coming from the HTTP server,
// the console and engine observers onto a single command goroutine.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdougie/jobtrace/internal/engine"
	"github.com/bdougie/jobtrace/internal/models"
)

// ErrStopped is returned when a command is submitted after Run returned.
var ErrStopped = errors.New("dispatcher stopped")

// ErrUnknownCommand is returned by ParseCommand.
var ErrUnknownCommand = errors.New("unknown command")

type Command string

const (
	CmdStart      Command = "start"
	CmdPause      Command = "pause"
	CmdResume     Command = "resume"
	CmdAnalyze    Command = "analyze"
	CmdNewSession Command = "new"
	CmdShutdown   Command = "shutdown"
)

var commandAliases = map[string]Command{
	"s":           CmdStart,
	"start":       CmdStart,
	"p":           CmdPause,
	"pause":       CmdPause,
	"r":           CmdResume,
	"resume":      CmdResume,
	"a":           CmdAnalyze,
	"analyze":     CmdAnalyze,
	"n":           CmdNewSession,
	"new":         CmdNewSession,
	"new-session": CmdNewSession,
	"shutdown":    CmdShutdown,
	"stop":        CmdShutdown,
}

// ParseCommand resolves a command name or its one-letter alias.
func ParseCommand(s string) (Command, error) {
	cmd, ok := commandAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return cmd, nil
}

// Controller is the engine surface driven by the dispatcher.
type Controller interface {
	Start() bool
	Pause() bool
	Resume() bool
	NewSession()
	Analyze(ctx context.Context) engine.Outcome
	Shutdown()
	State() models.EngineState
	Status() engine.Status
}

// Result reports what a command did.
type Result struct {
	Command Command            `json:"command"`
	Applied bool               `json:"applied"`
	State   models.EngineState `json:"state"`
	Session string             `json:"session,omitempty"`
	Count   int                `json:"count,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type request struct {
	cmd   Command
	reply chan Result
}

// Dispatcher is the single command goroutine. Every engine command runs on
// the goroutine that called Run, one at a time, in submission order.
type Dispatcher struct {
	eng            Controller
	queue          chan request
	stopped        chan struct{}
	analyzeTimeout time.Duration
	logger         *slog.Logger
}

func NewDispatcher(eng Controller, analyzeTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if analyzeTimeout <= 0 {
		analyzeTimeout = 2 * time.Minute
	}
	return &Dispatcher{
		eng:            eng,
		queue:          make(chan request, 16),
		stopped:        make(chan struct{}),
		analyzeTimeout: analyzeTimeout,
		logger:         logger.With("component", "dispatcher"),
	}
}

// Run executes commands until ctx is cancelled. Must be called from exactly
// one goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)
	d.logger.Debug("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("dispatcher stopping")
			return ctx.Err()
		case req := <-d.queue:
			res := d.execute(ctx, req.cmd)
			if req.reply != nil {
				req.reply <- res
			}
		}
	}
}

// Submit queues cmd and waits for its result.
func (d *Dispatcher) Submit(ctx context.Context, cmd Command) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case d.queue <- request{cmd: cmd, reply: reply}:
	case <-d.stopped:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-d.stopped:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Enqueue queues cmd without waiting. It returns false when the queue is
// full or the dispatcher has stopped.
func (d *Dispatcher) Enqueue(cmd Command) bool {
	select {
	case <-d.stopped:
		return false
	default:
	}
	select {
	case d.queue <- request{cmd: cmd}:
		return true
	default:
		d.logger.Warn("command queue full, dropping command", "command", cmd)
		return false
	}
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) Result {
	res := Result{Command: cmd}
	switch cmd {
	case CmdStart:
		res.Applied = d.eng.Start()
	case CmdPause:
		res.Applied = d.eng.Pause()
	case CmdResume:
		res.Applied = d.eng.Resume()
	case CmdNewSession:
		d.eng.NewSession()
		res.Applied = true
	case CmdShutdown:
		d.eng.Shutdown()
		res.Applied = true
	case CmdAnalyze:
		actx, cancel := context.WithTimeout(ctx, d.analyzeTimeout)
		out := d.eng.Analyze(actx)
		cancel()
		res.Applied = out.Accepted
		res.Session = out.Session
		res.Count = out.Count
		if out.Err != nil {
			res.Error = out.Err.Error()
		}
	default:
		res.Error = fmt.Sprintf("%v: %q", ErrUnknownCommand, cmd)
	}
	res.State = d.eng.State()
	d.logger.Debug("command executed", "command", cmd, "applied", res.Applied, "state", res.State)
	return res
}
