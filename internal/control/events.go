package control

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bdougie/jobtrace/internal/models"
)

const (
	EventState            = "state"
	EventAnalysisComplete = "analysis_complete"
	EventAnalysisError    = "analysis_error"
	EventChunkClosed      = "chunk_closed"
)

// Event is pushed to every /events subscriber.
type Event struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Count   int       `json:"count,omitempty"`
	Message string    `json:"message,omitempty"`
	Elapsed float64   `json:"elapsed_seconds,omitempty"`
	Frames  int       `json:"frames,omitempty"`
}

// Hub fans events out to subscribers. A slow subscriber loses events rather
// than blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Observable is the observer registration surface of the engine.
type Observable interface {
	OnAnalysisComplete(fn func(count int))
	OnAnalysisError(fn func(message string))
	OnChunkClosed(fn func(elapsed time.Duration, frames int))
	OnStateChange(fn func(from, to models.EngineState))
}

// Observe registers engine observers that publish to hub. When autoAnalyze
// is set, a closed chunk queues an analyze command on d; the analysis then
// runs on the command goroutine like any other command.
func Observe(eng Observable, hub *Hub, d *Dispatcher, autoAnalyze bool, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	eng.OnStateChange(func(from, to models.EngineState) {
		hub.Publish(Event{Type: EventState, From: from.String(), To: to.String()})
	})
	eng.OnAnalysisComplete(func(count int) {
		logger.Info("analysis complete", "actions", count)
		hub.Publish(Event{Type: EventAnalysisComplete, Count: count})
	})
	eng.OnAnalysisError(func(message string) {
		logger.Error("analysis error", "message", message)
		hub.Publish(Event{Type: EventAnalysisError, Message: message})
	})
	eng.OnChunkClosed(func(elapsed time.Duration, frames int) {
		hub.Publish(Event{Type: EventChunkClosed, Elapsed: elapsed.Seconds(), Frames: frames})
		if autoAnalyze && d != nil {
			d.Enqueue(CmdAnalyze)
		}
	})
}
