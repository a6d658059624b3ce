package models

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Frame is a single captured screen image.
//
// A frame is immutable once it leaves the sampler. Data holds the encoded
// image when the frame lives in memory; Path is set instead when the frame
// was spooled to disk.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Width      int
	Height     int
	MIMEType   string
	Data       []byte
	Path       string
}

// Bytes returns the encoded image, reading it from disk for spooled frames.
func (f Frame) Bytes() ([]byte, error) {
	if len(f.Data) > 0 {
		return f.Data, nil
	}
	if f.Path == "" {
		return nil, fmt.Errorf("frame %d has no image data", f.Seq)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %d: %w", f.Seq, err)
	}
	return data, nil
}

// Release frees the frame's backing resource. Only spooled frames own
// anything outside the Go heap.
func (f Frame) Release() error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove frame file '%s': %w", f.Path, err)
	}
	return nil
}

// WorkItem represents a frame queued for per-frame description
type WorkItem struct {
	Frame    Frame
	FrameNum int
	Total    int
}

// FrameDescription is the result of describing a single frame
type FrameDescription struct {
	FrameNum   int       `json:"frame"`
	CapturedAt time.Time `json:"captured_at"`
	Content    string    `json:"content"`
}

// JobAction is a validated job-search action extracted from the screen.
type JobAction struct {
	CompanyName   string    `json:"company_name"`
	Role          string    `json:"role"`
	RecruiterName string    `json:"recruiter_name,omitempty"`
	ActionType    string    `json:"action_type"`
	Channel       string    `json:"channel"`
	Confidence    *float64  `json:"confidence,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Summary renders the action as a single line, used for embeddings and logs.
func (a JobAction) Summary() string {
	s := fmt.Sprintf("%s via %s: %s at %s", a.ActionType, a.Channel, a.Role, a.CompanyName)
	if a.RecruiterName != "" {
		s += " (recruiter " + a.RecruiterName + ")"
	}
	if a.Notes != "" {
		s += ". " + a.Notes
	}
	return s
}

// Candidate is one unvalidated element of the inference output.
type Candidate map[string]any

// ActionSearchResult is a stored action ranked by similarity to a query
type ActionSearchResult struct {
	Action     JobAction
	Similarity float64
}
