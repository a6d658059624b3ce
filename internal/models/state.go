package models

// EngineState is the authoritative run state of the capture engine.
type EngineState int

const (
	StateWaiting EngineState = iota
	StateCapturing
	StateAnalyzing
	StateError
)

func (s EngineState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateCapturing:
		return "CAPTURING"
	case StateAnalyzing:
		return "ANALYZING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets the state appear by name in JSON payloads.
func (s EngineState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
