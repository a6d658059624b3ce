package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenSource yields a unique session token per analysis.
type TokenSource func() string

// NewSessionToken returns a time-ordered UUIDv7 string.
func NewSessionToken() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialTokens returns prefix-1, prefix-2, ... for deterministic logs and
// tests.
func SequentialTokens(prefix string) TokenSource {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
