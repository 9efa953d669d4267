// Package session holds per-conversation state for the relay: ordered
// turn history, a fixed-window request counter, and last-activity
// bookkeeping with idle eviction. State is process-local and is not
// persisted across restarts.
package session

import (
	"time"
)

// Role tags who produced a turn.
type Role string

const (
	// RoleUser is an inbound message from the conversation peer.
	RoleUser Role = "user"
	// RoleAssistant is a generated reply.
	RoleAssistant Role = "assistant"
	// RoleFunction is the result of a side-function invocation fed back
	// into the model context.
	RoleFunction Role = "function"
)

// Turn is one message unit in a conversation.
type Turn struct {
	// ID is the unique turn identifier.
	ID string `json:"id"`
	// Role indicates who produced the turn.
	Role Role `json:"role"`
	// Content is the turn payload.
	Content string `json:"content"`
	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Config holds the store limits.
type Config struct {
	// HistoryLimit caps the number of retained turns per session.
	// Oldest turns are dropped first.
	HistoryLimit int

	// MaxRequests is the number of inbound requests allowed per key
	// within one rate-limit window.
	MaxRequests int

	// Window is the fixed rate-limit window duration.
	Window time.Duration

	// IdleTTL is the inactivity duration after which a session is
	// evicted.
	IdleTTL time.Duration
}

// DefaultConfig returns the default store limits.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 20,
		MaxRequests:  30,
		Window:       time.Hour,
		IdleTTL:      30 * time.Minute,
	}
}
