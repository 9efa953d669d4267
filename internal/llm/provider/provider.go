// Package provider abstracts the reply-generation API. A provider
// receives the conversation context plus the available function
// declarations and returns either plain text or a function-call
// request. Implementations register themselves through RegisterFactory.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Failure modes a provider may report. Callers match with errors.Is.
var (
	// ErrRateLimited means the upstream API rejected the request for
	// quota reasons.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrTimeout means the request did not complete in time.
	ErrTimeout = errors.New("provider timeout")
	// ErrInvalidRequest means the upstream API rejected the request as
	// malformed.
	ErrInvalidRequest = errors.New("provider invalid request")
)

// Provider defines the reply-generation interface.
type Provider interface {
	// CreateReply generates the next turn for the given context.
	CreateReply(ctx context.Context, req Request) (*Reply, error)

	// Name returns the provider name (e.g., "openai").
	Name() string
}

// Message is one element of the model-input context.
type Message struct {
	// Role is "system", "user", "assistant", or "function".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// FunctionCall is set on assistant messages that requested a
	// function call.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	// CallID links a function-result message to the call that
	// requested it.
	CallID string `json:"call_id,omitempty"`
	// Name is the function name on function-result messages.
	Name string `json:"name,omitempty"`
}

// FunctionDecl declares a callable function to the model.
type FunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// FunctionCall is a model-issued request to invoke a function.
type FunctionCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Request is the input to CreateReply.
type Request struct {
	Messages    []Message      `json:"messages"`
	Functions   []FunctionDecl `json:"functions,omitempty"`
	Model       string         `json:"model,omitempty"`
	Temperature float32        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

// Reply is the provider output: plain content, or a function-call
// request when FunctionCall is set.
type Reply struct {
	Content      string        `json:"content"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// Config carries provider construction settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}

// Factory constructs a provider from config.
type Factory func(cfg Config) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a provider factory by name. Called from
// provider init functions.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New constructs a provider by registered name.
func New(name string, cfg Config) (Provider, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return f(cfg)
}
