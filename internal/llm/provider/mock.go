package provider

import (
	"context"
	"sync"
)

// MockProvider replays scripted replies in order. Tests use it to
// drive the dispatcher without a network dependency.
type MockProvider struct {
	mu      sync.Mutex
	replies []*Reply
	errs    []error
	calls   int

	// Requests records every request received, in order.
	Requests []Request
}

// NewMockProvider creates an empty scripted provider. Use Script and
// ScriptError to enqueue behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Script enqueues a successful reply.
func (m *MockProvider) Script(reply *Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply)
	m.errs = append(m.errs, nil)
	return m
}

// ScriptError enqueues a failure.
func (m *MockProvider) ScriptError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, nil)
	m.errs = append(m.errs, err)
	return m
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return "mock"
}

// Calls returns how many requests the provider has received.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CreateReply returns the next scripted reply. When the script is
// exhausted the last entry repeats, which keeps loop-bound tests
// simple.
func (m *MockProvider) CreateReply(_ context.Context, req Request) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.Requests = append(m.Requests, req)

	if len(m.replies) == 0 {
		return &Reply{Content: "ok"}, nil
	}
	idx := m.calls - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	if m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	return m.replies[idx], nil
}
