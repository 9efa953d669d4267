package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker trips after consecutive upstream failures and
// recovers after a reset timeout.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu              sync.Mutex
	failures        int
	lastFailureTime time.Time
	state           CircuitState
}

// NewCircuitBreaker creates a circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

// allow reports whether a call may proceed, transitioning to half-open
// once the reset timeout has elapsed.
func (cb *CircuitBreaker) allow(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && now.Sub(cb.lastFailureTime) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.failures = 0
	}
	return cb.state != CircuitOpen
}

func (cb *CircuitBreaker) record(err error, now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailureTime = now
		if cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
		}
		return
	}
	cb.failures = 0
	cb.state = CircuitClosed
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ResilientProvider wraps a provider with an outbound rate limiter and
// a circuit breaker. The limiter blocks until the upstream budget
// allows another call or the context is done; an open circuit fails
// fast instead of hammering a broken upstream.
type ResilientProvider struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *CircuitBreaker
	now     func() time.Time
}

// ResilienceConfig tunes the wrapper.
type ResilienceConfig struct {
	// RequestsPerSecond is the outbound call budget. Zero disables the
	// limiter.
	RequestsPerSecond float64
	// Burst is the limiter burst size.
	Burst int
	// MaxFailures is the consecutive failure count that opens the
	// circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open.
	ResetTimeout time.Duration
}

// DefaultResilienceConfig returns the default wrapper settings.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		MaxFailures:       5,
		ResetTimeout:      30 * time.Second,
	}
}

// NewResilientProvider wraps inner.
func NewResilientProvider(inner Provider, cfg ResilienceConfig) *ResilientProvider {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = DefaultResilienceConfig().MaxFailures
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = DefaultResilienceConfig().ResetTimeout
	}
	return &ResilientProvider{
		inner:   inner,
		limiter: limiter,
		breaker: NewCircuitBreaker(maxFailures, resetTimeout),
		now:     time.Now,
	}
}

// Name returns the wrapped provider name.
func (p *ResilientProvider) Name() string {
	return p.inner.Name()
}

// CreateReply forwards to the wrapped provider, applying the limiter
// and breaker.
func (p *ResilientProvider) CreateReply(ctx context.Context, req Request) (*Reply, error) {
	if !p.breaker.allow(p.now()) {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrRateLimited)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}

	reply, err := p.inner.CreateReply(ctx, req)
	p.breaker.record(err, p.now())
	return reply, err
}
