package funcs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ErrorKind classifies resolver failures.
type ErrorKind string

const (
	// ErrNotFound means no function with that name is registered.
	ErrNotFound ErrorKind = "not_found"
	// ErrInvalidArguments means the arguments failed schema validation.
	ErrInvalidArguments ErrorKind = "invalid_arguments"
	// ErrHandlerFailed means the handler returned an error.
	ErrHandlerFailed ErrorKind = "handler_failed"
)

// FuncError is the typed failure of a function call.
type FuncError struct {
	Kind ErrorKind
	Name string
	Err  error
}

func (e *FuncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("function %s: %s: %v", e.Name, e.Kind, e.Err)
	}
	return fmt.Sprintf("function %s: %s", e.Name, e.Kind)
}

func (e *FuncError) Unwrap() error {
	return e.Err
}

// Resolver executes model-issued function calls against a registry.
type Resolver struct {
	registry *Registry
	logger   *slog.Logger
}

// NewResolver creates a resolver over a registry.
func NewResolver(registry *Registry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Resolve looks up name, validates rawArgs against the declared
// schema, and invokes the handler synchronously. Expected failures
// come back as *FuncError; the resolver never panics for them.
func (r *Resolver) Resolve(ctx context.Context, name string, rawArgs json.RawMessage) (string, error) {
	fn, ok := r.registry.Get(name)
	if !ok {
		return "", &FuncError{Kind: ErrNotFound, Name: name}
	}

	args := Args{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", &FuncError{Kind: ErrInvalidArguments, Name: name, Err: err}
		}
	}
	if err := fn.Schema.ValidateArgs(args); err != nil {
		return "", &FuncError{Kind: ErrInvalidArguments, Name: name, Err: err}
	}

	start := time.Now()
	result, err := fn.Handler(ctx, args)
	if err != nil {
		r.logger.Error("function_failed", "name", name, "error", err.Error())
		return "", &FuncError{Kind: ErrHandlerFailed, Name: name, Err: err}
	}

	r.logger.Debug("function_resolved",
		"name", name,
		"duration", time.Since(start).String(),
		"result_length", len(result),
	)
	return result, nil
}
