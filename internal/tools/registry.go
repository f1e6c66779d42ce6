// Package tools implements tool dispatch for the Steward task engine.
//
// A registry maps tool names to side-effecting handlers supplied by
// integration layers (email send, CRM lookup, knowledge search, calendar
// scheduling). The dispatch layer's job is routing plus uniform error
// normalization; the catalog itself is pluggable configuration.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
)

// Context carries per-invocation identity to handlers. Handlers must scope
// all side effects to the owning user.
type Context struct {
	// UserID is the task's owning user.
	UserID string

	// TaskID is the task the invocation belongs to.
	TaskID string
}

// Handler is one registered tool implementation. Handlers should be
// idempotent where possible: the queue is at-least-once, so a tool may run
// again after a crash between the tool call and the status write.
type Handler func(ctx context.Context, args map[string]any, tc Context) (domain.Document, error)

// Registry maps tool names to handlers with thread-safe registration and
// lookup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	specs    map[string]llm.ToolSpec
	timeout  time.Duration
	logger   zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithToolTimeout sets the bounded per-call timeout for handlers.
func WithToolTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		specs:    make(map[string]llm.ToolSpec),
		timeout:  constants.DefaultToolTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. If a handler already exists for the name, it is
// replaced.
func (r *Registry) Register(spec llm.ToolSpec, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[spec.Name] = handler
	r.specs[spec.Name] = spec
}

// UpdateSpec replaces the spec offered to the model for an already
// registered tool, keeping its handler. Returns false when no handler
// exists for the name.
func (r *Registry) UpdateSpec(spec llm.ToolSpec) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[spec.Name]; !ok {
		return false
	}
	r.specs[spec.Name] = spec
	return true
}

// Has checks if a handler is registered for the name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Specs returns the catalog offered to the model, sorted by name for a
// stable prompt.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]llm.ToolSpec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute dispatches one tool call. Unknown names return ErrUnknownTool.
// Handler errors are normalized to wrapped ErrToolExecutionFailed carrying
// the tool name and reason. Each call runs under the registry's bounded
// timeout.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string, tc Context) (domain.Document, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", stewarderrors.ErrUnknownTool, name)
	}

	args := make(map[string]any)
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid arguments: %s",
				stewarderrors.ErrToolExecutionFailed, name, err.Error())
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := handler(callCtx, args, tc)
	duration := time.Since(start)

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			err = stewarderrors.ErrToolTimeout
		}
		r.logger.Error().
			Err(err).
			Str("tool", name).
			Str("task_id", tc.TaskID).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("tool execution failed")
		return nil, fmt.Errorf("%w: %s: %s", stewarderrors.ErrToolExecutionFailed, name, err.Error())
	}

	r.logger.Info().
		Str("tool", name).
		Str("task_id", tc.TaskID).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("tool executed")

	return result, nil
}

// Call names one invocation in a batch.
type Call struct {
	Name     string
	ArgsJSON string
}

// BatchResult holds one batch entry's outcome. Exactly one of Result and Err
// is set.
type BatchResult struct {
	Name   string
	Result domain.Document
	Err    error
}

// ExecuteBatch fans calls out concurrently, collecting each result
// independently so one failing call does not abort the batch. Results are
// returned in call order.
func (r *Registry) ExecuteBatch(ctx context.Context, calls []Call, tc Context) []BatchResult {
	results := make([]BatchResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			result, err := r.Execute(gctx, call.Name, call.ArgsJSON, tc)
			results[i] = BatchResult{Name: call.Name, Result: result, Err: err}
			// Collect, never propagate: a batch member failing must not
			// cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	return results
}
