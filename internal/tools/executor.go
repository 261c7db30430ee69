// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// EXECUTION RECORD
// =============================================================================

// ExecutionRecord tracks the result of a tool execution for audit purposes.
type ExecutionRecord struct {
	Call      ToolCall
	Result    ToolResult
	Timestamp time.Time
}

// =============================================================================
// REGISTRY EXECUTOR
// =============================================================================

// Executor defaults.
const (
	// DefaultToolTimeout is applied when the caller's context has no deadline
	DefaultToolTimeout = 30 * time.Second

	// DefaultMaxOutputSize caps tool output in bytes
	DefaultMaxOutputSize = 30000

	maxHistorySize = 1000
)

// RegistryExecutor implements ToolExecutor on top of a Registry.
type RegistryExecutor struct {
	registry *Registry
	limiter  *rate.Limiter

	maxOutputSize int
	timeout       time.Duration

	mu      sync.Mutex
	history []ExecutionRecord
}

// ExecutorOption configures a RegistryExecutor.
type ExecutorOption func(*RegistryExecutor)

// WithRateLimit limits tool invocations to perSecond with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) ExecutorOption {
	return func(e *RegistryExecutor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithMaxOutputSize truncates tool output to n bytes.
func WithMaxOutputSize(n int) ExecutorOption {
	return func(e *RegistryExecutor) {
		if n > 0 {
			e.maxOutputSize = n
		}
	}
}

// WithTimeout sets the per-call timeout used when ctx has no deadline.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *RegistryExecutor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewRegistryExecutor creates an executor for the tools in registry.
func NewRegistryExecutor(registry *Registry, opts ...ExecutorOption) *RegistryExecutor {
	e := &RegistryExecutor{
		registry:      registry,
		maxOutputSize: DefaultMaxOutputSize,
		timeout:       DefaultToolTimeout,
		history:       make([]ExecutionRecord, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the tool registry.
func (e *RegistryExecutor) Registry() *Registry {
	return e.registry
}

// RequiresApproval delegates to the registry.
func (e *RegistryExecutor) RequiresApproval(name string) bool {
	return e.registry.RequiresApproval(name)
}

// Execute runs call. An unknown tool or a cancelled rate-limit wait is an
// error; a handler failure is reported as an unsuccessful result.
func (e *RegistryExecutor) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	tool := e.registry.Get(call.Name)
	if tool == nil || tool.Handler == nil {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return ToolResult{}, fmt.Errorf("rate limit wait for %s: %w", call.Name, err)
		}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	output, err := tool.Handler.Run(ctx, args)
	result := ToolResult{
		Success:    err == nil,
		Output:     output,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	if len(result.Output) > e.maxOutputSize {
		result.Output = result.Output[:e.maxOutputSize]
	}

	e.addToHistory(ExecutionRecord{Call: call, Result: result, Timestamp: start})
	return result, nil
}

// History returns a copy of the execution history.
func (e *RegistryExecutor) History() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]ExecutionRecord, len(e.history))
	copy(result, e.history)
	return result
}

// ClearHistory clears the execution history.
func (e *RegistryExecutor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = make([]ExecutionRecord, 0)
}

func (e *RegistryExecutor) addToHistory(record ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Limit history size to prevent unbounded growth
	if len(e.history) >= maxHistorySize {
		e.history = e.history[len(e.history)-maxHistorySize+1:]
	}
	e.history = append(e.history, record)
}
