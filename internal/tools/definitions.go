// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// =============================================================================
// RISK LEVELS
// =============================================================================

// RiskLevel indicates how dangerous a tool operation is.
type RiskLevel int

const (
	// RiskLow - Read-only operations, no side effects
	RiskLow RiskLevel = iota

	// RiskMedium - May modify files but can be undone
	RiskMedium

	// RiskHigh - Modifies files, harder to undo
	RiskHigh

	// RiskCritical - System commands, potentially destructive
	RiskCritical
)

// String returns the string representation of a risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	case RiskHigh:
		return "High"
	case RiskCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// =============================================================================
// TOOL CALLS AND RESULTS
// =============================================================================

// ToolCall is a single tool invocation requested by the agent.
type ToolCall struct {
	// ID uniquely identifies the invocation
	ID string `json:"id"`

	// Name is the registered tool name
	Name string `json:"name"`

	// Arguments is the JSON-object argument payload
	Arguments map[string]any `json:"arguments"`
}

// ToolResult holds the outcome of a tool execution.
type ToolResult struct {
	// Success indicates if the tool did its job
	Success bool `json:"success"`

	// Output is the tool's output
	Output string `json:"output"`

	// Error is the failure message when Success is false
	Error string `json:"error,omitempty"`

	// DurationMs is how long execution took
	DurationMs int64 `json:"duration_ms"`
}

// =============================================================================
// TOOL EXECUTOR INTERFACE
// =============================================================================

// ToolExecutor runs tool calls on behalf of an agent.
//
// Execute returns a non-nil error only when the call could not be attempted
// at all. A tool that ran and failed reports it through ToolResult.Success.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)

	// RequiresApproval reports whether the named tool should be gated behind
	// a human decision.
	RequiresApproval(name string) bool
}

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Handler implements a single tool.
type Handler interface {
	Run(ctx context.Context, args map[string]any) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, args map[string]any) (string, error) {
	return f(ctx, args)
}

// Tool represents an executable tool.
type Tool struct {
	// Name is the tool identifier used in plans (e.g., "read_file")
	Name string

	// Description explains what the tool does
	Description string

	// RiskLevel indicates how dangerous the tool is
	RiskLevel RiskLevel

	// Handler does the actual work
	Handler Handler
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// ErrUnknownTool is returned when a call names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds all available tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	// Approval overrides (tool name -> requires approval)
	overrides map[string]bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]*Tool),
		overrides: make(map[string]bool),
	}
}

// Register adds a tool to the registry, replacing any tool of the same name.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, tool := range all {
		names[i] = tool.Name
	}
	return names
}

// SetApprovalOverride forces approval on or off for a tool regardless of risk.
func (r *Registry) SetApprovalOverride(name string, required bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = required
}

// RequiresApproval returns true for high and critical risk tools, unless an
// override says otherwise. Unknown tools always require approval.
func (r *Registry) RequiresApproval(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if required, ok := r.overrides[name]; ok {
		return required
	}
	tool, ok := r.tools[name]
	if !ok {
		return true
	}
	return tool.RiskLevel >= RiskHigh
}
