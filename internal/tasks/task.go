// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks provides hierarchical task bookkeeping for plan execution.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of an agent task.
type TaskStatus int

const (
	// StatusPending indicates the task has not started
	StatusPending TaskStatus = iota

	// StatusRunning indicates the task is executing
	StatusRunning

	// StatusCompleted indicates the task finished successfully
	StatusCompleted

	// StatusFailed indicates the task encountered an error
	StatusFailed

	// StatusSkipped indicates the task was not executed
	StatusSkipped

	// StatusPaused indicates the task was suspended by the user
	StatusPaused

	// StatusWaitingApproval indicates the task is blocked on a human decision
	StatusWaitingApproval

	// StatusCancelled indicates the task was cancelled
	StatusCancelled
)

// String returns the string representation of a task status.
func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusSkipped:
		return "Skipped"
	case StatusPaused:
		return "Paused"
	case StatusWaitingApproval:
		return "WaitingApproval"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions are expected.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// IsResumable reports whether the task can continue after a user action.
func (s TaskStatus) IsResumable() bool {
	return s == StatusPaused || s == StatusWaitingApproval
}

// =============================================================================
// PRIORITY
// =============================================================================

// Priority orders tasks by urgency. Higher values are more urgent.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the string representation of a priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// =============================================================================
// TOOL CALL RECORD
// =============================================================================

// ToolCallRecord is one tool invocation made on behalf of a task.
type ToolCallRecord struct {
	// Name of the invoked tool
	Name string

	// Arguments passed to the tool
	Arguments map[string]any

	// Success reports whether the tool reported success
	Success bool

	// Output is the tool output, if any
	Output string

	// Error is the tool error message, if any
	Error string

	// DurationMs is the wall time reported for the call
	DurationMs int64
}

// =============================================================================
// AGENT TASK
// =============================================================================

// DefaultMaxRetries is the retry ceiling given to new tasks.
const DefaultMaxRetries = 3

// AgentTask is the payload of a task tree node.
type AgentTask struct {
	// ID is a unique identifier for this task
	ID string

	// ParentID is the owning task, nil for roots
	ParentID *string

	Title       string
	Description string

	Status   TaskStatus
	Priority Priority

	// ToolCalls are the invocations recorded while the task ran
	ToolCalls []ToolCallRecord

	Output *string
	Error  *string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Metadata stores additional task-specific data
	Metadata map[string]string

	RetryCount int
	MaxRetries int
}

// NewTask creates a root task.
func NewTask(title, description string) *AgentTask {
	return &AgentTask{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      StatusPending,
		Priority:    PriorityNormal,
		ToolCalls:   make([]ToolCallRecord, 0),
		CreatedAt:   time.Now(),
		Metadata:    make(map[string]string),
		MaxRetries:  DefaultMaxRetries,
	}
}

// NewSubtask creates a task owned by parentID.
func NewSubtask(parentID, title, description string) *AgentTask {
	t := NewTask(title, description)
	pid := parentID
	t.ParentID = &pid
	return t
}

// WithPriority sets the priority and returns the task for chaining.
func (t *AgentTask) WithPriority(p Priority) *AgentTask {
	t.Priority = p
	return t
}

// Start marks the task as running.
func (t *AgentTask) Start() {
	now := time.Now()
	t.Status = StatusRunning
	t.StartedAt = &now
}

// Complete marks the task as successfully completed.
func (t *AgentTask) Complete(output string) {
	now := time.Now()
	t.Status = StatusCompleted
	t.Output = &output
	t.CompletedAt = &now
}

// Fail marks the task as failed with the given message.
func (t *AgentTask) Fail(msg string) {
	now := time.Now()
	t.Status = StatusFailed
	t.Error = &msg
	t.CompletedAt = &now
}

// Skip marks the task as skipped.
func (t *AgentTask) Skip() {
	now := time.Now()
	t.Status = StatusSkipped
	t.CompletedAt = &now
}

// Cancel marks the task as cancelled.
func (t *AgentTask) Cancel() {
	now := time.Now()
	t.Status = StatusCancelled
	t.CompletedAt = &now
}

// Pause suspends a running task.
func (t *AgentTask) Pause() {
	t.Status = StatusPaused
}

// AwaitApproval blocks the task on a human decision.
func (t *AgentTask) AwaitApproval() {
	t.Status = StatusWaitingApproval
}

// RecordToolCall appends a tool invocation to the task history.
func (t *AgentTask) RecordToolCall(rec ToolCallRecord) {
	t.ToolCalls = append(t.ToolCalls, rec)
}

// CanRetry reports whether a failed task still has retries left.
func (t *AgentTask) CanRetry() bool {
	return t.Status == StatusFailed && t.RetryCount < t.MaxRetries
}

// Retry resets a failed task to pending and consumes one retry.
// Returns false if no retries are left.
func (t *AgentTask) Retry() bool {
	if !t.CanRetry() {
		return false
	}
	t.RetryCount++
	t.Status = StatusPending
	t.Error = nil
	t.Output = nil
	t.StartedAt = nil
	t.CompletedAt = nil
	return true
}

// Duration returns how long the task has been running or took to complete.
func (t *AgentTask) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	if t.CompletedAt == nil {
		return time.Since(*t.StartedAt)
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}
