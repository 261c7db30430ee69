// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

// =============================================================================
// EXECUTOR STATE
// =============================================================================

// ExecutorState is the lifecycle state of an Executor.
type ExecutorState int

const (
	// StateIdle - no run in progress, a plan may or may not be loaded
	StateIdle ExecutorState = iota

	// StateRunning - the run loop is executing steps
	StateRunning

	// StatePaused - the loop stopped between steps on request
	StatePaused

	// StateWaitingApproval - the next step needs a human decision
	StateWaitingApproval

	// StateCompleted - every step finished
	StateCompleted

	// StateFailed - a tool failed or the plan deadlocked
	StateFailed

	// StateCancelled - the run was cancelled or a step was rejected
	StateCancelled
)

// String returns the string representation of a state.
func (s ExecutorState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateWaitingApproval:
		return "WaitingApproval"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CanPause returns true if a pause request is honoured in this state.
func (s ExecutorState) CanPause() bool {
	return s == StateRunning
}

// CanResume returns true if Resume is valid in this state.
func (s ExecutorState) CanResume() bool {
	return s == StatePaused || s == StateWaitingApproval
}

// IsTerminal returns true if only Reset leaves this state.
func (s ExecutorState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
