// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPlan is returned when an operation needs a loaded plan.
	ErrNoPlan = errors.New("no plan loaded")

	// ErrCancelled is returned by Start when the run observed a cancel request.
	ErrCancelled = errors.New("execution cancelled")

	// ErrDeadlocked is returned when steps remain but none can run.
	ErrDeadlocked = errors.New("plan deadlocked")

	// ErrNoRunnableStep is returned by Approve when there is nothing to approve.
	ErrNoRunnableStep = errors.New("no runnable step")
)

// StateError reports a control operation called in a state that forbids it.
type StateError struct {
	Op    string
	State ExecutorState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

// ToolFailedError reports a tool that ran but did not succeed.
type ToolFailedError struct {
	Step    int
	Tool    string
	Message string
}

func (e *ToolFailedError) Error() string {
	return fmt.Sprintf("step %d: tool %s failed: %s", e.Step, e.Tool, e.Message)
}
