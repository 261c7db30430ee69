// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/config"
	"github.com/jeranaias/rigrun-agent/internal/ollama"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitPlanError indicates a plan that could not be parsed or validated
	ExitPlanError = 4
	// ExitRunFailed indicates a plan run that ended in Failed
	ExitRunFailed = 5
	// ExitRunCancelled indicates a plan run that was rejected or cancelled
	ExitRunCancelled = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitLLMUnavailable indicates the Ollama server could not be reached
	ExitLLMUnavailable = 8
	// ExitInterrupted indicates the process was interrupted (Ctrl+C)
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "run", "journal")
	Action  string // Action being performed (e.g., "parse", "open")
	Err     error  // Underlying error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new command error.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// RunEndedError reports a run that stopped in Failed or Cancelled.
type RunEndedError struct {
	State  agent.ExecutorState
	Reason string
}

func (e *RunEndedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("run ended in state %s", e.State)
	}
	return fmt.Sprintf("run ended in state %s: %s", e.State, e.Reason)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error returned by a command to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		runEnded  *RunEndedError
		verrs     plan.ValidationErrors
		parseErr  *plan.ParseError
		fieldErr  *plan.MissingFieldError
		configErr config.ValidateErrors
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &runEnded):
		if runEnded.State == agent.StateCancelled {
			return ExitRunCancelled
		}
		return ExitRunFailed
	case errors.As(err, &verrs), errors.As(err, &parseErr), errors.As(err, &fieldErr),
		errors.Is(err, plan.ErrNoJSONFound), errors.Is(err, plan.ErrEmptyPlan):
		return ExitPlanError
	case errors.As(err, &configErr):
		return ExitConfigError
	case errors.Is(err, storage.ErrRunNotFound):
		return ExitNotFoundError
	case ollama.IsNotRunning(err), ollama.IsTimeout(err), ollama.IsModelNotFound(err):
		return ExitLLMUnavailable
	default:
		return ExitGeneralError
	}
}
