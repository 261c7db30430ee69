// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// PARSE ERRORS
// =============================================================================

var (
	// ErrNoJSONFound is returned when a response holds no {...} span.
	ErrNoJSONFound = errors.New("no JSON object found in response")

	// ErrEmptyPlan is returned when a plan has no steps.
	ErrEmptyPlan = errors.New("plan has no steps")
)

// ParseError reports that the extracted span is not valid JSON.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return "failed to parse plan JSON: " + e.Message
}

// MissingFieldError reports a required plan field that is absent or has the
// wrong type.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationKind classifies a plan validation failure.
type ValidationKind int

const (
	// ValidationEmptyPlan - the plan has no steps
	ValidationEmptyPlan ValidationKind = iota

	// ValidationCircularDependency - a step depends on itself
	ValidationCircularDependency

	// ValidationInvalidDependency - a dependency names a step that does not exist
	ValidationInvalidDependency

	// ValidationUnknownTool - a tool is not in the planner whitelist
	ValidationUnknownTool
)

// String returns the string representation of a validation kind.
func (k ValidationKind) String() string {
	switch k {
	case ValidationEmptyPlan:
		return "EmptyPlan"
	case ValidationCircularDependency:
		return "CircularDependency"
	case ValidationInvalidDependency:
		return "InvalidDependency"
	case ValidationUnknownTool:
		return "UnknownTool"
	default:
		return "Unknown"
	}
}

// ValidationError is a single plan validation failure.
type ValidationError struct {
	Kind ValidationKind

	// Step is the offending step number (circular/invalid dependency)
	Step int

	// Dependency is the missing step number (invalid dependency)
	Dependency int

	// Tool is the unknown tool name
	Tool string
}

func (e ValidationError) Error() string {
	switch e.Kind {
	case ValidationEmptyPlan:
		return "plan has no steps"
	case ValidationCircularDependency:
		return fmt.Sprintf("step %d depends on itself", e.Step)
	case ValidationInvalidDependency:
		return fmt.Sprintf("step %d depends on unknown step %d", e.Step, e.Dependency)
	case ValidationUnknownTool:
		return fmt.Sprintf("unknown tool: %s", e.Tool)
	default:
		return "invalid plan"
	}
}

// ValidationErrors collects every validation failure found in a plan.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Has reports whether any collected error is of the given kind.
func (e ValidationErrors) Has(kind ValidationKind) bool {
	for _, err := range e {
		if err.Kind == kind {
			return true
		}
	}
	return false
}
