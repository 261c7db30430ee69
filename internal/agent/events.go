// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-agent/internal/tools"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType identifies the kind of an Event.
type EventType int

const (
	// EventStateChanged carries State
	EventStateChanged EventType = iota

	// EventTaskStarted carries TaskID
	EventTaskStarted

	// EventTaskCompleted carries TaskID and Output
	EventTaskCompleted

	// EventTaskFailed carries TaskID and Error
	EventTaskFailed

	// EventToolExecutionRequested carries TaskID and ToolCall
	EventToolExecutionRequested

	// EventToolExecutionCompleted carries ToolName and ToolResult
	EventToolExecutionCompleted

	// EventApprovalRequired carries TaskID and Description
	EventApprovalRequired

	// EventPlanCompleted carries Result. It is also sent when a run stops to
	// pause or wait for approval, so it does not imply a terminal state.
	EventPlanCompleted

	// EventProgress carries Progress
	EventProgress
)

var eventTypeNames = []string{
	EventStateChanged:           "state_changed",
	EventTaskStarted:            "task_started",
	EventTaskCompleted:          "task_completed",
	EventTaskFailed:             "task_failed",
	EventToolExecutionRequested: "tool_execution_requested",
	EventToolExecutionCompleted: "tool_execution_completed",
	EventApprovalRequired:       "approval_required",
	EventPlanCompleted:          "plan_completed",
	EventProgress:               "progress",
}

// String returns the string representation of an event type.
func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// ParseEventType converts a name produced by String back to an EventType.
func ParseEventType(s string) (EventType, error) {
	for i, name := range eventTypeNames {
		if name == s {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(b []byte) error {
	parsed, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s ExecutorState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ExecutorState) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateCancelled; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown executor state: %q", string(b))
}

// =============================================================================
// EVENT PAYLOADS
// =============================================================================

// PlanResult summarises a run of Start.
type PlanResult struct {
	PlanID         string `json:"plan_id"`
	Success        bool   `json:"success"`
	CompletedSteps int    `json:"completed_steps"`
	TotalSteps     int    `json:"total_steps"`
	Error          string `json:"error,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

// Progress reports how far a run has got.
type Progress struct {
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	CurrentTask string `json:"current_task,omitempty"`
}

// Event is a single observation emitted by an Executor. Only the fields
// listed on its Type are set.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	State       ExecutorState     `json:"state,omitempty"`
	TaskID      string            `json:"task_id,omitempty"`
	Output      string            `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	ToolName    string            `json:"tool_name,omitempty"`
	ToolCall    *tools.ToolCall   `json:"tool_call,omitempty"`
	ToolResult  *tools.ToolResult `json:"tool_result,omitempty"`
	Description string            `json:"description,omitempty"`
	Result      *PlanResult       `json:"result,omitempty"`
	Progress    *Progress         `json:"progress,omitempty"`
}

// ApprovalTaskID is the task id used on the TaskFailed event sent by Reject.
const ApprovalTaskID = "approval"

// =============================================================================
// DESCRIPTIONS
// =============================================================================

// Describe returns a one-line human readable description of the event.
// Task ids that are step numbers read as "step N".
func (ev Event) Describe() string {
	switch ev.Type {
	case EventStateChanged:
		return "state " + ev.State.String()
	case EventTaskStarted:
		return taskLabel(ev.TaskID) + " started"
	case EventTaskCompleted:
		msg := taskLabel(ev.TaskID) + " completed"
		if out := firstLine(ev.Output); out != "" {
			msg += ": " + out
		}
		return msg
	case EventTaskFailed:
		return taskLabel(ev.TaskID) + " failed: " + ev.Error
	case EventToolExecutionRequested:
		if ev.ToolCall != nil {
			return "tool " + ev.ToolCall.Name + " requested"
		}
		return "tool " + ev.ToolName + " requested"
	case EventToolExecutionCompleted:
		msg := "tool " + ev.ToolName
		if r := ev.ToolResult; r != nil {
			if r.Success {
				msg += fmt.Sprintf(" ok (%dms)", r.DurationMs)
			} else {
				msg += " failed: " + r.Error
			}
		}
		return msg
	case EventApprovalRequired:
		return taskLabel(ev.TaskID) + " awaits approval: " + ev.Description
	case EventPlanCompleted:
		msg := "plan returned"
		if r := ev.Result; r != nil {
			msg += fmt.Sprintf(": %d/%d steps", r.CompletedSteps, r.TotalSteps)
			if !r.Success && r.Error != "" {
				msg += ", " + r.Error
			}
		}
		return msg
	case EventProgress:
		if p := ev.Progress; p != nil {
			msg := fmt.Sprintf("progress %d/%d", p.Completed, p.Total)
			if p.CurrentTask != "" {
				msg += " (" + p.CurrentTask + ")"
			}
			return msg
		}
		return "progress"
	default:
		return ev.Type.String()
	}
}

// IsFailure reports whether the event records something going wrong.
func (ev Event) IsFailure() bool {
	switch ev.Type {
	case EventTaskFailed:
		return true
	case EventToolExecutionCompleted:
		return ev.ToolResult != nil && !ev.ToolResult.Success
	case EventPlanCompleted:
		return ev.Result != nil && !ev.Result.Success
	default:
		return false
	}
}

func taskLabel(id string) string {
	if _, err := strconv.Atoi(id); err == nil {
		return "step " + id
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
