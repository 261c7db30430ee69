// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"testing"
)

func TestNewTask(t *testing.T) {
	task := NewTask("Test task", "does things")

	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.ParentID != nil {
		t.Error("Root task should have no parent")
	}
	if task.Status != StatusPending {
		t.Errorf("Expected status Pending, got %s", task.Status)
	}
	if task.Priority != PriorityNormal {
		t.Errorf("Expected priority Normal, got %s", task.Priority)
	}
	if task.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got %d", DefaultMaxRetries, task.MaxRetries)
	}
}

func TestNewSubtask(t *testing.T) {
	parent := NewTask("Parent", "")
	child := NewSubtask(parent.ID, "Child", "")

	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Errorf("Expected parent %s, got %v", parent.ID, child.ParentID)
	}
	if child.ID == parent.ID {
		t.Error("Subtask should get its own ID")
	}
}

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("Test", "")

	task.Start()
	if task.Status != StatusRunning || task.StartedAt == nil {
		t.Error("Task should be running with a start time after Start()")
	}

	task.Complete("done")
	if task.Status != StatusCompleted {
		t.Errorf("Expected Completed, got %s", task.Status)
	}
	if task.Output == nil || *task.Output != "done" {
		t.Error("Output should be recorded")
	}
	if task.Duration() < 0 {
		t.Error("Task duration should not be negative")
	}
}

func TestTaskRetry(t *testing.T) {
	task := NewTask("Flaky", "")

	if task.CanRetry() {
		t.Error("Pending task should not be retryable")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		task.Start()
		task.Fail("boom")
		if !task.CanRetry() {
			t.Fatalf("Retry %d should be allowed", i+1)
		}
		if !task.Retry() {
			t.Fatalf("Retry %d should succeed", i+1)
		}
		if task.Status != StatusPending || task.Error != nil {
			t.Errorf("Retry should reset status and error, got %s", task.Status)
		}
	}

	task.Start()
	task.Fail("boom")
	if task.CanRetry() {
		t.Error("Retries should be exhausted")
	}
	if task.Retry() {
		t.Error("Retry should fail once exhausted")
	}
	if task.RetryCount != DefaultMaxRetries {
		t.Errorf("Expected retry count %d, got %d", DefaultMaxRetries, task.RetryCount)
	}
}

func TestStatusSets(t *testing.T) {
	terminal := map[TaskStatus]bool{
		StatusCompleted: true,
		StatusFailed:    true,
		StatusSkipped:   true,
		StatusCancelled: true,
	}
	resumable := map[TaskStatus]bool{
		StatusPaused:          true,
		StatusWaitingApproval: true,
	}

	for s := StatusPending; s <= StatusCancelled; s++ {
		if s.IsTerminal() != terminal[s] {
			t.Errorf("%s: IsTerminal = %v", s, s.IsTerminal())
		}
		if s.IsResumable() != resumable[s] {
			t.Errorf("%s: IsResumable = %v", s, s.IsResumable())
		}
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh && PriorityHigh < PriorityCritical) {
		t.Error("Priorities should be totally ordered Low < Normal < High < Critical")
	}
}

func TestRecordToolCall(t *testing.T) {
	task := NewTask("Test", "")
	task.RecordToolCall(ToolCallRecord{Name: "read_file", Success: true})
	task.RecordToolCall(ToolCallRecord{Name: "write_file", Success: false, Error: "denied"})

	if len(task.ToolCalls) != 2 {
		t.Fatalf("Expected 2 tool calls, got %d", len(task.ToolCalls))
	}
	if task.ToolCalls[1].Name != "write_file" {
		t.Errorf("Expected calls in order, got %s", task.ToolCalls[1].Name)
	}
}
