// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks provides hierarchical task bookkeeping for plan execution.
//
// Tasks are kept in a TaskTree, a flat id-keyed arena where each node lists
// its children by id. A plan is converted into one tree per run: a root task
// for the plan and one subtask per step.
//
// # Key Types
//
//   - AgentTask: Task payload with status, priority, tool call history and retries
//   - TaskStatus: Pending, Running, Completed, Failed, Skipped, Paused, WaitingApproval, Cancelled
//   - Priority: Low < Normal < High < Critical
//   - TaskTree: Arena of TaskNode values with roots and an active task
//
// # Usage
//
//	tree := tasks.NewTaskTree()
//	root := tree.AddRoot(tasks.NewTask("Deploy", "Ship the release"))
//	id, ok := tree.AddSubtask(root, tasks.NewTask("Build", ""))
//
//	next := tree.NextPending() // descendants are visited before their parent
//	fmt.Printf("%.0f%% complete\n", tree.CompletionPercentage())
//
// A TaskTree is not safe for concurrent use.
package tasks
