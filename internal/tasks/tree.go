// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

// =============================================================================
// TASK NODE
// =============================================================================

// TaskNode wraps a task with its ordered child ids.
type TaskNode struct {
	Task *AgentTask

	// Children are child task ids in insertion order
	Children []string

	// IsExpanded is display state only
	IsExpanded bool
}

// =============================================================================
// TASK TREE
// =============================================================================

// TaskTree is an id-keyed arena of task nodes.
// Parent/child links are ids, never pointers. A TaskTree is not safe for
// concurrent use; it belongs to a single owner.
type TaskTree struct {
	nodes  map[string]*TaskNode
	roots  []string
	active string
}

// NewTaskTree creates an empty tree.
func NewTaskTree() *TaskTree {
	return &TaskTree{
		nodes: make(map[string]*TaskNode),
		roots: make([]string, 0),
	}
}

// AddRoot inserts a task as a new root and returns its id.
func (tr *TaskTree) AddRoot(task *AgentTask) string {
	tr.nodes[task.ID] = &TaskNode{Task: task, Children: make([]string, 0), IsExpanded: true}
	tr.roots = append(tr.roots, task.ID)
	return task.ID
}

// AddSubtask registers task under parentID and links it into the parent's
// children. If the parent does not exist, or task.ID is already in the tree,
// nothing is changed and ("", false) is returned.
func (tr *TaskTree) AddSubtask(parentID string, task *AgentTask) (string, bool) {
	parent, ok := tr.nodes[parentID]
	if !ok {
		return "", false
	}
	if _, exists := tr.nodes[task.ID]; exists {
		return "", false
	}

	tr.nodes[task.ID] = &TaskNode{Task: task, Children: make([]string, 0)}
	parent.Children = append(parent.Children, task.ID)
	pid := parentID
	task.ParentID = &pid
	return task.ID, true
}

// Get returns the task with the given id, or nil.
// The returned pointer is live; mutations are visible through the tree.
func (tr *TaskTree) Get(id string) *AgentTask {
	if node, ok := tr.nodes[id]; ok {
		return node.Task
	}
	return nil
}

// GetNode returns the node with the given id, or nil.
func (tr *TaskTree) GetNode(id string) *TaskNode {
	return tr.nodes[id]
}

// Children resolves the child ids of id to tasks, skipping ids that are no
// longer present.
func (tr *TaskTree) Children(id string) []*AgentTask {
	node, ok := tr.nodes[id]
	if !ok {
		return nil
	}
	result := make([]*AgentTask, 0, len(node.Children))
	for _, cid := range node.Children {
		if child, ok := tr.nodes[cid]; ok {
			result = append(result, child.Task)
		}
	}
	return result
}

// Roots returns the root tasks in insertion order.
func (tr *TaskTree) Roots() []*AgentTask {
	result := make([]*AgentTask, 0, len(tr.roots))
	for _, id := range tr.roots {
		if node, ok := tr.nodes[id]; ok {
			result = append(result, node.Task)
		}
	}
	return result
}

// AllTasks returns every task in the tree in map order.
func (tr *TaskTree) AllTasks() []*AgentTask {
	result := make([]*AgentTask, 0, len(tr.nodes))
	for _, node := range tr.nodes {
		result = append(result, node.Task)
	}
	return result
}

// Len returns the number of tasks in the tree.
func (tr *TaskTree) Len() int {
	return len(tr.nodes)
}

// ActiveTask returns the active task, or nil.
func (tr *TaskTree) ActiveTask() *AgentTask {
	if tr.active == "" {
		return nil
	}
	return tr.Get(tr.active)
}

// SetActive marks id as the active task. An empty id clears it.
func (tr *TaskTree) SetActive(id string) {
	tr.active = id
}

// ToggleExpanded flips the expanded flag of a node.
func (tr *TaskTree) ToggleExpanded(id string) {
	if node, ok := tr.nodes[id]; ok {
		node.IsExpanded = !node.IsExpanded
	}
}

// NextPending returns the first pending task found by a depth-first walk of
// each root that visits a node's descendants before the node itself.
func (tr *TaskTree) NextPending() *AgentTask {
	for _, id := range tr.roots {
		if task := tr.findPending(id); task != nil {
			return task
		}
	}
	return nil
}

func (tr *TaskTree) findPending(id string) *AgentTask {
	node, ok := tr.nodes[id]
	if !ok {
		return nil
	}
	for _, cid := range node.Children {
		if task := tr.findPending(cid); task != nil {
			return task
		}
	}
	if node.Task.Status == StatusPending {
		return node.Task
	}
	return nil
}

// CountByStatus returns a histogram of task statuses.
func (tr *TaskTree) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for _, node := range tr.nodes {
		counts[node.Task.Status]++
	}
	return counts
}

// CompletionPercentage is the share of completed tasks over all tasks, 0..100.
func (tr *TaskTree) CompletionPercentage() float64 {
	if len(tr.nodes) == 0 {
		return 0
	}
	completed := 0
	for _, node := range tr.nodes {
		if node.Task.Status == StatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(tr.nodes)) * 100
}

// IsComplete reports whether every task is terminal.
func (tr *TaskTree) IsComplete() bool {
	for _, node := range tr.nodes {
		if !node.Task.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// HasFailures reports whether any task failed.
func (tr *TaskTree) HasFailures() bool {
	for _, node := range tr.nodes {
		if node.Task.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Clear removes every task.
func (tr *TaskTree) Clear() {
	tr.nodes = make(map[string]*TaskNode)
	tr.roots = make([]string, 0)
	tr.active = ""
}
