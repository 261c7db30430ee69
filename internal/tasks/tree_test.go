// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) (*TaskTree, string, []string) {
	t.Helper()
	tree := NewTaskTree()
	root := tree.AddRoot(NewTask("Plan", ""))

	ids := make([]string, 0, 3)
	for _, title := range []string{"one", "two", "three"} {
		id, ok := tree.AddSubtask(root, NewTask(title, ""))
		require.True(t, ok)
		ids = append(ids, id)
	}
	return tree, root, ids
}

func TestAddSubtask_LinksParent(t *testing.T) {
	tree, root, ids := buildTree(t)

	require.Equal(t, 4, tree.Len())
	children := tree.Children(root)
	require.Len(t, children, 3)
	for i, child := range children {
		assert.Equal(t, ids[i], child.ID)
		require.NotNil(t, child.ParentID)
		assert.Equal(t, root, *child.ParentID)
	}
}

func TestAddSubtask_RollsBackOrphan(t *testing.T) {
	tree := NewTaskTree()
	orphan := NewTask("orphan", "")

	id, ok := tree.AddSubtask("missing-parent", orphan)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Nil(t, tree.Get(orphan.ID), "orphan must not remain in the tree")
	assert.Nil(t, orphan.ParentID, "rejected task must not point at a parent")
	assert.Equal(t, 0, tree.Len())
}

func TestAddSubtask_DuplicateIDLeavesTreeIntact(t *testing.T) {
	tree, root, ids := buildTree(t)
	rootTask := tree.Get(root)

	self := NewTask("self", "")
	self.ID = root
	id, ok := tree.AddSubtask(root, self)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Nil(t, self.ParentID)
	assert.Same(t, rootTask, tree.Get(root))
	require.Len(t, tree.Roots(), 1)
	assert.Equal(t, root, tree.Roots()[0].ID)
	assert.Len(t, tree.Children(root), 3)

	dup := NewTask("dup", "")
	dup.ID = ids[0]
	_, ok = tree.AddSubtask(ids[1], dup)
	assert.False(t, ok)
	assert.Equal(t, "one", tree.Get(ids[0]).Title)
	assert.Empty(t, tree.Children(ids[1]))
	assert.Equal(t, 4, tree.Len())
}

func TestChildren_SkipsMissingIDs(t *testing.T) {
	tree, root, ids := buildTree(t)

	delete(tree.nodes, ids[1])

	children := tree.Children(root)
	require.Len(t, children, 2)
	assert.Equal(t, ids[0], children[0].ID)
	assert.Equal(t, ids[2], children[1].ID)
	assert.Nil(t, tree.Children("nope"))
}

func TestNextPending_VisitsDescendantsFirst(t *testing.T) {
	tree, root, ids := buildTree(t)

	grandchild := NewTask("deep", "")
	_, ok := tree.AddSubtask(ids[0], grandchild)
	require.True(t, ok)

	// Root and all children pending: the deepest first descendant wins.
	assert.Equal(t, grandchild.ID, tree.NextPending().ID)

	grandchild.Complete("")
	assert.Equal(t, ids[0], tree.NextPending().ID)

	for _, id := range ids {
		tree.Get(id).Complete("")
	}
	assert.Equal(t, root, tree.NextPending().ID)

	tree.Get(root).Complete("")
	assert.Nil(t, tree.NextPending())
}

func TestCompletionAndFailures(t *testing.T) {
	tree, root, ids := buildTree(t)

	assert.Equal(t, 0.0, tree.CompletionPercentage())
	assert.False(t, tree.IsComplete())

	tree.Get(ids[0]).Complete("")
	tree.Get(ids[1]).Complete("")
	assert.InDelta(t, 50.0, tree.CompletionPercentage(), 0.001)

	tree.Get(ids[2]).Fail("boom")
	assert.True(t, tree.HasFailures())
	assert.False(t, tree.IsComplete())

	tree.Get(root).Cancel()
	assert.True(t, tree.IsComplete())

	counts := tree.CountByStatus()
	assert.Equal(t, 2, counts[StatusCompleted])
	assert.Equal(t, 1, counts[StatusFailed])
	assert.Equal(t, 1, counts[StatusCancelled])
}

func TestActiveAndExpanded(t *testing.T) {
	tree, root, ids := buildTree(t)

	assert.Nil(t, tree.ActiveTask())
	tree.SetActive(ids[1])
	require.NotNil(t, tree.ActiveTask())
	assert.Equal(t, ids[1], tree.ActiveTask().ID)

	assert.True(t, tree.GetNode(root).IsExpanded)
	tree.ToggleExpanded(root)
	assert.False(t, tree.GetNode(root).IsExpanded)
	tree.ToggleExpanded("missing")
}

func TestClear(t *testing.T) {
	tree, _, ids := buildTree(t)
	tree.SetActive(ids[0])

	tree.Clear()

	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Roots())
	assert.Nil(t, tree.ActiveTask())
	assert.Equal(t, 0.0, tree.CompletionPercentage())
}
