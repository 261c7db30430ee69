// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-agent/internal/tasks"
)

func step(n int, deps ...int) PlanStep {
	return PlanStep{
		StepNumber: n,
		Title:      "Step " + strconv.Itoa(n),
		Tools:      []string{},
		DependsOn:  deps,
		RiskLevel:  2,
	}
}

func planOf(steps ...PlanStep) *Plan {
	p := NewPlan("T", "D")
	for _, s := range steps {
		p.AddStep(s)
	}
	return p
}

func numbers(steps []PlanStep) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.StepNumber
	}
	return out
}

func TestNewPlan(t *testing.T) {
	p := NewPlan("T", "D")

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "T", p.Title)
	assert.Equal(t, "D", p.Description)
	assert.Empty(t, p.Steps)
	assert.NotNil(t, p.Metadata)
	assert.False(t, p.CreatedAt.IsZero())

	assert.NotEqual(t, p.ID, NewPlan("T", "D").ID)
}

func TestGetStep_ByNumberNotIndex(t *testing.T) {
	p := planOf(step(10), step(20))

	require.NotNil(t, p.GetStep(20))
	assert.Equal(t, "Step 20", p.GetStep(20).Title)
	assert.Nil(t, p.GetStep(1))
}

func TestRunnableSteps(t *testing.T) {
	p := planOf(step(1), step(2, 1), step(3, 1, 2), step(4), step(5, 99))

	tests := []struct {
		name      string
		completed []int
		want      []int
	}{
		{"nothing completed", nil, []int{1, 4}},
		{"first done", []int{1}, []int{2, 4}},
		{"chain done", []int{1, 2}, []int{3, 4}},
		{"all but missing dep", []int{1, 2, 3, 4}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.RunnableSteps(tt.completed)
			assert.Equal(t, tt.want, numbers(got))

			for _, s := range got {
				assert.False(t, slices.Contains(tt.completed, s.StepNumber), "step %d already completed", s.StepNumber)
				for _, dep := range s.DependsOn {
					assert.Contains(t, tt.completed, dep)
				}
			}
		})
	}
}

func TestCriticalPath(t *testing.T) {
	t.Run("empty plan", func(t *testing.T) {
		assert.Equal(t, []int{}, NewPlan("T", "").CriticalPath())
	})

	t.Run("linear chain", func(t *testing.T) {
		p := planOf(step(1), step(2, 1), step(3, 2), step(4))
		assert.Equal(t, []int{1, 2, 3}, p.CriticalPath())
	})

	t.Run("follows first dependency only", func(t *testing.T) {
		// 4 depends on 1 and 3; the longer branch through 3 is not explored.
		p := planOf(step(1), step(2, 1), step(3, 2), step(4, 1, 3))
		assert.Equal(t, []int{1, 2, 3}, p.CriticalPath())
	})

	t.Run("self loop terminates", func(t *testing.T) {
		p := planOf(step(1, 1))
		assert.Equal(t, []int{1}, p.CriticalPath())
	})

	t.Run("two step cycle terminates", func(t *testing.T) {
		p := planOf(step(1, 2), step(2, 1))
		assert.Len(t, p.CriticalPath(), 2)
	})
}

func TestTotalEstimatedTokens(t *testing.T) {
	p := planOf(step(1), step(2))
	_, ok := p.TotalEstimatedTokens()
	assert.False(t, ok)

	a, b := 100, 250
	p.Steps[0].EstimatedTokens = &a
	p.Steps[1].EstimatedTokens = &b
	total, ok := p.TotalEstimatedTokens()
	assert.True(t, ok)
	assert.Equal(t, 350, total)

	override := 1000
	p.EstimatedTotalTokens = &override
	total, _ = p.TotalEstimatedTokens()
	assert.Equal(t, 1000, total)
}

func TestPriorityForRisk(t *testing.T) {
	tests := []struct {
		risk int
		want tasks.Priority
	}{
		{0, tasks.PriorityNormal},
		{4, tasks.PriorityNormal},
		{5, tasks.PriorityHigh},
		{7, tasks.PriorityHigh},
		{8, tasks.PriorityCritical},
		{10, tasks.PriorityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityForRisk(tt.risk), "risk %d", tt.risk)
	}
}

func TestToTaskTree(t *testing.T) {
	const n = 4
	p := NewPlan("T", "D")
	for i := 1; i <= n; i++ {
		s := step(i)
		s.RiskLevel = i * 2
		p.AddStep(s)
	}
	require.Len(t, p.Steps, n)

	tree := p.ToTaskTree()

	roots := tree.Roots()
	require.Len(t, roots, 1)
	root := tree.Get(roots[0].ID)
	assert.Equal(t, "T", root.Title)
	assert.Equal(t, p.ID, root.Metadata[PlanIDKey])

	children := tree.Children(root.ID)
	require.Len(t, children, n)
	assert.Equal(t, n+1, tree.Len())

	for i, child := range children {
		assert.Equal(t, strconv.Itoa(i+1), child.Metadata[StepNumberKey])
		assert.Equal(t, PriorityForRisk(p.Steps[i].RiskLevel), child.Priority)
		assert.Equal(t, tasks.StatusPending, child.Status)
		assert.Empty(t, tree.Children(child.ID))
	}
}
