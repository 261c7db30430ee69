// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-agent/internal/tasks"
)

// =============================================================================
// PLAN STEP
// =============================================================================

// MaxRiskLevel is the upper bound of PlanStep.RiskLevel.
const MaxRiskLevel = 10

// PlanStep represents a single unit of work in a plan.
type PlanStep struct {
	// StepNumber identifies the step within its plan. It is not necessarily
	// the step's index in Plan.Steps.
	StepNumber int

	Title       string
	Description string

	// Tools are invoked in order when the step runs
	Tools []string

	// EstimatedTokens is an optional cost hint
	EstimatedTokens *int

	// DependsOn lists step numbers that must complete first
	DependsOn []int

	// RiskLevel is 0..10
	RiskLevel int

	// RequiresApproval gates the step behind a human decision
	RequiresApproval bool
}

// DependsOnStep reports whether n is a direct dependency of the step.
func (s *PlanStep) DependsOnStep(n int) bool {
	return slices.Contains(s.DependsOn, n)
}

// =============================================================================
// PLAN
// =============================================================================

// Plan is an ordered, dependency-annotated list of steps.
// A plan is only appended to while it is built; once handed to an executor it
// is not mutated.
type Plan struct {
	// ID is a unique identifier generated at construction
	ID string

	Title       string
	Description string

	Steps []PlanStep

	// EstimatedTotalTokens is an optional cost hint for the whole plan
	EstimatedTotalTokens *int

	// Metadata is an open string bag
	Metadata map[string]string

	CreatedAt time.Time
}

// NewPlan creates an empty plan with a fresh id.
func NewPlan(title, description string) *Plan {
	return &Plan{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Steps:       make([]PlanStep, 0),
		Metadata:    make(map[string]string),
		CreatedAt:   time.Now(),
	}
}

// AddStep appends a step.
func (p *Plan) AddStep(step PlanStep) {
	p.Steps = append(p.Steps, step)
}

// GetStep returns the step with the given step number, or nil.
func (p *Plan) GetStep(n int) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].StepNumber == n {
			return &p.Steps[i]
		}
	}
	return nil
}

// RunnableSteps returns, in plan order, the steps not in completed whose
// dependencies are all in completed. A dependency on a step number that does
// not exist is never satisfied.
func (p *Plan) RunnableSteps(completed []int) []PlanStep {
	result := make([]PlanStep, 0)
	for _, step := range p.Steps {
		if slices.Contains(completed, step.StepNumber) {
			continue
		}
		ready := true
		for _, dep := range step.DependsOn {
			if !slices.Contains(completed, dep) {
				ready = false
				break
			}
		}
		if ready {
			result = append(result, step)
		}
	}
	return result
}

// CriticalPath returns the step numbers of the longest dependency chain.
//
// Only the first entry of each DependsOn is followed, so a step with several
// dependencies contributes a single branch. The chain is ordered from the
// earliest dependency to the final step.
func (p *Plan) CriticalPath() []int {
	var longest []int
	for _, step := range p.Steps {
		chain := p.chainFrom(step.StepNumber, make(map[int]bool))
		if len(chain) > len(longest) {
			longest = chain
		}
	}
	if longest == nil {
		return []int{}
	}
	return longest
}

// chainFrom walks first dependencies back from n. seen stops self-loops and
// cycles from recursing forever.
func (p *Plan) chainFrom(n int, seen map[int]bool) []int {
	if seen[n] {
		return nil
	}
	seen[n] = true

	step := p.GetStep(n)
	if step == nil {
		return nil
	}
	if len(step.DependsOn) == 0 {
		return []int{n}
	}
	return append(p.chainFrom(step.DependsOn[0], seen), n)
}

// TotalEstimatedTokens returns the plan estimate, falling back to the sum of
// step estimates. The second result is false when nothing is known.
func (p *Plan) TotalEstimatedTokens() (int, bool) {
	if p.EstimatedTotalTokens != nil {
		return *p.EstimatedTotalTokens, true
	}
	total, known := 0, false
	for _, step := range p.Steps {
		if step.EstimatedTokens != nil {
			total += *step.EstimatedTokens
			known = true
		}
	}
	return total, known
}

// =============================================================================
// TASK TREE CONVERSION
// =============================================================================

// StepNumberKey is the task metadata key holding a step's number.
const StepNumberKey = "step_number"

// PlanIDKey is the task metadata key holding the plan id on the root task.
const PlanIDKey = "plan_id"

// PriorityForRisk maps a step risk level to a task priority.
func PriorityForRisk(risk int) tasks.Priority {
	switch {
	case risk > 7:
		return tasks.PriorityCritical
	case risk > 4:
		return tasks.PriorityHigh
	default:
		return tasks.PriorityNormal
	}
}

// ToTaskTree builds a fresh tree with one root task for the plan and one
// direct subtask per step.
func (p *Plan) ToTaskTree() *tasks.TaskTree {
	tree := tasks.NewTaskTree()

	root := tasks.NewTask(p.Title, p.Description)
	root.Metadata[PlanIDKey] = p.ID
	rootID := tree.AddRoot(root)

	for _, step := range p.Steps {
		sub := tasks.NewSubtask(rootID, step.Title, step.Description).
			WithPriority(PriorityForRisk(step.RiskLevel))
		sub.Metadata[StepNumberKey] = strconv.Itoa(step.StepNumber)
		tree.AddSubtask(rootID, sub)
	}

	return tree
}
