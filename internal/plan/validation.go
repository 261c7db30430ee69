// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import "slices"

// ValidatePlan checks plan against the planner's tool whitelist and its own
// dependency graph. Every problem is collected; the returned error is a
// ValidationErrors or nil.
//
// Only direct self-dependencies are reported as circular. Longer cycles pass
// validation and surface at run time as a deadlock.
func (p *Planner) ValidatePlan(plan *Plan) error {
	var errs ValidationErrors

	if plan == nil || len(plan.Steps) == 0 {
		return ValidationErrors{{Kind: ValidationEmptyPlan}}
	}

	known := make(map[int]bool, len(plan.Steps))
	for _, step := range plan.Steps {
		known[step.StepNumber] = true
	}

	for _, step := range plan.Steps {
		if step.DependsOnStep(step.StepNumber) {
			errs = append(errs, ValidationError{
				Kind: ValidationCircularDependency,
				Step: step.StepNumber,
			})
		}

		for _, dep := range step.DependsOn {
			if !known[dep] {
				errs = append(errs, ValidationError{
					Kind:       ValidationInvalidDependency,
					Step:       step.StepNumber,
					Dependency: dep,
				})
			}
		}

		for _, tool := range step.Tools {
			if !slices.Contains(p.config.AvailableTools, tool) {
				errs = append(errs, ValidationError{
					Kind: ValidationUnknownTool,
					Step: step.StepNumber,
					Tool: tool,
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
