// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan provides plan parsing, validation and the plan data model.
//
// A Plan is an ordered list of steps. Each step is identified by its step
// number, names the tools it invokes, lists the step numbers it depends on,
// and carries a 0..10 risk level plus an explicit approval flag.
//
// # Key Types
//
//   - Plan: ordered, dependency-annotated list of steps
//   - PlanStep: single unit of work with tools, dependencies and risk
//   - Planner: builds prompts, parses model output and validates plans
//   - ValidationErrors: every validation failure found in a plan
//
// # Usage
//
// Parse and validate a model response:
//
//	planner := plan.NewPlanner(plan.DefaultPlannerConfig())
//	p, err := planner.ParsePlan(response)
//	if err != nil {
//	    return err
//	}
//	if err := planner.ValidatePlan(p); err != nil {
//	    var verrs plan.ValidationErrors
//	    errors.As(err, &verrs)
//	    ...
//	}
//
// # Plan Format
//
// The planner extracts the text between the first '{' and the last '}' of a
// response and decodes it leniently: only the plan title and the steps array
// are required, and any step field that is missing or mistyped falls back to
// its default.
package plan
