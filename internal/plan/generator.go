// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// =============================================================================
// LLM CLIENT INTERFACE
// =============================================================================

// LLMClient is an interface for generating plan text using an LLM.
type LLMClient interface {
	// GenerateCompletion generates a text completion from the LLM
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// =============================================================================
// PLANNER CONFIG
// =============================================================================

// Planner defaults.
const (
	DefaultMaxSteps  = 20
	DefaultRiskLevel = 5

	// approvalRiskFloor is the risk above which parsed steps require approval
	// when the plan text does not say.
	approvalRiskFloor = 3

	// maxResponseSize caps LLM responses accepted by Generate
	maxResponseSize = 1024 * 1024
)

// DefaultTools is the tool whitelist used when none is configured.
var DefaultTools = []string{
	"read_file",
	"write_file",
	"edit_file",
	"execute_command",
	"search_files",
	"search_content",
}

// PlannerConfig controls parsing and validation.
type PlannerConfig struct {
	// MaxSteps truncates parsed plans; extra steps are dropped silently
	MaxSteps int

	// AvailableTools is the tool whitelist used by ValidatePlan
	AvailableTools []string

	// AutoApproveLowRisk feeds the requires_approval default of parsed steps
	AutoApproveLowRisk bool
}

// DefaultPlannerConfig returns the default planner configuration.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MaxSteps:           DefaultMaxSteps,
		AvailableTools:     append([]string(nil), DefaultTools...),
		AutoApproveLowRisk: true,
	}
}

// =============================================================================
// PLANNER
// =============================================================================

// Planner turns free-form model output into validated plans.
type Planner struct {
	config PlannerConfig
}

// NewPlanner creates a planner. A non-positive MaxSteps uses the default.
func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Planner{config: cfg}
}

// Config returns the planner configuration.
func (p *Planner) Config() PlannerConfig {
	return p.config
}

// GeneratePrompt builds the instruction prompt asking a model to plan goal.
func (p *Planner) GeneratePrompt(goal string) string {
	var tools strings.Builder
	for _, name := range p.config.AvailableTools {
		tools.WriteString("- ")
		tools.WriteString(name)
		tools.WriteString("\n")
	}

	return fmt.Sprintf(`You are a task planning assistant. Break down the following goal into a clear, executable plan.

Available tools:
%s
Goal: %s

Respond with a JSON object using this structure:
{
  "title": "Short plan title",
  "description": "What the plan accomplishes",
  "steps": [
    {
      "step_number": 1,
      "title": "Step title",
      "description": "What this step does",
      "tools": ["tool_name"],
      "estimated_tokens": 500,
      "depends_on": [],
      "risk_level": 2,
      "requires_approval": false
    }
  ]
}

Rules:
- Use at most %d steps.
- Only use tools from the list above.
- depends_on lists step_number values that must finish first.
- risk_level is 0 (harmless) to 10 (destructive).
- Set requires_approval for anything that modifies files or runs commands.`,
		tools.String(), goal, p.config.MaxSteps)
}

// Generate asks client for a plan for goal and parses the response.
func (p *Planner) Generate(ctx context.Context, client LLMClient, goal string) (*Plan, error) {
	if client == nil {
		return nil, errors.New("LLM client not configured")
	}

	response, err := client.GenerateCompletion(ctx, p.GeneratePrompt(goal))
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}
	if len(response) > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes (max: %d)", len(response), maxResponseSize)
	}

	plan, err := p.ParsePlan(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	plan.Metadata["goal"] = goal
	return plan, nil
}

// =============================================================================
// PARSING
// =============================================================================

// ParsePlan extracts a plan from response.
//
// The JSON span runs from the first '{' to the last '}' in the text. Prose
// around a single object is tolerated, but text holding several objects, or
// a stray '}' after the plan, selects the wrong span and fails to parse.
func (p *Planner) ParsePlan(response string) (*Plan, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < 0 || start >= end {
		return nil, ErrNoJSONFound
	}
	raw := response[start : end+1]

	if !gjson.Valid(raw) {
		var probe any
		msg := "invalid JSON"
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			msg = err.Error()
		}
		return nil, &ParseError{Message: msg}
	}
	doc := gjson.Parse(raw)

	title := doc.Get("title")
	if title.Type != gjson.String {
		return nil, &MissingFieldError{Field: "title"}
	}

	steps := doc.Get("steps")
	if !steps.IsArray() {
		return nil, &MissingFieldError{Field: "steps"}
	}

	plan := NewPlan(title.Str, stringField(doc, "description"))
	for i, elem := range steps.Array() {
		if i >= p.config.MaxSteps {
			break
		}
		plan.AddStep(p.parseStep(i, elem))
	}
	if len(plan.Steps) == 0 {
		return nil, ErrEmptyPlan
	}

	if total, ok := uintField(doc, "estimated_total_tokens"); ok {
		plan.EstimatedTotalTokens = &total
	} else if total, ok := plan.TotalEstimatedTokens(); ok {
		plan.EstimatedTotalTokens = &total
	}

	return plan, nil
}

// parseStep decodes one step element, filling defaults for anything missing
// or of the wrong type.
func (p *Planner) parseStep(index int, s gjson.Result) PlanStep {
	number, ok := uintField(s, "step_number")
	if !ok {
		number = index + 1
	}

	title := fmt.Sprintf("Step %d", number)
	if v := s.Get("title"); v.Type == gjson.String {
		title = v.Str
	}

	risk, ok := uintField(s, "risk_level")
	if !ok {
		risk = DefaultRiskLevel
	}
	risk = min(risk, MaxRiskLevel)

	step := PlanStep{
		StepNumber:  number,
		Title:       title,
		Description: stringField(s, "description"),
		Tools:       make([]string, 0),
		DependsOn:   make([]int, 0),
		RiskLevel:   risk,
	}

	if tokens, ok := uintField(s, "estimated_tokens"); ok {
		step.EstimatedTokens = &tokens
	}

	for _, v := range arrayField(s, "tools") {
		if v.Type == gjson.String {
			step.Tools = append(step.Tools, v.Str)
		}
	}
	for _, v := range arrayField(s, "depends_on") {
		if n, ok := asUint(v); ok {
			step.DependsOn = append(step.DependsOn, n)
		}
	}

	switch approval := s.Get("requires_approval"); approval.Type {
	case gjson.True, gjson.False:
		step.RequiresApproval = approval.Bool()
	default:
		step.RequiresApproval = !p.config.AutoApproveLowRisk || risk > approvalRiskFloor
	}

	return step
}

// stringField returns a string member or "" when absent or not a string.
func stringField(r gjson.Result, key string) string {
	if v := r.Get(key); v.Type == gjson.String {
		return v.Str
	}
	return ""
}

// arrayField returns the elements of an array member, or nil when the member
// is absent or not an array.
func arrayField(r gjson.Result, key string) []gjson.Result {
	if v := r.Get(key); v.IsArray() {
		return v.Array()
	}
	return nil
}

// uintField returns a non-negative integer member.
func uintField(r gjson.Result, key string) (int, bool) {
	return asUint(r.Get(key))
}

func asUint(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number || v.Num < 0 || v.Num != math.Trunc(v.Num) || v.Num > math.MaxInt32 {
		return 0, false
	}
	return int(v.Num), true
}
