// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-agent/internal/plan"
)

// maxPlanInput caps plan files and stdin.
const maxPlanInput = 1024 * 1024

// =============================================================================
// PROMPT
// =============================================================================

func newPromptCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <goal>...",
		Short: "Print the planning prompt for a goal",
		Long: `Print the prompt that asks an LLM to break a goal into a plan.

Send the output to any model and pass its reply to 'plan' or 'run'.

Examples:
  rigrun-agent prompt "add a --dry-run flag to the deploy script"
  rigrun-agent prompt refactor the config loader | llm > plan.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			planner := plan.NewPlanner(a.cfg.PlannerSettings())
			prompt := planner.GeneratePrompt(goal)
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), "prompt", map[string]string{
					"goal":   goal,
					"prompt": prompt,
				}, nil)
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
}

// =============================================================================
// PLAN
// =============================================================================

func newPlanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <file|->",
		Short: "Parse, validate and display a plan",
		Long: `Parse an LLM plan response, validate it and show its steps, critical
path and task tree. Use '-' to read from stdin.

The command exits non-zero when the plan cannot be parsed or fails validation.

Examples:
  rigrun-agent plan plan.txt
  llm < prompt.txt | rigrun-agent plan -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPlan(cmd, args[0])
			if p == nil {
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), "plan", nil, err)
				}
				return err
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), "plan", newPlanView(p, err), err)
			}

			out := cmd.OutOrStdout()
			width := GetTerminalWidth()
			renderPlan(out, p, width)
			fmt.Fprintln(out)
			fmt.Fprintln(out, SectionStyle.Render("Tasks"))
			renderTree(out, p.ToTaskTree(), width)
			if err != nil {
				renderValidation(out, err)
			}
			return err
		},
	}
}

// loadPlan reads and parses the plan named by arg, then validates it. A plan
// that parses but fails validation is returned together with the
// plan.ValidationErrors.
func (a *app) loadPlan(cmd *cobra.Command, arg string) (*plan.Plan, error) {
	text, err := readPlanInput(cmd.InOrStdin(), arg)
	if err != nil {
		return nil, err
	}

	planner := plan.NewPlanner(a.cfg.PlannerSettings())
	p, err := planner.ParsePlan(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	a.logger.Debug("plan parsed", "plan_id", p.ID, "title", p.Title, "steps", len(p.Steps))

	if err := planner.ValidatePlan(p); err != nil {
		a.logger.Warn("plan failed validation", "plan_id", p.ID, "error", err)
		return p, err
	}
	return p, nil
}

// readPlanInput returns the contents of path, or of in when path is "-".
func readPlanInput(in io.Reader, path string) (string, error) {
	var r io.Reader
	if path == "-" {
		r = in
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open plan: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPlanInput+1))
	if err != nil {
		return "", fmt.Errorf("failed to read plan: %w", err)
	}
	if len(data) > maxPlanInput {
		return "", fmt.Errorf("plan input exceeds %d bytes", maxPlanInput)
	}
	return string(data), nil
}

func renderValidation(w io.Writer, err error) {
	var verrs plan.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ErrorStyle.Render(fmt.Sprintf("Plan is invalid (%d problems)", len(verrs))))
	for _, v := range verrs {
		fmt.Fprintf(w, "  - %s\n", v.Error())
	}
}

// =============================================================================
// JSON VIEW
// =============================================================================

type stepView struct {
	StepNumber       int      `json:"step_number"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Tools            []string `json:"tools"`
	EstimatedTokens  *int     `json:"estimated_tokens,omitempty"`
	DependsOn        []int    `json:"depends_on"`
	RiskLevel        int      `json:"risk_level"`
	RequiresApproval bool     `json:"requires_approval"`
}

type planView struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Steps                []stepView `json:"steps"`
	CriticalPath         []int      `json:"critical_path"`
	EstimatedTotalTokens *int       `json:"estimated_total_tokens,omitempty"`
	Valid                bool       `json:"valid"`
	Problems             []string   `json:"problems,omitempty"`
}

func newPlanView(p *plan.Plan, validationErr error) planView {
	v := planView{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Steps:        make([]stepView, len(p.Steps)),
		CriticalPath: p.CriticalPath(),
		Valid:        validationErr == nil,
	}
	for i, s := range p.Steps {
		v.Steps[i] = stepView{
			StepNumber:       s.StepNumber,
			Title:            s.Title,
			Description:      s.Description,
			Tools:            s.Tools,
			EstimatedTokens:  s.EstimatedTokens,
			DependsOn:        s.DependsOn,
			RiskLevel:        s.RiskLevel,
			RequiresApproval: s.RequiresApproval,
		}
	}
	if total, ok := p.TotalEstimatedTokens(); ok {
		v.EstimatedTotalTokens = &total
	}
	var verrs plan.ValidationErrors
	if errors.As(validationErr, &verrs) {
		for _, e := range verrs {
			v.Problems = append(v.Problems, e.Error())
		}
	}
	return v
}
