// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-agent/internal/ollama"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/util"
)

type generateOptions struct {
	run   runOptions
	exec  bool
	model string
	save  string
}

func newGenerateCommand(a *app) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate <goal>...",
		Short: "Ask a local Ollama model for a plan",
		Long: `Send the planning prompt for a goal to Ollama, then parse and validate
the reply exactly like 'plan' does. With --run the plan is executed right away.

The server and model come from the [llm] config section, OLLAMA_HOST and
RIGRUN_AGENT_MODEL; --model overrides the model for one call.

Examples:
  rigrun-agent generate "add a --dry-run flag to the deploy script"
  rigrun-agent generate --save plan.txt rename the config package
  rigrun-agent generate --run --yes "update the changelog"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			goal := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			p, err := a.generatePlan(ctx, goal, opts)
			if p == nil {
				if a.jsonMode {
					return writeJSON(out, "generate", nil, err)
				}
				return err
			}

			if opts.exec && err == nil {
				opts.run.goal = goal
				approver := selectApprover(opts.run.yes, cmd.InOrStdin(), out)
				return a.runPlan(ctx, out, p, approver, opts.run)
			}

			if a.jsonMode {
				return writeJSON(out, "generate", newPlanView(p, err), err)
			}
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

	cmd.Flags().StringVar(&opts.model, "model", "", "Ollama model to ask (default from config)")
	cmd.Flags().StringVar(&opts.save, "save", "", "write the raw model reply to this file")
	cmd.Flags().BoolVar(&opts.exec, "run", false, "execute the plan once it validates")
	cmd.Flags().BoolVarP(&opts.run.yes, "yes", "y", false, "with --run, approve every step without prompting")
	cmd.Flags().BoolVar(&opts.run.noJournal, "no-journal", false, "with --run, do not journal the run")
	return cmd
}

// generatePlan asks Ollama for a plan and validates it. Like loadPlan, a
// plan that fails validation is returned together with the error.
func (a *app) generatePlan(ctx context.Context, goal string, opts generateOptions) (*plan.Plan, error) {
	cfg := a.cfg.OllamaConfig()
	if opts.model != "" {
		cfg.Model = opts.model
	}
	client := ollama.NewClient(cfg, a.logger)
	planner := plan.NewPlanner(a.cfg.PlannerSettings())

	a.logger.Info("requesting plan", "model", cfg.Model, "url", cfg.BaseURL)
	reply, err := client.GenerateCompletion(ctx, planner.GeneratePrompt(goal))
	if err != nil {
		return nil, NewCommandError("generate", "ask "+cfg.Model, err)
	}
	if opts.save != "" {
		if err := util.AtomicWriteFile(opts.save, []byte(reply), 0600); err != nil {
			return nil, NewCommandError("generate", "save reply", err)
		}
	}

	p, err := planner.ParsePlan(reply)
	if err != nil {
		a.logger.Debug("unparseable reply", "reply", util.TruncateRunes(reply, 200))
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	p.Metadata["goal"] = goal
	p.Metadata["model"] = cfg.Model

	if err := planner.ValidatePlan(p); err != nil {
		a.logger.Warn("plan failed validation", "plan_id", p.ID, "error", err)
		return p, err
	}
	return p, nil
}
