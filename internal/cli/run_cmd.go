// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/storage"
	"github.com/jeranaias/rigrun-agent/internal/tasks"
	"github.com/jeranaias/rigrun-agent/internal/tools"
)

type runOptions struct {
	yes       bool
	goal      string
	noJournal bool
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Execute a plan step by step",
		Long: `Parse and validate a plan, then execute it in dependency order.

Tools run in dry-run mode: each call reports what it would have done.
Steps that need approval stop the run:
  --yes             approve every step
  interactive TTY   prompt per step (y approves, anything else is the rejection reason)
  otherwise         reject, cancelling the run

Every event is printed and, when the journal is enabled, stored so the run can
be inspected later with 'rigrun-agent journal'.

Examples:
  rigrun-agent run plan.txt
  rigrun-agent run --yes --goal "rename the package" plan.txt
  llm < prompt.txt | rigrun-agent run --yes -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPlan(cmd, args[0])
			if err != nil {
				if p != nil && !a.jsonMode {
					renderValidation(cmd.OutOrStdout(), err)
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), "run", nil, err)
				}
				return err
			}
			approver := selectApprover(opts.yes, cmd.InOrStdin(), cmd.OutOrStdout())
			return a.runPlan(cmd.Context(), cmd.OutOrStdout(), p, approver, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "approve every step without prompting")
	cmd.Flags().StringVar(&opts.goal, "goal", "", "goal recorded with the run in the journal")
	cmd.Flags().BoolVar(&opts.noJournal, "no-journal", false, "do not journal this run")
	return cmd
}

// runSummary is the --json payload of the run command.
type runSummary struct {
	RunID  string              `json:"run_id,omitempty"`
	State  agent.ExecutorState `json:"state"`
	Result *agent.PlanResult   `json:"result,omitempty"`
	Events []agent.Event       `json:"events"`
}

// runPlan executes p with a dry-run tool registry and drives approvals until
// the run stops.
func (a *app) runPlan(ctx context.Context, out io.Writer, p *plan.Plan, approver Approver, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	journal, runID, err := a.openJournal(ctx, p, opts)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	// Events emitted after an interrupt are still journaled.
	journalCtx := context.WithoutCancel(ctx)

	width := GetTerminalWidth()
	var collected []agent.Event
	pump := newEventPump(func(ev agent.Event) {
		if journal != nil {
			if err := journal.Record(journalCtx, runID, ev); err != nil {
				a.logger.Warn("failed to journal event", "run_id", runID, "type", ev.Type, "error", err)
			}
		}
		if a.jsonMode {
			collected = append(collected, ev)
			return
		}
		fmt.Fprintln(out, renderEvent(ev, width))
	})

	exec := agent.NewExecutor(a.cfg.ExecutorConfig(),
		agent.WithToolExecutor(a.toolExecutor()),
		agent.WithEventSink(pump),
		agent.WithLogger(a.logger.With(slog.String("plan_id", p.ID))),
	)
	if !a.jsonMode {
		fmt.Fprintln(out, TitleStyle.Render("Running: "+p.Title))
		fmt.Fprintln(out, RenderSeparator(min(width, 70)))
	}

	// From here until pump.Close, out belongs to the pump goroutine except
	// while an approver runs after a flush.
	exec.LoadPlan(p)

	result, runErr := drive(ctx, exec, approver, pump.Flush)
	pump.Close()

	state := exec.State()
	if runErr == nil {
		runErr = stateError(state, result)
	}

	if a.jsonMode {
		return writeJSON(out, "run", runSummary{
			RunID:  runID,
			State:  state,
			Result: result,
			Events: collected,
		}, runErr)
	}

	renderResult(out, result, state)
	fmt.Fprintln(out)
	fmt.Fprintln(out, SectionStyle.Render("Tasks"))
	exec.Tree(func(tree *tasks.TaskTree) { renderTree(out, tree, width) })
	if runID != "" {
		fmt.Fprintf(out, "\n%s %s\n", LabelStyle.Render("journaled as run"), runID)
	}
	return runErr
}

// drive starts the executor and answers approval gates until it stops in a
// state other than WaitingApproval. flush is called before each approval
// decision so every event emitted so far has been handled.
func drive(ctx context.Context, exec *agent.Executor, approver Approver, flush func()) (*agent.PlanResult, error) {
	result, err := exec.Start(ctx)
	for err == nil && exec.State() == agent.StateWaitingApproval {
		flush()

		step, ok := pendingStep(exec)
		if !ok {
			return result, agent.ErrNoRunnableStep
		}

		decision, derr := approver.Decide(step)
		if derr != nil {
			if rerr := exec.Reject(derr.Error()); rerr != nil {
				return result, errors.Join(derr, rerr)
			}
			return result, derr
		}
		if !decision.Approved {
			if rerr := exec.Reject(decision.Reason); rerr != nil {
				return result, rerr
			}
			return result, &RunEndedError{State: agent.StateCancelled, Reason: "rejected: " + decision.Reason}
		}

		next, aerr := exec.Approve(ctx)
		if next != nil {
			result = next
		}
		err = aerr
	}
	return result, err
}

// pendingStep returns the step an executor waiting for approval stopped at.
func pendingStep(exec *agent.Executor) (plan.PlanStep, bool) {
	p := exec.Plan()
	if p == nil {
		return plan.PlanStep{}, false
	}
	runnable := p.RunnableSteps(exec.CompletedSteps())
	if len(runnable) == 0 {
		return plan.PlanStep{}, false
	}
	return runnable[0], true
}

// stateError turns a run that stopped short of Completed into an error.
func stateError(state agent.ExecutorState, result *agent.PlanResult) error {
	switch state {
	case agent.StateFailed, agent.StateCancelled:
		reason := ""
		if result != nil {
			reason = result.Error
		}
		return &RunEndedError{State: state, Reason: reason}
	default:
		return nil
	}
}

// toolExecutor builds the dry-run tool executor. Configured tools without a
// builtin are registered as medium-risk dry-run tools.
func (a *app) toolExecutor() *tools.RegistryExecutor {
	registry := tools.NewDryRunRegistry()
	for _, name := range a.cfg.Planner.AvailableTools {
		if registry.Get(name) == nil {
			registry.Register(&tools.Tool{
				Name:        name,
				Description: "configured tool",
				RiskLevel:   tools.RiskMedium,
				Handler:     tools.DryRunHandler{Name: name},
			})
		}
	}
	a.cfg.ApplyApprovalOverrides(registry)
	return tools.NewRegistryExecutor(registry, a.cfg.ToolExecutorOptions()...)
}

func (a *app) openJournal(ctx context.Context, p *plan.Plan, opts runOptions) (*storage.Journal, string, error) {
	if opts.noJournal || !a.cfg.Journal.Enabled {
		return nil, "", nil
	}
	journal, err := storage.OpenJournal(a.cfg.Journal.Path)
	if err != nil {
		return nil, "", NewCommandError("run", "open journal", err)
	}
	runID, err := journal.BeginRun(ctx, p, opts.goal)
	if err != nil {
		journal.Close()
		return nil, "", NewCommandError("run", "begin run", err)
	}
	a.logger.Info("journaling run", "run_id", runID, "path", a.cfg.Journal.Path)
	return journal, runID, nil
}

// =============================================================================
// EVENT PUMP
// =============================================================================

// eventPump feeds executor events through an agent.EventStream to handle on
// a single goroutine. Flush waits until every event sent so far is handled.
type eventPump struct {
	stream  *agent.EventStream
	handled sync.WaitGroup
	done    chan struct{}
}

func newEventPump(handle func(agent.Event)) *eventPump {
	p := &eventPump{
		stream: agent.NewEventStream(),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for ev := range p.stream.Events() {
			handle(ev)
			p.handled.Done()
		}
	}()
	return p
}

// Send implements agent.EventSink.
func (p *eventPump) Send(ev agent.Event) {
	p.handled.Add(1)
	p.stream.Send(ev)
}

// Flush blocks until every sent event has been handled.
func (p *eventPump) Flush() {
	p.handled.Wait()
}

// Close drains the stream and stops the handler goroutine.
func (p *eventPump) Close() {
	p.stream.Close()
	<-p.done
}
