// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Approval decisions for steps that stop a run.
//
// The run command picks one approver:
//  1. --yes approves every step without prompting
//  2. If stdin is a terminal, the user is prompted per step
//  3. Otherwise every step is rejected; a run cannot wait on nobody

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-agent/internal/plan"
)

// Decision is the outcome of an approval request.
type Decision struct {
	Approved bool

	// Reason explains a rejection
	Reason string
}

// Approver decides whether a step waiting for approval may run.
type Approver interface {
	Decide(step plan.PlanStep) (Decision, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(step plan.PlanStep) (Decision, error)

// Decide calls f.
func (f ApproverFunc) Decide(step plan.PlanStep) (Decision, error) {
	return f(step)
}

// AutoApprover approves every step.
func AutoApprover() Approver {
	return ApproverFunc(func(plan.PlanStep) (Decision, error) {
		return Decision{Approved: true}, nil
	})
}

// DenyApprover rejects every step with reason.
func DenyApprover(reason string) Approver {
	return ApproverFunc(func(plan.PlanStep) (Decision, error) {
		return Decision{Reason: reason}, nil
	})
}

// NonInteractiveReason is the rejection reason used when nobody can answer.
const NonInteractiveReason = "approval required but stdin is not a terminal; rerun with --yes"

// PromptApprover asks on out and reads one answer line per step from in.
//
// "y" or "yes" approves. An empty answer, "n" or "no" rejects with
// "declined"; any other answer rejects with the answer as the reason. End of
// input rejects with "no response".
func PromptApprover(in io.Reader, out io.Writer) Approver {
	reader := bufio.NewReader(in)
	return ApproverFunc(func(step plan.PlanStep) (Decision, error) {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s step %d: %s\n", WarningStyle.Render("Approval required for"), step.StepNumber, step.Title)
		if step.Description != "" {
			fmt.Fprintf(out, "  %s\n", step.Description)
		}
		fmt.Fprintf(out, "  %s %d/%d", LabelStyle.Render("risk"), step.RiskLevel, plan.MaxRiskLevel)
		if len(step.Tools) > 0 {
			fmt.Fprintf(out, "  %s %s", LabelStyle.Render("tools"), strings.Join(step.Tools, ", "))
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, "Approve? [y/N or rejection reason]: ")

		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Decision{}, fmt.Errorf("failed to read approval: %w", err)
		}
		if errors.Is(err, io.EOF) && input == "" {
			fmt.Fprintln(out)
			return Decision{Reason: "no response"}, nil
		}

		answer := strings.TrimSpace(input)
		switch strings.ToLower(answer) {
		case "y", "yes":
			return Decision{Approved: true}, nil
		case "", "n", "no":
			return Decision{Reason: "declined"}, nil
		default:
			return Decision{Reason: answer}, nil
		}
	})
}

// selectApprover returns the approver for the run command.
func selectApprover(yes bool, in io.Reader, out io.Writer) Approver {
	switch {
	case yes:
		return AutoApprover()
	case stdinIsTerminal():
		return PromptApprover(in, out)
	default:
		return DenyApprover(NonInteractiveReason)
	}
}
