// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/storage"
	"github.com/jeranaias/rigrun-agent/internal/tasks"
	"github.com/jeranaias/rigrun-agent/internal/util"
)

// =============================================================================
// PLAN
// =============================================================================

// Plan table column widths.
const (
	colNumber   = 4
	colTitle    = 32
	colRisk     = 6
	colApproval = 10
	colDepends  = 12
)

// renderPlan writes the plan header and a step table fitted to width.
func renderPlan(w io.Writer, p *plan.Plan, width int) {
	fmt.Fprintln(w, TitleStyle.Render(p.Title))
	if p.Description != "" {
		fmt.Fprintln(w, util.TruncateWidth(p.Description, width))
	}
	fmt.Fprintln(w)

	toolsWidth := max(width-colNumber-colTitle-colRisk-colApproval-colDepends, 10)
	header := util.PadWidth("#", colNumber) + util.PadWidth("TITLE", colTitle) +
		util.PadWidth("RISK", colRisk) + util.PadWidth("APPROVAL", colApproval) +
		util.PadWidth("DEPENDS", colDepends) + "TOOLS"
	fmt.Fprintln(w, SectionStyle.Render(header))

	for _, s := range p.Steps {
		approval := "auto"
		if s.RequiresApproval {
			approval = "required"
		}
		line := util.PadWidth(strconv.Itoa(s.StepNumber), colNumber) +
			util.PadWidth(s.Title, colTitle) +
			util.PadWidth(strconv.Itoa(s.RiskLevel), colRisk) +
			util.PadWidth(approval, colApproval) +
			util.PadWidth(joinInts(s.DependsOn, ","), colDepends) +
			util.TruncateWidth(strings.Join(s.Tools, ", "), toolsWidth)
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("critical path"), joinInts(p.CriticalPath(), " -> "))
	if total, ok := p.TotalEstimatedTokens(); ok {
		fmt.Fprintf(w, "%s %d\n", LabelStyle.Render("estimated tokens"), total)
	}
}

func joinInts(ns []int, sep string) string {
	if len(ns) == 0 {
		return "-"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}

// =============================================================================
// TASK TREE
// =============================================================================

// renderTree draws every root of tree with its children indented below it.
func renderTree(w io.Writer, tree *tasks.TaskTree, width int) {
	for _, root := range tree.Roots() {
		renderNode(w, tree, root.ID, "", "", width)
	}
}

func renderNode(w io.Writer, tree *tasks.TaskTree, id, linePrefix, childPrefix string, width int) {
	node := tree.GetNode(id)
	if node == nil {
		return
	}
	task := node.Task
	status := DimStyle.Render(task.Status.String())
	room := width - util.StringWidth(linePrefix) - 4 - len(task.Status.String()) - 1
	fmt.Fprintf(w, "%s%s %s %s\n", linePrefix, StatusIcon(task.Status),
		util.TruncateWidth(task.Title, max(room, 8)), status)

	for i, childID := range node.Children {
		if i == len(node.Children)-1 {
			renderNode(w, tree, childID, childPrefix+"└── ", childPrefix+"    ", width)
		} else {
			renderNode(w, tree, childID, childPrefix+"├── ", childPrefix+"│   ", width)
		}
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// renderEvent formats one executor event as a single line.
func renderEvent(ev agent.Event, width int) string {
	style := InfoStyle
	switch {
	case ev.IsFailure():
		style = ErrorStyle
	case ev.Type == agent.EventStateChanged:
		style = StateStyle(ev.State)
	case ev.Type == agent.EventTaskCompleted:
		style = SuccessStyle
	case ev.Type == agent.EventApprovalRequired:
		style = WarningStyle
	case ev.Type == agent.EventProgress:
		style = DimStyle
	}

	stamp := ev.Time.Format("15:04:05")
	room := max(width-len(stamp)-1, 20)
	return DimStyle.Render(stamp) + " " + style.Render(util.TruncateWidth(ev.Describe(), room))
}

// =============================================================================
// RESULTS
// =============================================================================

// renderResult writes the summary of a finished Start/Approve call.
func renderResult(w io.Writer, result *agent.PlanResult, state agent.ExecutorState) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Result"))
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(util.PadWidth("state", 10)), StateStyle(state).Render(state.String()))
	if result == nil {
		return
	}
	fmt.Fprintf(w, "  %s %d/%d\n", LabelStyle.Render(util.PadWidth("steps", 10)), result.CompletedSteps, result.TotalSteps)
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(util.PadWidth("duration", 10)),
		(time.Duration(result.DurationMs) * time.Millisecond).String())
	if result.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(util.PadWidth("error", 10)), ErrorStyle.Render(result.Error))
	}
}

// renderRuns writes one line per journaled run.
func renderRuns(w io.Writer, runs []storage.RunSummary, width int) {
	if len(runs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No runs journaled."))
		return
	}
	header := util.PadWidth("RUN", 10) + util.PadWidth("STARTED", 21) +
		util.PadWidth("STATE", 17) + util.PadWidth("STEPS", 8) + "TITLE"
	fmt.Fprintln(w, SectionStyle.Render(header))

	titleWidth := max(width-10-21-17-8, 10)
	for _, r := range runs {
		steps := fmt.Sprintf("%d/%d", r.CompletedSteps, r.TotalSteps)
		line := util.PadWidth(shortID(r.ID), 10) +
			util.PadWidth(r.StartedAt.Format("2006-01-02 15:04:05"), 21) +
			StateStyle(r.State).Render(util.PadWidth(r.State.String(), 17)) +
			util.PadWidth(steps, 8) +
			util.TruncateWidth(r.Title, titleWidth)
		fmt.Fprintln(w, line)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
