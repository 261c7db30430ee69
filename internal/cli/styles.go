// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/tasks"
)

// init configures the lipgloss color profile from terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// SectionStyle is used for section headers within commands
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")) // White

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	// SuccessStyle is used for success messages and completed work
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// ErrorStyle is used for error messages and failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for warnings and approval gates
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray

	// InfoStyle is used for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")) // Blue
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// RenderSeparator renders a horizontal separator line of the given width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 70
	}
	return SeparatorStyle.Render(strings.Repeat("=", width))
}

// StateStyle returns the style for an executor state.
func StateStyle(s agent.ExecutorState) lipgloss.Style {
	switch s {
	case agent.StateCompleted:
		return SuccessStyle
	case agent.StateFailed:
		return ErrorStyle
	case agent.StatePaused, agent.StateWaitingApproval, agent.StateCancelled:
		return WarningStyle
	case agent.StateRunning:
		return InfoStyle
	default:
		return DimStyle
	}
}

// StatusIcon returns the marker drawn before a task in the tree view.
func StatusIcon(s tasks.TaskStatus) string {
	switch s {
	case tasks.StatusCompleted:
		return SuccessStyle.Render("[x]")
	case tasks.StatusFailed:
		return ErrorStyle.Render("[!]")
	case tasks.StatusRunning:
		return InfoStyle.Render("[>]")
	case tasks.StatusWaitingApproval:
		return WarningStyle.Render("[?]")
	case tasks.StatusCancelled, tasks.StatusSkipped:
		return DimStyle.Render("[-]")
	case tasks.StatusPaused:
		return WarningStyle.Render("[=]")
	default:
		return DimStyle.Render("[ ]")
	}
}
