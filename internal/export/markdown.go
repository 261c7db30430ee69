// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-agent/internal/agent"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports run reports to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a report to Markdown format.
func (e *MarkdownExporter) Export(r *Report) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	run := r.Run

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(run.Title))
		fmt.Fprintf(&sb, "run: %s\n", run.ID)
		fmt.Fprintf(&sb, "plan: %s\n", run.PlanID)
		fmt.Fprintf(&sb, "state: %s\n", run.State)
		fmt.Fprintf(&sb, "started: %s\n", run.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "steps: %d/%d\n", run.CompletedSteps, run.TotalSteps)
		fmt.Fprintf(&sb, "events: %d\n", len(r.Events))
		sb.WriteString("generator: rigrun-agent\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(run.Title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Run Information\n\n")
		fmt.Fprintf(&sb, "- **Run**: `%s`\n", run.ID)
		if run.Goal != "" {
			fmt.Fprintf(&sb, "- **Goal**: %s\n", escapeMarkdown(run.Goal))
		}
		fmt.Fprintf(&sb, "- **Outcome**: %s\n", outcome(run))
		fmt.Fprintf(&sb, "- **Steps**: %d/%d\n", run.CompletedSteps, run.TotalSteps)
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(run.StartedAt))
		if run.HasResult() {
			fmt.Fprintf(&sb, "- **Last Result**: %s\n", formatTimestamp(run.FinishedAt))
			fmt.Fprintf(&sb, "- **Duration**: %s\n", formatDuration(run.DurationMs))
		}
		if run.Error != "" {
			fmt.Fprintf(&sb, "- **Error**: %s\n", escapeMarkdown(run.Error))
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Events\n\n")
	if len(r.Events) == 0 {
		sb.WriteString("*No events recorded.*\n")
	} else {
		if e.options.IncludeTimestamps {
			sb.WriteString("| Time | Event | Detail |\n|---|---|---|\n")
		} else {
			sb.WriteString("| Event | Detail |\n|---|---|\n")
		}
		for _, ev := range r.Events {
			detail := escapeTableCell(ev.Describe())
			if ev.IsFailure() {
				detail = "**" + detail + "**"
			}
			if e.options.IncludeTimestamps {
				fmt.Fprintf(&sb, "| %s | `%s` | %s |\n", formatShortTimestamp(ev.Time), ev.Type, detail)
			} else {
				fmt.Fprintf(&sb, "| `%s` | %s |\n", ev.Type, detail)
			}
		}
	}

	if outputs := stepOutputs(r.Events); len(outputs) > 0 {
		sb.WriteString("\n## Step Output\n\n")
		for _, ev := range outputs {
			fmt.Fprintf(&sb, "### Step %s\n\n", ev.TaskID)
			sb.WriteString(fence(ev.Output))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from rigrun-agent on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// stepOutputs returns the TaskCompleted events that carry output.
func stepOutputs(events []agent.Event) []agent.Event {
	var out []agent.Event
	for _, ev := range events {
		if ev.Type == agent.EventTaskCompleted && strings.TrimSpace(ev.Output) != "" {
			out = append(out, ev)
		}
	}
	return out
}

// fence wraps s in a code fence longer than any backtick run inside it.
func fence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	marker := strings.Repeat("`", max(3, longest+1))
	return marker + "\n" + strings.TrimRight(s, "\n") + "\n" + marker
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeTableCell keeps text on one table row.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
