// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports run reports to a standalone HTML page with embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a report to HTML format.
func (e *HTMLExporter) Export(r *Report) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(r.Run.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"rigrun-agent\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", r.Run.StartedAt.Format(time.RFC3339))
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(r.Run))
	} else {
		fmt.Fprintf(&sb, "        <header class=\"header\"><h1>%s</h1></header>\n", html.EscapeString(r.Run.Title))
	}

	sb.WriteString("        <main class=\"events\">\n")
	if len(r.Events) == 0 {
		sb.WriteString("            <p class=\"empty\">No events recorded.</p>\n")
	}
	for _, ev := range r.Events {
		sb.WriteString(e.renderEvent(ev))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>rigrun-agent</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(run *storage.RunSummary) string {
	var sb strings.Builder
	meta := func(label, value string) {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>%s:</strong> %s</span>\n",
			label, html.EscapeString(value))
	}

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(run.Title))
	if run.Goal != "" {
		fmt.Fprintf(&sb, "            <p class=\"goal\">%s</p>\n", html.EscapeString(run.Goal))
	}
	sb.WriteString("            <div class=\"metadata\">\n")
	meta("Run", run.ID)
	fmt.Fprintf(&sb, "                <span class=\"meta-item state state-%s\"><strong>State:</strong> %s</span>\n",
		strings.ToLower(run.State.String()), html.EscapeString(outcome(run)))
	meta("Steps", fmt.Sprintf("%d/%d", run.CompletedSteps, run.TotalSteps))
	meta("Started", formatTimestamp(run.StartedAt))
	if run.HasResult() {
		meta("Duration", formatDuration(run.DurationMs))
	}
	sb.WriteString("            </div>\n")
	if run.Error != "" {
		fmt.Fprintf(&sb, "            <p class=\"error\">%s</p>\n", html.EscapeString(run.Error))
	}
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderEvent(ev agent.Event) string {
	class := strings.ReplaceAll(ev.Type.String(), "_", "-")
	if ev.IsFailure() {
		class += " failure"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "            <div class=\"event %s\">\n", class)
	if e.options.IncludeTimestamps {
		fmt.Fprintf(&sb, "                <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(ev.Time))
	}
	fmt.Fprintf(&sb, "                <span class=\"detail\">%s</span>\n", html.EscapeString(ev.Describe()))
	if ev.Type == agent.EventTaskCompleted && strings.Contains(ev.Output, "\n") {
		fmt.Fprintf(&sb, "                <pre><code>%s</code></pre>\n", html.EscapeString(ev.Output))
	}
	sb.WriteString("            </div>\n")
	return sb.String()
}

const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --accent-green: #9ece6a;
            --accent-yellow: #e0af68;
            --accent-red: #f7768e;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --accent-green: #22863a;
            --accent-yellow: #b08800;
            --accent-red: #d73a49;
        }

        body {
            font-family: var(--font-sans);
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-secondary);
            border-radius: 12px;
            overflow: hidden;
        }

        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 28px; margin-bottom: 12px; }
        .goal { margin-bottom: 12px; font-style: italic; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; }
        .state-completed { color: var(--accent-green); }
        .state-failed, .state-cancelled, .error { color: var(--accent-red); }

        .events { padding: 16px 32px; }
        .event {
            font-family: var(--font-mono);
            font-size: 14px;
            padding: 6px 0;
            border-bottom: 1px solid var(--border-color);
        }
        .event .timestamp { color: var(--text-muted); margin-right: 12px; }
        .event.approval-required { color: var(--accent-yellow); }
        .event.task-completed { color: var(--accent-green); }
        .event.failure { color: var(--accent-red); font-weight: 600; }
        .event pre { margin-top: 6px; padding: 8px; background: var(--bg-primary); overflow-x: auto; }
        .empty { color: var(--text-muted); }

        .footer { padding: 16px 32px; font-size: 12px; color: var(--text-muted); }
    </style>
`
