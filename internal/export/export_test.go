// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/storage"
	"github.com/jeranaias/rigrun-agent/internal/tools"
)

func sampleReport() *Report {
	start := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	return &Report{
		Run: &storage.RunSummary{
			ID:             "3f2a9c1e-0000-4000-8000-000000000000",
			PlanID:         "plan-1",
			Title:          "Fix <build> | pipeline",
			Goal:           "make CI green",
			State:          agent.StateFailed,
			TotalSteps:     2,
			CompletedSteps: 1,
			Error:          "step 2: tool run_command failed",
			DurationMs:     1500,
			StartedAt:      start,
			FinishedAt:     start.Add(1500 * time.Millisecond),
		},
		Events: []agent.Event{
			{Type: agent.EventStateChanged, Time: start, State: agent.StateRunning},
			{Type: agent.EventTaskCompleted, Time: start, TaskID: "1", Output: "dry run: read_file\nsecond line"},
			{Type: agent.EventToolExecutionCompleted, Time: start, ToolName: "run_command",
				ToolResult: &tools.ToolResult{Error: "exit 1 | boom"}},
			{Type: agent.EventPlanCompleted, Time: start,
				Result: &agent.PlanResult{CompletedSteps: 1, TotalSteps: 2, Error: "step 2 failed"}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, "Markdown": FormatMarkdown, "htm": FormatHTML, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleReport())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: \"Fix <build> | pipeline\"\n"))
	assert.Contains(t, md, "# Fix <build> | pipeline")
	assert.Contains(t, md, "- **Outcome**: failed")
	assert.Contains(t, md, "- **Duration**: 1.50s")
	assert.Contains(t, md, "| 09:30:00 | `task_completed` | step 1 completed: dry run: read_file |")
	assert.Contains(t, md, "**tool run_command failed: exit 1 \\| boom**")
	assert.Contains(t, md, "### Step 1\n\n```\ndry run: read_file\nsecond line\n```")
}

func TestMarkdownExporter_NoMetadata(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(sampleReport())
	require.NoError(t, err)
	md := string(out)

	assert.False(t, strings.HasPrefix(md, "---"))
	assert.NotContains(t, md, "Run Information")
	assert.Contains(t, md, "| Event | Detail |")
}

func TestHTMLExporter(t *testing.T) {
	out, err := NewHTMLExporter(&Options{IncludeMetadata: true, Theme: "light"}).Export(sampleReport())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<body class="light-theme">`)
	assert.Contains(t, page, "<title>Fix &lt;build&gt; | pipeline</title>")
	assert.Contains(t, page, "state-failed")
	assert.Contains(t, page, `class="event tool-execution-completed failure"`)
	assert.Contains(t, page, "<pre><code>dry run: read_file\nsecond line</code></pre>")
	assert.NotContains(t, page, "<build>")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleReport())
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, agent.StateFailed, decoded.Run.State)
	require.Len(t, decoded.Events, 4)
	assert.Equal(t, agent.EventPlanCompleted, decoded.Events[3].Type)

	empty := sampleReport()
	empty.Events = nil
	out, err = NewJSONExporter(nil).Export(empty)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"events": []`)
}

func TestExportRejectsEmptyReport(t *testing.T) {
	for _, format := range []Format{FormatMarkdown, FormatHTML, FormatJSON} {
		exporter, err := New(format, nil)
		require.NoError(t, err)

		_, err = exporter.Export(&Report{})
		assert.Error(t, err, format)
		_, err = exporter.Export(&Report{Run: &storage.RunSummary{ID: "x"}})
		assert.Error(t, err, format)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	path, err := WriteFile(r, FormatHTML, "", &Options{OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_Fix_-build-_-_pipeline_3f2a9c1e.html"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	explicit := filepath.Join(dir, "nested", "report.md")
	path, err = WriteFile(r, FormatMarkdown, explicit, nil)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
	data, err := os.ReadFile(explicit)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Events")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "plan", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("é", 80))), 50)
}
