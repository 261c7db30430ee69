// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/ollama"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/storage"
)

const gatedPlan = `Sure, here is the plan:
{
  "title": "Ship the config change",
  "description": "Update and verify the config",
  "steps": [
    {"step_number": 1, "title": "Read config", "tools": ["read_file"], "risk_level": 1},
    {"step_number": 2, "title": "Write config", "tools": ["write_file"], "depends_on": [1],
     "risk_level": 6, "requires_approval": true},
    {"step_number": 3, "title": "Search usages", "tools": ["search_content"], "depends_on": [2],
     "risk_level": 2, "requires_approval": false}
  ]
}
Let me know if you want changes.`

const invalidPlan = `{"title": "Bad", "steps": [
  {"step_number": 1, "title": "Deploy", "tools": ["deploy"], "depends_on": [1, 9], "risk_level": 1}
]}`

type testEnv struct {
	dir        string
	configPath string
	journal    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"RIGRUN_AGENT_AUTO_APPROVE", "RIGRUN_AGENT_APPROVE_THRESHOLD", "RIGRUN_AGENT_MAX_STEPS",
		"RIGRUN_AGENT_TOOLS", "RIGRUN_AGENT_LOG_LEVEL", "RIGRUN_AGENT_LOG_FORMAT", "RIGRUN_AGENT_JOURNAL",
		"RIGRUN_AGENT_MODEL", "RIGRUN_AGENT_LOCAL_ONLY", "OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}

	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		journal:    filepath.Join(dir, "journal.db"),
	}
	body := fmt.Sprintf("[logging]\nlevel = \"error\"\n\n[journal]\nenabled = true\npath = %q\n", env.journal)
	require.NoError(t, os.WriteFile(env.configPath, []byte(body), 0600))
	return env
}

// useOllama points the [llm] section at a fake server that answers every
// generate request with reply.
func (e *testEnv) useOllama(t *testing.T, status int, reply string) func() ollama.GenerateRequest {
	t.Helper()
	var (
		mu  sync.Mutex
		got ollama.GenerateRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollama.GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		got = req
		mu.Unlock()
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Model: req.Model, Response: reply, Done: true})
	}))
	t.Cleanup(srv.Close)

	f, err := os.OpenFile(e.configPath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	defer f.Close()
	_, err = fmt.Fprintf(f, "\n[llm]\nurl = %q\nmodel = \"tiny\"\nmax_retries = 0\n", srv.URL)
	require.NoError(t, err)
	return func() ollama.GenerateRequest {
		mu.Lock()
		defer mu.Unlock()
		return got
	}
}

func (e *testEnv) writePlan(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(e.dir, "plan.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0600))
	return path
}

// run executes the root command and returns stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setTerminal(t *testing.T, interactive bool) {
	t.Helper()
	prev := stdinIsTerminal
	stdinIsTerminal = func() bool { return interactive }
	t.Cleanup(func() { stdinIsTerminal = prev })
}

func TestPromptCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "prompt", "rename", "the", "package")
	require.NoError(t, err)
	assert.Contains(t, out, "rename the package")
	assert.Contains(t, out, "read_file")
}

func TestPlanCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "plan", env.writePlan(t, gatedPlan))
	require.NoError(t, err)
	assert.Contains(t, out, "Ship the config change")
	assert.Contains(t, out, "Write config")
	assert.Contains(t, out, "required")
	assert.Contains(t, out, "1 -> 2 -> 3")
	assert.Contains(t, out, "Tasks")
}

func TestPlanCommand_Stdin(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, gatedPlan, "plan", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Search usages")
}

func TestPlanCommand_Invalid(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "plan", env.writePlan(t, invalidPlan))
	require.Error(t, err)
	assert.Equal(t, ExitPlanError, GetExitCode(err))
	assert.Contains(t, out, "Plan is invalid (3 problems)")
	assert.Contains(t, out, "unknown tool: deploy")
}

func TestPlanCommand_Unparseable(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "plan", env.writePlan(t, "no plan here"))
	require.ErrorIs(t, err, plan.ErrNoJSONFound)
	assert.Equal(t, ExitPlanError, GetExitCode(err))
}

func TestPlanCommand_JSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--json", "plan", env.writePlan(t, gatedPlan))
	require.NoError(t, err)

	var resp struct {
		Success bool     `json:"success"`
		Data    planView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []int{1, 2, 3}, resp.Data.CriticalPath)
	require.Len(t, resp.Data.Steps, 3)
	assert.True(t, resp.Data.Steps[1].RequiresApproval)
}

func TestRunCommand_AutoApproveAndJournal(t *testing.T) {
	env := newTestEnv(t)
	setTerminal(t, false)

	out, err := env.run(t, "", "run", "--yes", "--goal", "ship it", env.writePlan(t, gatedPlan))
	require.NoError(t, err)
	assert.Contains(t, out, "step 2 awaits approval")
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "journaled as run")

	journal, err := storage.OpenJournal(env.journal)
	require.NoError(t, err)
	defer journal.Close()

	runs, err := journal.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, agent.StateCompleted, runs[0].State)
	assert.Equal(t, "ship it", runs[0].Goal)
	assert.True(t, runs[0].Success)

	approvals, err := journal.Events(context.Background(), runs[0].ID, agent.EventApprovalRequired)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "2", approvals[0].TaskID)

	// journal command lists and replays the run
	listing, err := env.run(t, "", "journal")
	require.NoError(t, err)
	assert.Contains(t, listing, runs[0].ID[:8])

	replay, err := env.run(t, "", "journal", runs[0].ID[:8], "--type", "task_started")
	require.NoError(t, err)
	assert.Contains(t, replay, "step 1 started")
	assert.Contains(t, replay, "step 3 started")
	assert.NotContains(t, replay, "awaits approval")

	md, err := env.run(t, "", "journal", "export", runs[0].ID[:8], "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, md, "# Ship the config change")
	assert.Contains(t, md, "- **Goal**: ship it")
	assert.Contains(t, md, "step 2 awaits approval: Write config")

	target := filepath.Join(env.dir, "reports", "run.html")
	msg, err := env.run(t, "", "journal", "export", runs[0].ID, "--format", "html", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, msg, "Exported")
	page, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Ship the config change</title>")
}

func TestRunCommand_NonInteractiveRejects(t *testing.T) {
	env := newTestEnv(t)
	setTerminal(t, false)

	out, err := env.run(t, "", "run", env.writePlan(t, gatedPlan))
	require.Error(t, err)
	assert.Equal(t, ExitRunCancelled, GetExitCode(err))
	assert.Contains(t, err.Error(), NonInteractiveReason)
	assert.Contains(t, out, "approval failed: User rejected")
	assert.Contains(t, out, "Cancelled")
}

func TestRunCommand_InteractivePrompt(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		wantErr   bool
		wantState string
	}{
		{name: "approve", answer: "y\n", wantState: "Completed"},
		{name: "reject with reason", answer: "touches prod\n", wantErr: true, wantState: "Cancelled"},
		{name: "end of input", answer: "", wantErr: true, wantState: "Cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			setTerminal(t, true)

			out, err := env.run(t, tt.answer, "run", "--no-journal", env.writePlan(t, gatedPlan))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out, "Approval required for step 2: Write config")
			assert.Contains(t, out, tt.wantState)
			assert.NotContains(t, out, "journaled as run")
		})
	}
}

func TestRunCommand_JSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--json", "run", "--yes", "--no-journal", env.writePlan(t, gatedPlan))
	require.NoError(t, err)

	var resp struct {
		Success bool       `json:"success"`
		Data    runSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, agent.StateCompleted, resp.Data.State)
	require.NotNil(t, resp.Data.Result)
	assert.Equal(t, 3, resp.Data.Result.CompletedSteps)
	require.NotEmpty(t, resp.Data.Events)
	assert.Equal(t, agent.EventPlanCompleted, resp.Data.Events[len(resp.Data.Events)-1].Type)
}

func TestRunCommand_InvalidPlan(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "run", "--yes", env.writePlan(t, invalidPlan))
	require.Error(t, err)
	assert.Equal(t, ExitPlanError, GetExitCode(err))
}

func TestJournalCommand_UnknownRun(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "journal", "does-not-exist")
	require.ErrorIs(t, err, storage.ErrRunNotFound)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[agent]")
	assert.Contains(t, out, "auto_approve_threshold = 3")
	assert.Contains(t, out, env.journal)

	out, err = env.run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, env.configPath, strings.TrimSpace(out))

	_, err = env.run(t, "", "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = env.run(t, "", "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	// the overwritten file holds defaults, so the journal is off again
	out, err = env.run(t, "", "--json", "config", "show")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Journal struct {
				Enabled bool
			}
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Journal.Enabled)
}

func TestGenerateCommand(t *testing.T) {
	env := newTestEnv(t)
	req := env.useOllama(t, http.StatusOK, gatedPlan)
	saved := filepath.Join(env.dir, "reply.txt")

	out, err := env.run(t, "", "generate", "--save", saved, "ship", "the", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Ship the config change")
	assert.Contains(t, out, "1 -> 2 -> 3")
	assert.Equal(t, "tiny", req().Model)
	assert.Contains(t, req().Prompt, "Goal: ship the config")

	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, gatedPlan, string(data))
}

func TestGenerateCommand_ModelFlagAndRun(t *testing.T) {
	env := newTestEnv(t)
	req := env.useOllama(t, http.StatusOK, gatedPlan)

	out, err := env.run(t, "", "generate", "--model", "big", "--run", "--yes", "ship it")
	require.NoError(t, err)
	assert.Equal(t, "big", req().Model)
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "journaled as run")

	journal, err := storage.OpenJournal(env.journal)
	require.NoError(t, err)
	defer journal.Close()
	runs, err := journal.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ship it", runs[0].Goal)
}

func TestGenerateCommand_InvalidReplyIsNotRun(t *testing.T) {
	env := newTestEnv(t)
	env.useOllama(t, http.StatusOK, invalidPlan)

	out, err := env.run(t, "", "generate", "--run", "--yes", "deploy")
	require.Error(t, err)
	assert.Equal(t, ExitPlanError, GetExitCode(err))
	assert.Contains(t, out, "Plan is invalid")
	assert.NotContains(t, out, "Running:")
}

func TestGenerateCommand_ModelMissing(t *testing.T) {
	env := newTestEnv(t)
	env.useOllama(t, http.StatusNotFound, "")

	_, err := env.run(t, "", "generate", "anything")
	require.Error(t, err)
	assert.True(t, ollama.IsModelNotFound(err))
	assert.Equal(t, ExitLLMUnavailable, GetExitCode(err))
}
