// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/rigrun-agent/internal/logging"
	"github.com/jeranaias/rigrun-agent/internal/tools"
)

// clearEnv neutralizes RIGRUN_AGENT_* variables for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RIGRUN_AGENT_AUTO_APPROVE",
		"RIGRUN_AGENT_APPROVE_THRESHOLD",
		"RIGRUN_AGENT_MAX_STEPS",
		"RIGRUN_AGENT_TOOLS",
		"RIGRUN_AGENT_LOG_LEVEL",
		"RIGRUN_AGENT_LOG_FORMAT",
		"RIGRUN_AGENT_JOURNAL",
		"RIGRUN_AGENT_MODEL",
		"RIGRUN_AGENT_LOCAL_ONLY",
		"OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestConfig_Default verifies default values.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if !cfg.Agent.AutoApproveLowRisk {
		t.Error("Default config should auto-approve low risk steps")
	}
	if cfg.Agent.AutoApproveThreshold != 3 {
		t.Errorf("Expected threshold 3, got %d", cfg.Agent.AutoApproveThreshold)
	}
	if cfg.Planner.MaxSteps != 20 {
		t.Errorf("Expected max steps 20, got %d", cfg.Planner.MaxSteps)
	}
	if len(cfg.Planner.AvailableTools) != 6 {
		t.Errorf("Expected 6 default tools, got %v", cfg.Planner.AvailableTools)
	}
	if cfg.Journal.Enabled {
		t.Error("Journal should be disabled by default")
	}
	if !strings.HasSuffix(cfg.Journal.Path, "journal.db") {
		t.Errorf("Unexpected journal path %q", cfg.Journal.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{name: "valid default config", mutate: func(c *Config) {}},
		{
			name:    "threshold above 10",
			mutate:  func(c *Config) { c.Agent.AutoApproveThreshold = 11 },
			field:   "agent.auto_approve_threshold",
			wantErr: true,
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Agent.AutoApproveThreshold = -1 },
			field:   "agent.auto_approve_threshold",
			wantErr: true,
		},
		{
			name:    "zero max steps",
			mutate:  func(c *Config) { c.Planner.MaxSteps = 0 },
			field:   "planner.max_steps",
			wantErr: true,
		},
		{
			name:    "empty tool list",
			mutate:  func(c *Config) { c.Planner.AvailableTools = nil },
			field:   "planner.available_tools",
			wantErr: true,
		},
		{
			name:    "duplicate tool",
			mutate:  func(c *Config) { c.Planner.AvailableTools = []string{"read_file", "read_file"} },
			field:   "planner.available_tools",
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Tools.RateLimit = -1 },
			field:   "tools.rate_limit",
			wantErr: true,
		},
		{
			name:    "timeout too large",
			mutate:  func(c *Config) { c.Tools.TimeoutSecs = MaxToolTimeout + 1 },
			field:   "tools.timeout_secs",
			wantErr: true,
		},
		{
			name:    "approval override for unknown tool",
			mutate:  func(c *Config) { c.Tools.RequireApproval["deploy"] = true },
			field:   "tools.require_approval",
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			field:   "logging.level",
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			field:   "logging.format",
			wantErr: true,
		},
		{
			name: "enabled journal without path",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Path = " "
			},
			field:   "journal.path",
			wantErr: true,
		},
		{
			name:    "llm url without scheme",
			mutate:  func(c *Config) { c.LLM.URL = "localhost:11434" },
			field:   "llm.url",
			wantErr: true,
		},
		{
			name: "remote llm url in local-only mode",
			mutate: func(c *Config) {
				c.LLM.URL = "http://10.0.0.5:11434"
				c.LLM.LocalOnly = true
			},
			field:   "llm.url",
			wantErr: true,
		},
		{
			name: "loopback llm url in local-only mode",
			mutate: func(c *Config) {
				c.LLM.URL = "http://[::1]:11434"
				c.LLM.LocalOnly = true
			},
			wantErr: false,
		},
		{
			name:    "empty llm model",
			mutate:  func(c *Config) { c.LLM.Model = "" },
			field:   "llm.model",
			wantErr: true,
		},
		{
			name:    "zero llm timeout",
			mutate:  func(c *Config) { c.LLM.TimeoutSecs = 0 },
			field:   "llm.timeout_secs",
			wantErr: true,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.LLM.Temperature = 2.5 },
			field:   "llm.temperature",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			verrs, ok := err.(ValidateErrors)
			if !ok {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verrs[0].Field)
			}
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Planner.MaxSteps = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	verrs, ok := err.(ValidateErrors)
	if !ok {
		t.Fatalf("expected ValidateErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(verrs), verrs)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("errors should be joined with '; ': %q", err.Error())
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[agent]
auto_approve_threshold = 5

[planner]
available_tools = ["read_file", "search_files"]

[tools.require_approval]
read_file = true
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Agent.AutoApproveThreshold != 5 {
		t.Errorf("threshold = %d, want 5", cfg.Agent.AutoApproveThreshold)
	}
	if !cfg.Agent.AutoApproveLowRisk {
		t.Error("omitted auto_approve_low_risk should keep its default")
	}
	if cfg.Planner.MaxSteps != 20 {
		t.Errorf("omitted max_steps should keep its default, got %d", cfg.Planner.MaxSteps)
	}
	if !reflect.DeepEqual(cfg.Planner.AvailableTools, []string{"read_file", "search_files"}) {
		t.Errorf("available_tools = %v", cfg.Planner.AvailableTools)
	}
	if !cfg.Tools.RequireApproval["read_file"] {
		t.Error("expected read_file approval override")
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "syntax error", body: "[agent\n", want: "failed to load TOML"},
		{name: "unknown key", body: "[agent]\nauto_approve = true\n", want: "unknown config keys"},
		{name: "invalid value", body: "[planner]\nmax_steps = 500\n", want: "planner.max_steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}

	_, err := LoadFromPath(writeConfig(t, "[logging]\nlevel = \"loud\"\n"))
	if !IsValidationError(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() without a file should equal Default()")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Agent.AutoApproveLowRisk = false
	cfg.Tools.RateLimit = 2.5
	cfg.Tools.RequireApproval["write_file"] = false
	cfg.Logging.Format = "json"

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 0600", perm)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# rigrun-agent configuration file") {
		t.Error("saved config should start with the header comment")
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIGRUN_AGENT_AUTO_APPROVE", "false")
	t.Setenv("RIGRUN_AGENT_APPROVE_THRESHOLD", "7")
	t.Setenv("RIGRUN_AGENT_MAX_STEPS", "not-a-number")
	t.Setenv("RIGRUN_AGENT_TOOLS", "read_file, ,write_file")
	t.Setenv("RIGRUN_AGENT_LOG_LEVEL", "debug")
	t.Setenv("RIGRUN_AGENT_JOURNAL", "/tmp/journal.db")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Agent.AutoApproveLowRisk {
		t.Error("RIGRUN_AGENT_AUTO_APPROVE=false should disable auto approval")
	}
	if cfg.Agent.AutoApproveThreshold != 7 {
		t.Errorf("threshold = %d, want 7", cfg.Agent.AutoApproveThreshold)
	}
	if cfg.Planner.MaxSteps != 20 {
		t.Errorf("unparseable max steps should be ignored, got %d", cfg.Planner.MaxSteps)
	}
	if !reflect.DeepEqual(cfg.Planner.AvailableTools, []string{"read_file", "write_file"}) {
		t.Errorf("available_tools = %v", cfg.Planner.AvailableTools)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "/tmp/journal.db" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Agent.AutoApproveLowRisk = false
	cfg.Agent.AutoApproveThreshold = 4
	cfg.Planner.MaxSteps = 8
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	cfg.Tools.RequireApproval["read_file"] = true

	ec := cfg.ExecutorConfig()
	if ec.AutoApproveLowRisk || ec.AutoApproveThreshold != 4 {
		t.Errorf("ExecutorConfig() = %+v", ec)
	}

	pc := cfg.PlannerSettings()
	if pc.MaxSteps != 8 || pc.AutoApproveLowRisk {
		t.Errorf("PlannerSettings() = %+v", pc)
	}
	pc.AvailableTools[0] = "changed"
	if cfg.Planner.AvailableTools[0] == "changed" {
		t.Error("PlannerSettings() should copy the tool list")
	}

	lc := cfg.LoggingSettings()
	if lc.Level != slog.LevelWarn || lc.Format != logging.FormatJSON {
		t.Errorf("LoggingSettings() = %+v", lc)
	}

	registry := tools.NewDryRunRegistry()
	if registry.RequiresApproval("read_file") {
		t.Fatal("read_file should not require approval by default")
	}
	cfg.ApplyApprovalOverrides(registry)
	if !registry.RequiresApproval("read_file") {
		t.Error("override should require approval for read_file")
	}

	if got := len(cfg.ToolExecutorOptions()); got != 3 {
		t.Errorf("ToolExecutorOptions() returned %d options, want 3", got)
	}
	cfg.Tools.TimeoutSecs = 0
	if got := len(cfg.ToolExecutorOptions()); got != 2 {
		t.Errorf("zero timeout should omit WithTimeout, got %d options", got)
	}
}

func TestLLMSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")
	t.Setenv("RIGRUN_AGENT_MODEL", "llama3.1:8b")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.LLM.URL != "http://10.0.0.5:11434" {
		t.Errorf("LLM.URL = %q", cfg.LLM.URL)
	}
	if cfg.LLM.Model != "llama3.1:8b" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	t.Setenv("RIGRUN_AGENT_LOCAL_ONLY", "true")
	cfg.ApplyEnvOverrides()
	if !cfg.LLM.LocalOnly {
		t.Fatal("RIGRUN_AGENT_LOCAL_ONLY should enable llm.local_only")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject a remote URL in local-only mode")
	}
	cfg.LLM.LocalOnly = false

	cfg.LLM.URL = "http://ollama.internal:11434/"
	cfg.LLM.TimeoutSecs = 30
	oc := cfg.OllamaConfig()
	if oc.BaseURL != "http://ollama.internal:11434" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", oc.BaseURL)
	}
	if oc.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", oc.Timeout)
	}
	if oc.Model != "llama3.1:8b" {
		t.Errorf("Model = %q", oc.Model)
	}
}
