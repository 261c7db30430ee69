// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/logging"
	"github.com/jeranaias/rigrun-agent/internal/offline"
	"github.com/jeranaias/rigrun-agent/internal/ollama"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/tools"
	"github.com/jeranaias/rigrun-agent/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-agent configuration.
type Config struct {
	// Agent controls the executor approval gate
	Agent AgentConfig `toml:"agent"`

	// Planner controls plan parsing and validation
	Planner PlannerConfig `toml:"planner"`

	// Tools controls the tool executor
	Tools ToolsConfig `toml:"tools"`

	// Logging controls structured log output
	Logging LoggingConfig `toml:"logging"`

	// Journal controls the event journal
	Journal JournalConfig `toml:"journal"`

	// LLM controls plan generation through Ollama
	LLM LLMConfig `toml:"llm"`
}

// AgentConfig contains executor settings.
type AgentConfig struct {
	// AutoApproveLowRisk skips approval for steps at or below the threshold
	AutoApproveLowRisk bool `toml:"auto_approve_low_risk"`

	// AutoApproveThreshold is the highest auto-approved risk (0-10)
	AutoApproveThreshold int `toml:"auto_approve_threshold"`
}

// PlannerConfig contains planner settings.
type PlannerConfig struct {
	// MaxSteps truncates longer plans
	MaxSteps int `toml:"max_steps"`

	// AvailableTools is the tool whitelist plans are validated against
	AvailableTools []string `toml:"available_tools"`
}

// ToolsConfig contains tool executor settings.
type ToolsConfig struct {
	// RateLimit is the maximum tool calls per second; 0 disables limiting
	RateLimit float64 `toml:"rate_limit"`

	// Burst is the rate limiter burst size
	Burst int `toml:"burst"`

	// TimeoutSecs bounds each tool call
	TimeoutSecs int `toml:"timeout_secs"`

	// MaxOutputSize truncates tool output (bytes)
	MaxOutputSize int `toml:"max_output_size"`

	// RequireApproval overrides the per-tool approval default
	RequireApproval map[string]bool `toml:"require_approval"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level"`

	// Format is text or json
	Format string `toml:"format"`

	// File receives logs; empty means stderr
	File string `toml:"file"`
}

// JournalConfig contains event journal settings.
type JournalConfig struct {
	// Enabled records every executor event to Path
	Enabled bool `toml:"enabled"`

	// Path is the SQLite database file
	Path string `toml:"path"`
}

// LLMConfig contains Ollama settings for the generate command.
type LLMConfig struct {
	// URL is the Ollama server base URL
	URL string `toml:"url"`

	// Model names the model asked for plans
	Model string `toml:"model"`

	// TimeoutSecs bounds one generate request
	TimeoutSecs int `toml:"timeout_secs"`

	// MaxRetries for requests that cannot reach the server
	MaxRetries int `toml:"max_retries"`

	// Temperature is passed to the model; 0 keeps the model default
	Temperature float64 `toml:"temperature"`

	// LocalOnly rejects any URL that is not a loopback address
	LocalOnly bool `toml:"local_only"`
}

// Limits on configured values.
const (
	MaxPlannerSteps = 100
	MaxToolTimeout  = 3600
	MaxLLMRetries   = 10
)

// Default returns a new Config with default values.
func Default() *Config {
	journalPath := filepath.Join(".rigrun-agent", "journal.db")
	if dir, err := ConfigDir(); err == nil {
		journalPath = filepath.Join(dir, "journal.db")
	}

	return &Config{
		Agent: AgentConfig{
			AutoApproveLowRisk:   true,
			AutoApproveThreshold: agent.DefaultAutoApproveThreshold,
		},
		Planner: PlannerConfig{
			MaxSteps:       plan.DefaultMaxSteps,
			AvailableTools: append([]string(nil), plan.DefaultTools...),
		},
		Tools: ToolsConfig{
			RateLimit:       0,
			Burst:           1,
			TimeoutSecs:     int(tools.DefaultToolTimeout / time.Second),
			MaxOutputSize:   tools.DefaultMaxOutputSize,
			RequireApproval: map[string]bool{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    journalPath,
		},
		LLM: LLMConfig{
			URL:         ollama.DefaultBaseURL,
			Model:       ollama.DefaultModel,
			TimeoutSecs: int(ollama.DefaultTimeout / time.Second),
			MaxRetries:  ollama.DefaultMaxRetries,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigrun-agent configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-agent"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.rigrun-agent/config.toml, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a TOML file. Keys the file omits keep
// their defaults; keys this version does not know are an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Tools.RequireApproval == nil {
		cfg.Tools.RequireApproval = map[string]bool{}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration as TOML to path with 0600 permissions.
func SaveTo(cfg *Config, path string) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders the configuration as a commented TOML document.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# rigrun-agent configuration file\n")
	buf.WriteString("# Generated by rigrun-agent - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns all problems as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Agent
	if c.Agent.AutoApproveThreshold < 0 || c.Agent.AutoApproveThreshold > plan.MaxRiskLevel {
		add("agent.auto_approve_threshold", "must be between 0 and %d, got %d", plan.MaxRiskLevel, c.Agent.AutoApproveThreshold)
	}

	// Planner
	if c.Planner.MaxSteps < 1 || c.Planner.MaxSteps > MaxPlannerSteps {
		add("planner.max_steps", "must be between 1 and %d, got %d", MaxPlannerSteps, c.Planner.MaxSteps)
	}
	if len(c.Planner.AvailableTools) == 0 {
		add("planner.available_tools", "must list at least one tool")
	}
	seen := make(map[string]bool, len(c.Planner.AvailableTools))
	for _, name := range c.Planner.AvailableTools {
		switch {
		case strings.TrimSpace(name) == "":
			add("planner.available_tools", "tool names cannot be empty")
		case seen[name]:
			add("planner.available_tools", "duplicate tool %q", name)
		}
		seen[name] = true
	}

	// Tools
	if c.Tools.RateLimit < 0 {
		add("tools.rate_limit", "cannot be negative")
	}
	if c.Tools.Burst < 0 {
		add("tools.burst", "cannot be negative")
	}
	if c.Tools.TimeoutSecs < 0 || c.Tools.TimeoutSecs > MaxToolTimeout {
		add("tools.timeout_secs", "must be between 0 and %d, got %d", MaxToolTimeout, c.Tools.TimeoutSecs)
	}
	if c.Tools.MaxOutputSize < 0 {
		add("tools.max_output_size", "cannot be negative")
	}
	for name := range c.Tools.RequireApproval {
		if !slices.Contains(c.Planner.AvailableTools, name) {
			add("tools.require_approval", "tool %q is not in planner.available_tools", name)
		}
	}

	// Logging
	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		add("logging.format", "invalid format '%s', must be one of: text, json", c.Logging.Format)
	}

	// Journal
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		add("journal.path", "required when the journal is enabled")
	}

	// LLM
	if err := offline.ValidateURL(c.LLM.URL, c.LLM.LocalOnly); err != nil {
		add("llm.url", "%v", err)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		add("llm.model", "cannot be empty")
	}
	if c.LLM.TimeoutSecs < 1 || c.LLM.TimeoutSecs > MaxToolTimeout {
		add("llm.timeout_secs", "must be between 1 and %d, got %d", MaxToolTimeout, c.LLM.TimeoutSecs)
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > MaxLLMRetries {
		add("llm.max_retries", "must be between 0 and %d, got %d", MaxLLMRetries, c.LLM.MaxRetries)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "must be between 0 and 2, got %g", c.LLM.Temperature)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - RIGRUN_AGENT_AUTO_APPROVE: overrides agent.auto_approve_low_risk
//   - RIGRUN_AGENT_APPROVE_THRESHOLD: overrides agent.auto_approve_threshold
//   - RIGRUN_AGENT_MAX_STEPS: overrides planner.max_steps
//   - RIGRUN_AGENT_TOOLS: comma-separated planner.available_tools
//   - RIGRUN_AGENT_LOG_LEVEL: overrides logging.level
//   - RIGRUN_AGENT_LOG_FORMAT: overrides logging.format
//   - RIGRUN_AGENT_JOURNAL: sets journal.path and enables the journal
//   - OLLAMA_HOST: overrides llm.url
//   - RIGRUN_AGENT_MODEL: overrides llm.model
//   - RIGRUN_AGENT_LOCAL_ONLY: overrides llm.local_only
//
// Unparseable numbers are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGRUN_AGENT_AUTO_APPROVE"); v != "" {
		c.Agent.AutoApproveLowRisk = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RIGRUN_AGENT_APPROVE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Agent.AutoApproveThreshold = n
		}
	}
	if v := os.Getenv("RIGRUN_AGENT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Planner.MaxSteps = n
		}
	}
	if v := os.Getenv("RIGRUN_AGENT_TOOLS"); v != "" {
		var names []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		c.Planner.AvailableTools = names
	}
	if v := os.Getenv("RIGRUN_AGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RIGRUN_AGENT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("RIGRUN_AGENT_JOURNAL"); v != "" {
		c.Journal.Path = v
		c.Journal.Enabled = true
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		c.LLM.URL = v
	}
	if v := os.Getenv("RIGRUN_AGENT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RIGRUN_AGENT_LOCAL_ONLY"); v != "" {
		c.LLM.LocalOnly = v == "1" || strings.EqualFold(v, "true")
	}
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ExecutorConfig returns the agent executor settings.
func (c *Config) ExecutorConfig() agent.Config {
	return agent.Config{
		AutoApproveLowRisk:   c.Agent.AutoApproveLowRisk,
		AutoApproveThreshold: c.Agent.AutoApproveThreshold,
	}
}

// PlannerSettings returns the planner settings. Parsed steps inherit the
// agent's auto-approve flag for their requires_approval default.
func (c *Config) PlannerSettings() plan.PlannerConfig {
	return plan.PlannerConfig{
		MaxSteps:           c.Planner.MaxSteps,
		AvailableTools:     append([]string(nil), c.Planner.AvailableTools...),
		AutoApproveLowRisk: c.Agent.AutoApproveLowRisk,
	}
}

// LoggingSettings returns the logger settings.
func (c *Config) LoggingSettings() logging.Config {
	return logging.Config{
		Level:  logging.ParseLevel(c.Logging.Level),
		Format: logging.ParseFormat(c.Logging.Format),
	}
}

// ToolExecutorOptions returns options for tools.NewRegistryExecutor.
func (c *Config) ToolExecutorOptions() []tools.ExecutorOption {
	opts := []tools.ExecutorOption{
		tools.WithRateLimit(c.Tools.RateLimit, c.Tools.Burst),
		tools.WithMaxOutputSize(c.Tools.MaxOutputSize),
	}
	if c.Tools.TimeoutSecs > 0 {
		opts = append(opts, tools.WithTimeout(time.Duration(c.Tools.TimeoutSecs)*time.Second))
	}
	return opts
}

// OllamaConfig returns the Ollama client settings.
func (c *Config) OllamaConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL:     strings.TrimRight(c.LLM.URL, "/"),
		Model:       c.LLM.Model,
		Timeout:     time.Duration(c.LLM.TimeoutSecs) * time.Second,
		MaxRetries:  c.LLM.MaxRetries,
		RetryDelay:  ollama.DefaultRetryDelay,
		Temperature: c.LLM.Temperature,
	}
}

// ApplyApprovalOverrides copies tools.require_approval onto registry.
func (c *Config) ApplyApprovalOverrides(registry *tools.Registry) {
	for name, required := range c.Tools.RequireApproval {
		registry.SetApprovalOverride(name, required)
	}
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var verrs ValidateErrors
	return errors.As(err, &verrs)
}
