// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the rigrun-agent TOML configuration.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - AgentConfig: Executor approval gate
//   - PlannerConfig: Step limit and tool whitelist
//   - ToolsConfig: Rate limit, timeout and approval overrides
//   - ValidateErrors: Every problem Validate found
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGRUN_AGENT_*)
//   - ~/.rigrun-agent/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	exec := agent.NewExecutor(cfg.ExecutorConfig())
//	planner := plan.NewPlanner(cfg.PlannerSettings())
package config
