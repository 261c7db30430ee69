// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the tool-execution capability used by the agent.
//
// # Key Types
//
//   - ToolExecutor: interface the agent calls to run a tool
//   - ToolCall / ToolResult: a single invocation and its outcome
//   - Registry: named tools with a risk level each
//   - RegistryExecutor: ToolExecutor backed by a Registry, with rate limiting
//     and output truncation
//
// # Usage
//
//	registry := tools.NewDryRunRegistry()
//	exec := tools.NewRegistryExecutor(registry, tools.WithRateLimit(5, 1))
//	result, err := exec.Execute(ctx, tools.ToolCall{Name: "read_file"})
//
// An error from Execute means the call never ran (unknown tool, cancelled
// wait). A tool that ran and failed returns a result with Success false.
package tools
