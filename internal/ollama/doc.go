// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client used to ask a local Ollama server
// for plans.
//
// # Key Types
//
//   - Client: HTTP client for the Ollama API; implements plan.LLMClient
//   - ClientConfig: server URL, model, timeout and retry settings
//   - GenerateRequest / GenerateResponse: /api/generate bodies
//   - ClientError: typed errors (not running, timeout, model not found)
//
// # Usage
//
//	client := ollama.NewClient(&ollama.ClientConfig{Model: "qwen2.5-coder:7b"}, logger)
//	p, err := planner.Generate(ctx, client, "add a --dry-run flag")
//	if ollama.IsNotRunning(err) {
//	    // start `ollama serve` and retry
//	}
package ollama
