// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline guards the outbound connections rigrun-agent makes.
//
// The only network peer is the Ollama server used by the generate command.
// In local-only mode (the default) its URL must point at a loopback address,
// so goals and plans never leave the machine.
//
// # Usage
//
//	if err := offline.ValidateURL(cfg.LLM.URL, cfg.LLM.LocalOnly); err != nil {
//	    return err
//	}
package offline
