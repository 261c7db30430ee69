// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-agent command line.
//
// Commands:
//
//   - prompt: print the planning prompt for a goal
//   - plan: parse, validate and display a plan
//   - run: execute a plan with approval gates and journaling
//   - journal: list journaled runs or replay one run's events
//   - config: show or initialize configuration
//
// Every command accepts --config, --verbose and --json. Colors follow
// NO_COLOR, FORCE_COLOR and TTY detection.
//
// # Usage
//
//	if err := cli.ExecuteContext(ctx); err != nil {
//	    os.Exit(cli.GetExitCode(err))
//	}
package cli
