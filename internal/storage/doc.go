// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the SQLite run journal for rigrun-agent.
//
// Every executor event of a run is stored in order, together with a run row
// that tracks the latest state and result.
//
// # Key Types
//
//   - Journal: SQLite-backed event store
//   - RunSummary: Lightweight metadata for listing runs
//
// # Usage
//
//	j, err := storage.OpenJournal(path)
//	runID, err := j.BeginRun(ctx, p, goal)
//	exec := agent.NewExecutor(cfg, agent.WithEventSink(agent.SinkFunc(func(ev agent.Event) {
//	    _ = j.Record(ctx, runID, ev)
//	})))
//
// List runs and replay their events:
//
//	runs, err := j.Runs(ctx, 10)
//	events, err := j.Events(ctx, runs[0].ID)
//
// # Storage Location
//
// The journal lives at ~/.rigrun-agent/journal.db unless configured otherwise.
package storage
