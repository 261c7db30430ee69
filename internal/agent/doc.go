// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent executes plans step by step behind an approval gate.
//
// # Key Types
//
//   - Executor: state machine that runs a loaded plan
//   - ExecutorState: Idle, Running, Paused, WaitingApproval and the terminal states
//   - Event: observation sent to an EventSink for every transition and step
//   - EventStream: unbounded EventSink read through a channel
//
// # Usage
//
//	stream := agent.NewEventStream()
//	exec := agent.NewExecutor(agent.DefaultConfig(),
//	    agent.WithToolExecutor(toolExec),
//	    agent.WithEventSink(stream),
//	)
//	exec.LoadPlan(p)
//	result, err := exec.Start(ctx)
//	for exec.State() == agent.StateWaitingApproval {
//	    result, err = exec.Approve(ctx)
//	}
//
// Steps run one at a time, the first runnable step in plan order first. A
// step that asks for approval stops the run unless auto-approval is enabled
// and its risk is at or below the threshold. Start returns when the plan
// completes, fails, is cancelled, pauses or needs approval; the PlanCompleted
// event is sent in every one of those cases.
package agent
