// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-agent/internal/logging"
	"github.com/jeranaias/rigrun-agent/internal/plan"
	"github.com/jeranaias/rigrun-agent/internal/tasks"
	"github.com/jeranaias/rigrun-agent/internal/tools"
)

// =============================================================================
// CONFIG
// =============================================================================

// DefaultAutoApproveThreshold is the highest risk auto-approved by default.
const DefaultAutoApproveThreshold = 3

// Config controls the approval gate.
type Config struct {
	// AutoApproveLowRisk lets steps at or below AutoApproveThreshold skip
	// approval even when they ask for it
	AutoApproveLowRisk bool

	// AutoApproveThreshold is 0..10; larger values are clamped to 10
	AutoApproveThreshold int
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		AutoApproveLowRisk:   true,
		AutoApproveThreshold: DefaultAutoApproveThreshold,
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option is a functional option for configuring Executor.
type Option func(*Executor)

// WithToolExecutor attaches the collaborator that runs step tools. Without
// one, tool invocations are no-ops.
func WithToolExecutor(te tools.ToolExecutor) Option {
	return func(e *Executor) {
		e.toolExecutor = te
	}
}

// WithEventSink sets where events are sent.
func WithEventSink(s EventSink) Option {
	return func(e *Executor) {
		e.sink = s
	}
}

// WithLogger configures the logger for the executor.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// =============================================================================
// EXECUTOR
// =============================================================================

// signals are the pause and cancel requests shared between the control
// methods and the run loop.
type signals struct {
	mu     sync.Mutex
	pause  bool
	cancel bool
}

func (s *signals) set(pause, cancel *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pause != nil {
		s.pause = *pause
	}
	if cancel != nil {
		s.cancel = *cancel
	}
}

func (s *signals) get() (pause, cancel bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pause, s.cancel
}

// Executor runs a Plan one step at a time.
//
// Pause and Cancel may be called from any goroutine. Start, Resume, Approve,
// Reject, LoadPlan and Reset drive the run and must not overlap each other.
// Pause and cancel requests are observed between steps only.
type Executor struct {
	cfg          Config
	toolExecutor tools.ToolExecutor
	sink         EventSink
	logger       *slog.Logger

	sig signals

	mu        sync.Mutex
	state     ExecutorState
	plan      *plan.Plan
	tree      *tasks.TaskTree
	rootID    string
	stepTasks map[int]string
	completed []int
	startedAt time.Time
}

// NewExecutor creates an idle executor with no plan loaded.
func NewExecutor(cfg Config, opts ...Option) *Executor {
	cfg.AutoApproveThreshold = min(max(cfg.AutoApproveThreshold, 0), plan.MaxRiskLevel)

	e := &Executor{
		cfg:       cfg,
		logger:    logging.Discard(),
		state:     StateIdle,
		tree:      tasks.NewTaskTree(),
		stepTasks: make(map[int]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current state.
func (e *Executor) State() ExecutorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Plan returns the loaded plan, or nil.
func (e *Executor) Plan() *plan.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plan
}

// CompletedSteps returns the completed step numbers in completion order.
func (e *Executor) CompletedSteps() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.completed...)
}

// Progress returns the completed and total step counts.
func (e *Executor) Progress() (completed, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.completed), e.totalLocked()
}

// Tree calls fn with the executor's task tree. fn must not retain the tree
// or call back into the executor.
func (e *Executor) Tree(fn func(*tasks.TaskTree)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.tree)
}

// StepTaskID returns the tree id of the task mirroring step n.
func (e *Executor) StepTaskID(n int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.stepTasks[n]
	return id, ok
}

// =============================================================================
// CONTROL
// =============================================================================

// LoadPlan replaces the current plan and derives a fresh task tree from it.
func (e *Executor) LoadPlan(p *plan.Plan) {
	tree := p.ToTaskTree()
	stepTasks := make(map[int]string, len(p.Steps))
	var rootID string
	for _, root := range tree.Roots() {
		rootID = root.ID
		for _, child := range tree.Children(root.ID) {
			if n, err := strconv.Atoi(child.Metadata[plan.StepNumberKey]); err == nil {
				if _, dup := stepTasks[n]; !dup {
					stepTasks[n] = child.ID
				}
			}
		}
	}

	e.mu.Lock()
	e.plan = p
	e.tree = tree
	e.rootID = rootID
	e.stepTasks = stepTasks
	e.completed = nil
	e.mu.Unlock()

	e.logger.Info("plan loaded", "plan_id", p.ID, "title", p.Title, "steps", len(p.Steps))
	e.setState(StateIdle)
}

// Start runs the loaded plan until it finishes, fails, pauses, is cancelled
// or reaches a step that needs approval. It always clears pending pause and
// cancel requests first, and measures duration from this call.
//
// Unless no plan is loaded, a PlanResult is returned and a PlanCompleted event
// sent, including when the run only paused or stopped for approval.
func (e *Executor) Start(ctx context.Context) (*PlanResult, error) {
	e.mu.Lock()
	if e.plan == nil {
		e.mu.Unlock()
		return nil, ErrNoPlan
	}
	e.startedAt = time.Now()
	e.mu.Unlock()

	off := false
	e.sig.set(&off, &off)
	e.setState(StateRunning)

	err := e.executePlan(ctx)

	result := e.result(err)
	e.emit(Event{Type: EventPlanCompleted, Result: result})
	if err != nil {
		e.logger.Error("plan run stopped", "plan_id", result.PlanID, "error", err)
	} else {
		e.logger.Info("plan run returned", "plan_id", result.PlanID, "state", e.State(),
			"completed", result.CompletedSteps, "total", result.TotalSteps)
	}
	return result, err
}

// Pause asks a running loop to stop before its next step. It does nothing
// unless the executor is running.
func (e *Executor) Pause() {
	if !e.State().CanPause() {
		return
	}
	on := true
	e.sig.set(&on, nil)
	e.logger.Debug("pause requested")
}

// Resume continues a paused run or one waiting for approval. The step that
// was waiting is gated again.
func (e *Executor) Resume(ctx context.Context) (*PlanResult, error) {
	if state := e.State(); !state.CanResume() {
		return nil, &StateError{Op: "resume", State: state}
	}
	off := false
	e.sig.set(&off, nil)
	return e.Start(ctx)
}

// Cancel asks the loop to stop before its next step. Once the executor is in a
// terminal state this has no visible effect.
func (e *Executor) Cancel() {
	on := true
	e.sig.set(nil, &on)
	e.logger.Debug("cancel requested")
}

// Approve runs the step waiting for approval, then resumes the loop.
func (e *Executor) Approve(ctx context.Context) (*PlanResult, error) {
	e.mu.Lock()
	state, p := e.state, e.plan
	var completed []int
	if p != nil {
		completed = append(completed, e.completed...)
	}
	e.mu.Unlock()

	if state != StateWaitingApproval {
		return nil, &StateError{Op: "approve", State: state}
	}
	if p == nil {
		return nil, ErrNoPlan
	}
	runnable := p.RunnableSteps(completed)
	if len(runnable) == 0 {
		return nil, ErrNoRunnableStep
	}
	step := runnable[0]

	e.logger.Info("step approved", "step", step.StepNumber)
	e.setState(StateRunning)
	if err := e.executeStep(ctx, step); err != nil {
		e.fail(err)
		return nil, err
	}
	return e.Start(ctx)
}

// Reject cancels a run that is waiting for approval. The plan stays loaded.
// Any other state returns a *StateError.
func (e *Executor) Reject(reason string) error {
	state := e.State()
	if state != StateWaitingApproval {
		return &StateError{Op: "reject", State: state}
	}

	e.mu.Lock()
	for _, task := range e.tree.AllTasks() {
		if task.Status == tasks.StatusWaitingApproval {
			task.Cancel()
		}
	}
	if root := e.tree.Get(e.rootID); root != nil {
		root.Cancel()
	}
	e.mu.Unlock()

	e.logger.Warn("step rejected", "reason", reason)
	e.setState(StateCancelled)
	e.emit(Event{
		Type:   EventTaskFailed,
		TaskID: ApprovalTaskID,
		Error:  "User rejected: " + reason,
	})
	return nil
}

// Reset returns the executor to Idle with no plan, whatever its state.
func (e *Executor) Reset() {
	off := false
	e.sig.set(&off, &off)

	e.mu.Lock()
	e.plan = nil
	e.tree = tasks.NewTaskTree()
	e.rootID = ""
	e.stepTasks = make(map[int]string)
	e.completed = nil
	e.startedAt = time.Time{}
	e.mu.Unlock()

	e.setState(StateIdle)
}

// =============================================================================
// RUN LOOP
// =============================================================================

func (e *Executor) executePlan(ctx context.Context) error {
	e.updateRoot(func(t *tasks.AgentTask) {
		if t.Status != tasks.StatusRunning {
			t.Start()
		}
	})

	for {
		pause, cancel := e.sig.get()
		if cancel || ctx.Err() != nil {
			e.updateRoot((*tasks.AgentTask).Cancel)
			e.setState(StateCancelled)
			if err := ctx.Err(); err != nil && !cancel {
				return fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			return ErrCancelled
		}
		if pause {
			e.updateRoot((*tasks.AgentTask).Pause)
			e.setState(StatePaused)
			return nil
		}

		e.mu.Lock()
		p := e.plan
		done := len(e.completed)
		runnable := p.RunnableSteps(e.completed)
		e.mu.Unlock()

		if len(runnable) == 0 {
			if done >= len(p.Steps) {
				e.updateRoot(func(t *tasks.AgentTask) { t.Complete("") })
				e.setState(StateCompleted)
				return nil
			}
			err := fmt.Errorf("%w: %d of %d steps completed and none can run", ErrDeadlocked, done, len(p.Steps))
			e.fail(err)
			return err
		}

		step := runnable[0]
		if step.RequiresApproval && !e.autoApproves(step) {
			e.awaitApproval(step)
			return nil
		}

		if err := e.executeStep(ctx, step); err != nil {
			e.fail(err)
			return err
		}

		e.mu.Lock()
		progress := Progress{
			Completed:   len(e.completed),
			Total:       len(p.Steps),
			CurrentTask: step.Title,
		}
		e.mu.Unlock()
		e.emit(Event{Type: EventProgress, Progress: &progress})
	}
}

// autoApproves reports whether the gate lets step through without a human.
func (e *Executor) autoApproves(step plan.PlanStep) bool {
	return e.cfg.AutoApproveLowRisk && step.RiskLevel <= e.cfg.AutoApproveThreshold
}

func (e *Executor) awaitApproval(step plan.PlanStep) {
	taskID := stepTaskID(step)
	e.updateStep(step, (*tasks.AgentTask).AwaitApproval)
	e.updateRoot((*tasks.AgentTask).AwaitApproval)

	e.logger.Info("step requires approval", "step", step.StepNumber, "risk", step.RiskLevel)
	e.setState(StateWaitingApproval)

	description := step.Description
	if description == "" {
		description = step.Title
	}
	e.emit(Event{Type: EventApprovalRequired, TaskID: taskID, Description: description})
}

// =============================================================================
// STEP EXECUTION
// =============================================================================

func (e *Executor) executeStep(ctx context.Context, step plan.PlanStep) error {
	taskID := stepTaskID(step)

	e.mu.Lock()
	if id, ok := e.stepTasks[step.StepNumber]; ok {
		e.tree.SetActive(id)
	}
	e.mu.Unlock()
	e.updateStep(step, (*tasks.AgentTask).Start)

	e.logger.Debug("step started", "step", step.StepNumber, "tools", len(step.Tools))
	e.emit(Event{Type: EventTaskStarted, TaskID: taskID})

	outputs := make([]string, 0, len(step.Tools))
	for _, name := range step.Tools {
		call := tools.ToolCall{
			ID:        uuid.New().String(),
			Name:      name,
			Arguments: map[string]any{},
		}
		e.emit(Event{Type: EventToolExecutionRequested, TaskID: taskID, ToolCall: &call})

		if e.toolExecutor == nil {
			e.updateStep(step, func(t *tasks.AgentTask) {
				t.RecordToolCall(tasks.ToolCallRecord{Name: name, Arguments: call.Arguments, Success: true})
			})
			continue
		}

		result, err := e.toolExecutor.Execute(ctx, call)
		if err != nil {
			msg := err.Error()
			e.updateStep(step, func(t *tasks.AgentTask) {
				t.RecordToolCall(tasks.ToolCallRecord{Name: name, Arguments: call.Arguments, Error: msg})
				t.Fail(msg)
			})
			e.emit(Event{Type: EventTaskFailed, TaskID: taskID, Error: msg})
			return fmt.Errorf("step %d: tool %s: %w", step.StepNumber, name, err)
		}

		e.updateStep(step, func(t *tasks.AgentTask) {
			t.RecordToolCall(tasks.ToolCallRecord{
				Name:       name,
				Arguments:  call.Arguments,
				Success:    result.Success,
				Output:     result.Output,
				Error:      result.Error,
				DurationMs: result.DurationMs,
			})
		})
		e.emit(Event{Type: EventToolExecutionCompleted, ToolName: name, ToolResult: &result})

		if !result.Success {
			failure := &ToolFailedError{Step: step.StepNumber, Tool: name, Message: result.Error}
			e.updateStep(step, func(t *tasks.AgentTask) { t.Fail(failure.Error()) })
			e.emit(Event{Type: EventTaskFailed, TaskID: taskID, Error: failure.Error()})
			return failure
		}
		if result.Output != "" {
			outputs = append(outputs, result.Output)
		}
	}

	output := strings.Join(outputs, "\n")

	e.mu.Lock()
	e.completed = append(e.completed, step.StepNumber)
	e.mu.Unlock()
	e.updateStep(step, func(t *tasks.AgentTask) { t.Complete(output) })

	e.logger.Debug("step completed", "step", step.StepNumber)
	e.emit(Event{Type: EventTaskCompleted, TaskID: taskID, Output: output})
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func stepTaskID(step plan.PlanStep) string {
	return strconv.Itoa(step.StepNumber)
}

func (e *Executor) setState(s ExecutorState) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()

	if prev != s {
		e.logger.Debug("state changed", "from", prev, "to", s)
	}
	e.emit(Event{Type: EventStateChanged, State: s})
}

// fail moves to Failed and mirrors it onto the root task.
func (e *Executor) fail(err error) {
	e.updateRoot(func(t *tasks.AgentTask) { t.Fail(err.Error()) })
	e.setState(StateFailed)
}

func (e *Executor) emit(ev Event) {
	if e.sink == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.sink.Send(ev)
}

func (e *Executor) updateRoot(fn func(*tasks.AgentTask)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.tree.Get(e.rootID); t != nil {
		fn(t)
	}
}

func (e *Executor) updateStep(step plan.PlanStep, fn func(*tasks.AgentTask)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.tree.Get(e.stepTasks[step.StepNumber]); t != nil {
		fn(t)
	}
}

func (e *Executor) totalLocked() int {
	if e.plan == nil {
		return 0
	}
	return len(e.plan.Steps)
}

func (e *Executor) result(err error) *PlanResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := &PlanResult{
		Success:        err == nil,
		CompletedSteps: len(e.completed),
		TotalSteps:     e.totalLocked(),
		DurationMs:     time.Since(e.startedAt).Milliseconds(),
	}
	if e.plan != nil {
		r.PlanID = e.plan.ID
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
