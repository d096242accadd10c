// Package executor replays plans through per-role handlers and drives
// the plan-execute-replan loop. Planning assumes effects land exactly as
// declared; execution is where that assumption meets the real world, so
// every step rechecks its preconditions against the live state before
// dispatching.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plannerd/pkg/goap"

	"go.uber.org/zap"
)

// Handler executes one action on behalf of its agent role. A nil error
// means the action's declared effects took hold in the world.
type Handler func(ctx context.Context, action goap.Action, state goap.WorldState) error

// Outcome statuses.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// StepRecord documents one dispatched step.
type StepRecord struct {
	Index     int
	ActionID  string
	AgentRole string
	StartedAt time.Time
	Duration  time.Duration
	Err       string
}

// Outcome is the result of replaying one plan. Final is the modeled
// state after the last successfully applied step; for a rejected plan it
// equals the initial state.
type Outcome struct {
	Status     string
	FailedStep int
	Steps      []StepRecord
	Final      goap.WorldState
}

// Executor dispatches plan steps to handlers registered per agent role.
type Executor struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// New returns an executor with no handlers registered.
func New(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register installs the handler for an agent role, replacing any
// previous registration.
func (e *Executor) Register(role string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[role] = h
}

// Roles returns the registered agent roles.
func (e *Executor) Roles() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	roles := make([]string, 0, len(e.handlers))
	for role := range e.handlers {
		roles = append(roles, role)
	}
	return roles
}

// Run replays a plan from initial toward goal. The plan is rejected
// outright unless it validates end to end; after that each step rechecks
// CanExecute against the live state, dispatches its handler, and applies
// the declared effects on success. A failed step stops the run; the
// remaining steps are never dispatched.
func (e *Executor) Run(ctx context.Context, plan []goap.Action, initial goap.WorldState, goal goap.GoalState) Outcome {
	if !goap.ValidatePlan(plan, initial, goal) {
		e.logger.Warn("plan rejected before execution",
			zap.String("goal", goal.Name),
			zap.Int("steps", len(plan)))
		return Outcome{Status: OutcomeRejected, FailedStep: -1, Final: initial.Copy()}
	}

	state := initial.Copy()
	steps := make([]StepRecord, 0, len(plan))

	for i, action := range plan {
		rec := StepRecord{
			Index:     i,
			ActionID:  action.ID,
			AgentRole: action.AgentRole,
			StartedAt: time.Now(),
		}

		err := ctx.Err()
		if err == nil && !action.CanExecute(state) {
			err = fmt.Errorf("preconditions for %q no longer hold", action.ID)
		}
		if err == nil {
			err = e.dispatch(ctx, action, state)
		}
		rec.Duration = time.Since(rec.StartedAt)

		if err != nil {
			rec.Err = err.Error()
			steps = append(steps, rec)
			e.logger.Warn("step failed",
				zap.Int("step", i),
				zap.String("action", action.ID),
				zap.Error(err))
			return Outcome{Status: OutcomeFailed, FailedStep: i, Steps: steps, Final: state}
		}

		state = action.Apply(state)
		steps = append(steps, rec)
		e.logger.Debug("step completed",
			zap.Int("step", i),
			zap.String("action", action.ID),
			zap.Duration("took", rec.Duration))
	}

	return Outcome{Status: OutcomeCompleted, FailedStep: -1, Steps: steps, Final: state}
}

func (e *Executor) dispatch(ctx context.Context, action goap.Action, state goap.WorldState) error {
	e.mu.RLock()
	h, ok := e.handlers[action.AgentRole]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for role %q", action.AgentRole)
	}
	return h(ctx, action, state)
}
