package executor

import (
	"context"
	"fmt"

	"plannerd/pkg/goap"

	"go.uber.org/zap"
)

// GoalRelaxer shrinks a goal after planning failed. The perception
// transducer implements it; tests substitute their own.
type GoalRelaxer interface {
	RelaxGoal(ctx context.Context, goal goap.GoalState, reason string) (goap.GoalState, error)
}

// PlanRecorder persists plan attempts. The plan store implements it.
type PlanRecorder interface {
	SavePlan(goal goap.GoalState, plan []goap.Action, initial goap.WorldState) (string, error)
	UpdateStatus(id, status string) error
}

// LoopConfig bounds the replanning loop.
type LoopConfig struct {
	// MaxAttempts is the number of plan-execute cycles before giving up.
	// A goal relaxation consumes an attempt too. Default 3.
	MaxAttempts int
	// MaxDepth is the search depth per planning call. Zero means the
	// planner default.
	MaxDepth int
}

// LoopResult summarizes a RunToGoal call.
type LoopResult struct {
	// Goal is the goal that was last pursued; it differs from the
	// original if relaxation happened.
	Goal      goap.GoalState
	Final     goap.WorldState
	Outcomes  []Outcome
	Attempts  int
	Satisfied bool
}

// Loop drives plan-execute-replan cycles until the goal holds or the
// attempt budget runs out.
type Loop struct {
	planner   *goap.Planner
	executor  *Executor
	relaxer   GoalRelaxer
	recorder  PlanRecorder
	refresher func(ctx context.Context) (goap.WorldState, error)
	logger    *zap.Logger
	cfg       LoopConfig
}

// NewLoop builds a loop over the given planner and executor.
func NewLoop(planner *goap.Planner, exec *Executor, cfg LoopConfig, logger *zap.Logger) *Loop {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{planner: planner, executor: exec, cfg: cfg, logger: logger}
}

// SetRelaxer enables goal relaxation when no plan exists. Without one,
// an unreachable goal ends the loop.
func (l *Loop) SetRelaxer(r GoalRelaxer) {
	l.relaxer = r
}

// SetRecorder enables persistence of every plan attempt.
func (l *Loop) SetRecorder(rec PlanRecorder) {
	l.recorder = rec
}

// SetRefresher installs a state source consulted after a failed attempt,
// typically the rule kernel's Derive. Without one the loop replans from
// the modeled state of the failed run.
func (l *Loop) SetRefresher(f func(ctx context.Context) (goap.WorldState, error)) {
	l.refresher = f
}

// RunToGoal plans from initial and executes until state satisfies goal.
// A step failure triggers a replan from the live state; an unreachable
// goal triggers relaxation when a relaxer is configured. Both consume
// attempts, so the loop always terminates.
func (l *Loop) RunToGoal(ctx context.Context, initial goap.WorldState, goal goap.GoalState) (*LoopResult, error) {
	state := initial.Copy()
	result := &LoopResult{Goal: goal, Final: state}

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempts = attempt

		plan, err := l.planner.PlanContext(ctx, state, result.Goal, l.cfg.MaxDepth)
		if err != nil {
			return result, err
		}

		if plan == nil {
			if l.relaxer == nil {
				l.logger.Info("no plan and no relaxer configured",
					zap.String("goal", result.Goal.Name))
				return result, nil
			}
			relaxed, err := l.relaxer.RelaxGoal(ctx, result.Goal,
				"no action sequence reaches the goal from the current state")
			if err != nil {
				return result, fmt.Errorf("goal relaxation failed: %w", err)
			}
			l.logger.Info("goal relaxed",
				zap.String("from", result.Goal.Name),
				zap.String("to", relaxed.Name),
				zap.Int("remaining_facts", len(relaxed.Desired)))
			result.Goal = relaxed
			continue
		}

		var recordID string
		if l.recorder != nil {
			recordID, err = l.recorder.SavePlan(result.Goal, plan, state)
			if err != nil {
				l.logger.Warn("failed to persist plan attempt", zap.Error(err))
			}
		}

		outcome := l.executor.Run(ctx, plan, state, result.Goal)
		result.Outcomes = append(result.Outcomes, outcome)

		if l.recorder != nil && recordID != "" {
			if err := l.recorder.UpdateStatus(recordID, outcome.Status); err != nil {
				l.logger.Warn("failed to update plan status",
					zap.String("id", recordID), zap.Error(err))
			}
		}

		state = outcome.Final
		if outcome.Status == OutcomeCompleted {
			result.Final = state
			result.Satisfied = state.Satisfies(result.Goal)
			return result, nil
		}

		if l.refresher != nil {
			fresh, err := l.refresher(ctx)
			if err != nil {
				l.logger.Warn("state refresh failed, replanning from modeled state",
					zap.Error(err))
			} else {
				state = fresh
			}
		}
		result.Final = state

		l.logger.Info("attempt did not complete, replanning",
			zap.Int("attempt", attempt),
			zap.String("status", outcome.Status),
			zap.Int("failed_step", outcome.FailedStep))
	}

	return result, nil
}
