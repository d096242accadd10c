// Package arbiter plans several candidate goals concurrently and picks
// one winner. The planner itself never weighs goal priority; that
// arbitration happens here, after every candidate has had its search.
package arbiter

import (
	"context"

	"plannerd/pkg/goap"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Decision is the outcome of arbitration: the chosen goal, its plan, and
// the plan's total cost. Considered counts every candidate that was
// searched, reachable or not.
type Decision struct {
	Goal       goap.GoalState
	Plan       []goap.Action
	Cost       float64
	Considered int
}

// Arbiter runs one planner over many candidate goals.
type Arbiter struct {
	planner *goap.Planner
	logger  *zap.Logger
}

// New creates an arbiter over the given planner.
func New(planner *goap.Planner, logger *zap.Logger) *Arbiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arbiter{planner: planner, logger: logger}
}

// Decide plans every goal from initial and selects the winner: the
// highest-priority goal with a plan, breaking priority ties by lower
// plan cost and cost ties by earlier position in goals. A nil Decision
// with a nil error means no candidate was reachable; like the planner's
// nil plan, that is an outcome, not a failure.
func (a *Arbiter) Decide(ctx context.Context, initial goap.WorldState, goals []goap.GoalState, maxDepth int) (*Decision, error) {
	if len(goals) == 0 {
		return nil, nil
	}

	// One slot per goal: slots are written by exactly one goroutine each.
	plans := make([][]goap.Action, len(goals))

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range goals {
		i := i
		eg.Go(func() error {
			plan, err := a.planner.PlanContext(egCtx, initial, goals[i], maxDepth)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := -1
	var bestCost float64
	for i, plan := range plans {
		if plan == nil {
			a.logger.Debug("goal unreachable",
				zap.String("goal", goals[i].Name),
				zap.Float64("priority", goals[i].Priority))
			continue
		}
		cost := goap.PlanCost(plan)
		if best == -1 ||
			goals[i].Priority > goals[best].Priority ||
			(goals[i].Priority == goals[best].Priority && cost < bestCost) {
			best = i
			bestCost = cost
		}
	}
	if best == -1 {
		a.logger.Info("no candidate goal is reachable", zap.Int("considered", len(goals)))
		return nil, nil
	}

	a.logger.Info("goal selected",
		zap.String("goal", goals[best].Name),
		zap.Float64("priority", goals[best].Priority),
		zap.Int("steps", len(plans[best])),
		zap.Float64("cost", bestCost))

	return &Decision{
		Goal:       goals[best],
		Plan:       plans[best],
		Cost:       bestCost,
		Considered: len(goals),
	}, nil
}
