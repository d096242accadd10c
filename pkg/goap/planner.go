// Package goap implements goal-oriented action planning: given a starting
// world state, a goal, and a catalogue of atomic actions, it searches for
// the lowest-cost ordered action sequence that transforms the start state
// into one satisfying the goal.
//
// The search is A* over the implicit graph whose nodes are world states
// and whose edges are action applications. Output is deterministic for a
// fixed catalogue order and input state: frontier ties are broken by
// insertion order, earliest first. "No plan" is a normal outcome signaled
// by a nil slice, never an error.
package goap

import (
	"container/heap"
	"context"
)

// DefaultMaxDepth bounds plan length when the caller does not.
const DefaultMaxDepth = 20

// Planner searches an action catalogue for plans. It holds no mutable
// state between calls, so a single Planner is safe for concurrent use as
// long as the catalogue actions stay immutable.
type Planner struct {
	actions []Action
}

// NewPlanner builds a planner over a copy of the given catalogue. The
// catalogue's order is significant: it decides tie-breaks, so two planners
// built from differently ordered catalogues may return different (equally
// cheap) plans.
func NewPlanner(actions []Action) *Planner {
	catalogue := make([]Action, len(actions))
	copy(catalogue, actions)
	return &Planner{actions: catalogue}
}

// Actions returns a copy of the planner's catalogue in order.
func (p *Planner) Actions() []Action {
	out := make([]Action, len(p.actions))
	copy(out, p.actions)
	return out
}

// planNode is one frontier entry: a reached state, the cheapest-known
// path to it, and its scores. seq is the insertion counter that makes
// tie-breaking deterministic.
type planNode struct {
	f     float64
	g     float64
	seq   uint64
	state WorldState
	path  []int
}

// frontier is a min-heap ordered by (f, seq).
type frontier []*planNode

func (fr frontier) Len() int { return len(fr) }

func (fr frontier) Less(i, j int) bool {
	if fr[i].f != fr[j].f {
		return fr[i].f < fr[j].f
	}
	// Equal f: the earlier-inserted node wins. Plans must be reproducible
	// byte for byte, so this cannot be left to heap ordering.
	return fr[i].seq < fr[j].seq
}

func (fr frontier) Swap(i, j int) { fr[i], fr[j] = fr[j], fr[i] }

func (fr *frontier) Push(x interface{}) { *fr = append(*fr, x.(*planNode)) }

func (fr *frontier) Pop() interface{} {
	old := *fr
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*fr = old[:n-1]
	return node
}

// Plan searches for the lowest-cost action sequence from initial to a
// state satisfying goal, no longer than maxDepth steps (DefaultMaxDepth
// when maxDepth <= 0). It returns an empty, non-nil slice when initial
// already satisfies goal, and nil when no plan exists within bounds. Nil
// is the expected outcome of exhausting a bounded search, not an error.
func (p *Planner) Plan(initial WorldState, goal GoalState, maxDepth int) []Action {
	plan, _ := p.PlanContext(context.Background(), initial, goal, maxDepth)
	return plan
}

// PlanContext is Plan with cancellation: it checks ctx once per expansion
// and returns ctx's error if it fires. Absent cancellation the result is
// identical to Plan, including its determinism.
func (p *Planner) PlanContext(ctx context.Context, initial WorldState, goal GoalState, maxDepth int) ([]Action, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	// The insertion counter is local to this call: concurrent searches
	// must not interfere with each other's tie-breaking.
	var seq uint64
	fr := &frontier{}
	heap.Push(fr, &planNode{f: initial.DistanceTo(goal), seq: seq, state: initial})
	seq++

	// explored keys states already expanded. Dedup happens lazily on pop:
	// a state can sit in the frontier several times via different paths,
	// and only the cheapest pop survives.
	explored := make(map[string]struct{})

	for fr.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := heap.Pop(fr).(*planNode)

		if node.state.Satisfies(goal) {
			return p.materialize(node.path), nil
		}
		if len(node.path) >= maxDepth {
			continue
		}

		key := node.state.Key()
		if _, seen := explored[key]; seen {
			continue
		}
		explored[key] = struct{}{}

		for idx := range p.actions {
			action := &p.actions[idx]
			if !action.CanExecute(node.state) {
				continue
			}
			successor := action.Apply(node.state)
			path := make([]int, len(node.path)+1)
			copy(path, node.path)
			path[len(node.path)] = idx

			g := node.g + action.Cost
			heap.Push(fr, &planNode{
				f:     g + successor.DistanceTo(goal),
				g:     g,
				seq:   seq,
				state: successor,
				path:  path,
			})
			seq++
		}
	}

	return nil, nil
}

// materialize turns a path of catalogue indices into the action sequence.
// An empty path yields an empty, non-nil plan: "already satisfied" and
// "no plan" must stay distinguishable.
func (p *Planner) materialize(path []int) []Action {
	plan := make([]Action, len(path))
	for i, idx := range path {
		plan[i] = p.actions[idx]
	}
	return plan
}

// ApplicableActions filters the catalogue down to actions whose
// preconditions hold in state, preserving catalogue order. It exists for
// introspection and tooling; the search loop does its own filtering.
func (p *Planner) ApplicableActions(state WorldState) []Action {
	var out []Action
	for _, a := range p.actions {
		if a.CanExecute(state) {
			out = append(out, a)
		}
	}
	return out
}

// PlanCost sums the action costs of a plan. An empty or nil plan costs 0.
func PlanCost(plan []Action) float64 {
	var total float64
	for _, a := range plan {
		total += a.Cost
	}
	return total
}

// ValidatePlan replays plan step by step from initial, failing if any
// step's preconditions do not hold in the then-current state, and reports
// whether the final state satisfies goal. It is an independent check: the
// plan may come from anywhere, not just this package's search, which is
// why it is a free function rather than a Planner method.
func ValidatePlan(plan []Action, initial WorldState, goal GoalState) bool {
	state := initial
	for _, a := range plan {
		if !a.CanExecute(state) {
			return false
		}
		state = a.Apply(state)
	}
	return state.Satisfies(goal)
}
