package goap

// Action is an atomic, preconditioned state transformation. Actions are
// catalogue entries: built once by the caller, immutable afterwards, and
// reused across searches. AgentRole names the collaborator that will
// execute the action once planned; the planner itself never dispatches it.
type Action struct {
	ID               string
	AgentRole        string
	Description      string
	Preconditions    map[string]Value
	Effects          map[string]Value
	Cost             float64
	DurationEstimate string
}

// NewAction returns an action with initialized maps and the default cost
// of 1.0. Cost must stay non-negative.
func NewAction(id, agentRole string) Action {
	return Action{
		ID:            id,
		AgentRole:     agentRole,
		Preconditions: make(map[string]Value),
		Effects:       make(map[string]Value),
		Cost:          1.0,
	}
}

// CanExecute reports whether every precondition is present and equal in
// the state's facts. A missing key is always a failure.
func (a Action) CanExecute(state WorldState) bool {
	for key, want := range a.Preconditions {
		got, ok := state.Facts[key]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Apply returns a copy of state with the action's effects merged into its
// facts, overwriting existing keys. Resources pass through unchanged. The
// input state is never mutated: applying the same action to equal states
// must always produce equal successors.
func (a Action) Apply(state WorldState) WorldState {
	next := state.Copy()
	for key, v := range a.Effects {
		next.Facts[key] = v
	}
	return next
}
