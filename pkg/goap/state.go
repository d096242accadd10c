package goap

import (
	"sort"
	"strconv"
	"strings"
)

// WorldState is a snapshot of discrete facts and numeric resources at one
// point in a hypothetical plan. States are copy-on-write: the planner
// derives successors with Copy and never mutates a state after creation,
// so a state may be shared freely once built.
type WorldState struct {
	Facts     map[string]Value
	Resources map[string]int
}

// NewWorldState returns an empty state with both maps initialized.
func NewWorldState() WorldState {
	return WorldState{
		Facts:     make(map[string]Value),
		Resources: make(map[string]int),
	}
}

// Satisfies reports whether every desired fact of the goal is present and
// equal in this state. A missing key never satisfies; there are no
// wildcard or default semantics.
func (s WorldState) Satisfies(goal GoalState) bool {
	for key, want := range goal.Desired {
		got, ok := s.Facts[key]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// DistanceTo estimates remaining cost to the goal: 1.0 per desired fact
// that is absent, 0.5 per fact present with the wrong value. The estimate
// is O(len(goal.Desired)) and never inspects the action catalogue, which
// also means it can overestimate when actions cost less than the per-fact
// penalties. That behavior is intentional and relied upon.
func (s WorldState) DistanceTo(goal GoalState) float64 {
	var d float64
	for key, want := range goal.Desired {
		got, ok := s.Facts[key]
		switch {
		case !ok:
			d += 1.0
		case !got.Equal(want):
			d += 0.5
		}
	}
	return d
}

// Copy returns a state with independent shallow copies of both maps.
// Mutating the copy never affects the original.
func (s WorldState) Copy() WorldState {
	facts := make(map[string]Value, len(s.Facts))
	for k, v := range s.Facts {
		facts[k] = v
	}
	resources := make(map[string]int, len(s.Resources))
	for k, v := range s.Resources {
		resources[k] = v
	}
	return WorldState{Facts: facts, Resources: resources}
}

// Key returns the canonical serialization of the state's facts: keys
// sorted, each entry rendered as quoted-key=tagged-value and joined with
// semicolons. Two states are one search node exactly when their Keys are
// equal. Resources are bookkeeping only and never part of identity.
func (s WorldState) Key() string {
	keys := make([]string, 0, len(s.Facts))
	for k := range s.Facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(strconv.Quote(k))
		sb.WriteByte('=')
		sb.WriteString(s.Facts[k].canonical())
		sb.WriteByte(';')
	}
	return sb.String()
}

// GoalState is a named predicate over facts: satisfied when every entry
// of Desired is present and equal in a state's facts. Priority is not
// consumed by the single-goal planner; it exists so callers that arbitrate
// between competing goals can rank them (see internal/arbiter).
type GoalState struct {
	Name     string
	Desired  map[string]Value
	Priority float64
}

// NewGoal builds a goal over the given desired facts.
func NewGoal(name string, desired map[string]Value) GoalState {
	if desired == nil {
		desired = make(map[string]Value)
	}
	return GoalState{Name: name, Desired: desired}
}
