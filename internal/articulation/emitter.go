// Package articulation renders plans, decisions, and world states for
// humans. The CLI and the interactive console share one Emitter so a
// plan looks the same everywhere it is shown. Pure string building; the
// caller decides where the text goes.
package articulation

import (
	"fmt"
	"sort"
	"strings"

	"plannerd/internal/advisor"
	"plannerd/internal/arbiter"
	"plannerd/internal/store"
	"plannerd/pkg/goap"
)

// Emitter formats planner output as markdown and plain text.
type Emitter struct{}

// NewEmitter creates an Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// PlanReport renders a plan as markdown: goal header, desired facts, a
// step table, and the total cost. An empty plan means the goal already
// holds and renders as a one-line notice instead of a table.
func (e *Emitter) PlanReport(goal goap.GoalState, plan []goap.Action) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Plan: %s\n\n", goal.Name))
	sb.WriteString(desiredFacts(goal))

	if len(plan) == 0 {
		sb.WriteString("_Goal already satisfied; nothing to do._\n")
		return sb.String()
	}

	sb.WriteString("| # | Action | Role | Cost | Duration |\n")
	sb.WriteString("|---|--------|------|------|----------|\n")
	for i, action := range plan {
		duration := action.DurationEstimate
		if duration == "" {
			duration = "-"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.1f | %s |\n",
			i+1, action.ID, action.AgentRole, action.Cost, duration))
	}
	sb.WriteString(fmt.Sprintf("\n**Total cost:** %.1f over %d steps\n",
		goap.PlanCost(plan), len(plan)))
	return sb.String()
}

// NoPlanReport explains a failed search. When the advisor produced
// suggestions, the nearest catalogue actions are listed so the user can
// see what the catalogue almost offered.
func (e *Emitter) NoPlanReport(goal goap.GoalState, suggestions []advisor.Suggestion) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## No plan found: %s\n\n", goal.Name))
	sb.WriteString(desiredFacts(goal))
	sb.WriteString("No action sequence reaches this goal from the current state.\n")

	if len(suggestions) == 0 {
		return sb.String()
	}
	sb.WriteString("\n### Nearest actions\n\n")
	sb.WriteString("| Action | Similarity | Description |\n")
	sb.WriteString("|--------|------------|-------------|\n")
	for _, s := range suggestions {
		sb.WriteString(fmt.Sprintf("| %s | %.3f | %s |\n",
			s.ActionID, s.Score, s.Description))
	}
	return sb.String()
}

// DecisionReport renders an arbitration result: which goal won, how
// many were considered, and the winning plan. A nil decision means no
// candidate was reachable.
func (e *Emitter) DecisionReport(decision *arbiter.Decision) string {
	if decision == nil {
		return "_No candidate goal is reachable._\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Considered %d goals; selected **%s** (priority %.0f).\n\n",
		decision.Considered, decision.Goal.Name, decision.Goal.Priority))
	sb.WriteString(e.PlanReport(decision.Goal, decision.Plan))
	return sb.String()
}

// StateDump renders a world state as indented plain text, keys sorted.
func (e *Emitter) StateDump(state goap.WorldState) string {
	if len(state.Facts) == 0 && len(state.Resources) == 0 {
		return "(empty state)\n"
	}
	var sb strings.Builder
	if len(state.Facts) > 0 {
		sb.WriteString("Facts:\n")
		keys := make([]string, 0, len(state.Facts))
		for k := range state.Facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s = %s\n", k, state.Facts[k]))
		}
	}
	if len(state.Resources) > 0 {
		sb.WriteString("Resources:\n")
		keys := make([]string, 0, len(state.Resources))
		for k := range state.Resources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s = %d\n", k, state.Resources[k]))
		}
	}
	return sb.String()
}

// ActionTable renders catalogue actions as markdown with inline
// precondition and effect summaries.
func (e *Emitter) ActionTable(actions []goap.Action) string {
	if len(actions) == 0 {
		return "_No applicable actions._\n"
	}
	var sb strings.Builder
	sb.WriteString("| Action | Role | Cost | Preconditions | Effects |\n")
	sb.WriteString("|--------|------|------|---------------|---------|\n")
	for _, action := range actions {
		sb.WriteString(fmt.Sprintf("| %s | %s | %.1f | %s | %s |\n",
			action.ID, action.AgentRole, action.Cost,
			factPairs(action.Preconditions), factPairs(action.Effects)))
	}
	return sb.String()
}

// HistoryTable renders stored plan records, newest first, the way
// ListPlans returns them.
func (e *Emitter) HistoryTable(records []store.PlanRecord) string {
	if len(records) == 0 {
		return "_No stored plans._\n"
	}
	var sb strings.Builder
	sb.WriteString("| ID | Goal | Status | Steps | Cost | Created |\n")
	sb.WriteString("|----|------|--------|-------|------|---------|\n")
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.1f | %s |\n",
			shortID(rec.ID), rec.GoalName, rec.Status, rec.StepCount, rec.Cost,
			rec.CreatedAt.Format("2006-01-02 15:04")))
	}
	return sb.String()
}

// RecordReport renders one stored plan in full: status line, step
// table, and the initial state it was planned from.
func (e *Emitter) RecordReport(rec *store.PlanRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Plan %s\n\n", shortID(rec.ID)))
	sb.WriteString(fmt.Sprintf("Goal **%s**, status **%s**, saved %s.\n\n",
		rec.GoalName, rec.Status, rec.CreatedAt.Format("2006-01-02 15:04")))

	if len(rec.Steps) == 0 {
		sb.WriteString("_Goal was already satisfied; the plan has no steps._\n")
	} else {
		sb.WriteString("| # | Action | Role | Cost | Description |\n")
		sb.WriteString("|---|--------|------|------|-------------|\n")
		for _, step := range rec.Steps {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.1f | %s |\n",
				step.Index+1, step.ActionID, step.AgentRole, step.Cost, step.Description))
		}
		sb.WriteString(fmt.Sprintf("\n**Total cost:** %.1f over %d steps\n", rec.Cost, rec.StepCount))
	}

	sb.WriteString("\nPlanned from:\n\n```\n")
	sb.WriteString(e.StateDump(rec.Initial))
	sb.WriteString("```\n")
	return sb.String()
}

// desiredFacts lists a goal's desired facts as markdown bullets, keys
// sorted. Empty goals contribute nothing.
func desiredFacts(goal goap.GoalState) string {
	if len(goal.Desired) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Desired facts:\n")
	keys := make([]string, 0, len(goal.Desired))
	for k := range goal.Desired {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- `%s = %s`\n", k, goal.Desired[k]))
	}
	sb.WriteString("\n")
	return sb.String()
}

// factPairs flattens a fact map to "k=v, k=v" with sorted keys.
func factPairs(facts map[string]goap.Value) string {
	if len(facts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, facts[k]))
	}
	return strings.Join(pairs, ", ")
}

// shortID trims a UUID to its first segment for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
