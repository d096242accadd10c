package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"plannerd/pkg/goap"

	"gopkg.in/yaml.v3"
)

type stateFile struct {
	Facts     map[string]interface{} `yaml:"facts"`
	Resources map[string]int         `yaml:"resources"`
}

type goalSpec struct {
	Name     string                 `yaml:"name"`
	Desired  map[string]interface{} `yaml:"desired_facts"`
	Priority float64                `yaml:"priority"`
}

type goalsFile struct {
	Goals []goalSpec `yaml:"goals"`
}

// ParseState decodes a world-state document: a facts mapping plus an
// optional integer resources mapping.
func ParseState(data []byte) (goap.WorldState, error) {
	var file stateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return goap.WorldState{}, fmt.Errorf("parse state: %w", err)
	}

	facts, err := FactMap(file.Facts)
	if err != nil {
		return goap.WorldState{}, err
	}

	state := goap.WorldState{Facts: facts, Resources: file.Resources}
	if state.Resources == nil {
		state.Resources = make(map[string]int)
	}
	return state, nil
}

// LoadStateFile loads a world state from a YAML file.
func LoadStateFile(path string) (goap.WorldState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return goap.WorldState{}, fmt.Errorf("read state %s: %w", path, err)
	}
	state, err := ParseState(data)
	if err != nil {
		return goap.WorldState{}, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}

func (g goalSpec) toGoal() (goap.GoalState, error) {
	if strings.TrimSpace(g.Name) == "" {
		return goap.GoalState{}, fmt.Errorf("missing goal name")
	}
	if len(g.Desired) == 0 {
		return goap.GoalState{}, fmt.Errorf("goal %q has no desired facts", g.Name)
	}
	desired, err := FactMap(g.Desired)
	if err != nil {
		return goap.GoalState{}, fmt.Errorf("goal %q: %w", g.Name, err)
	}
	return goap.GoalState{Name: g.Name, Desired: desired, Priority: g.Priority}, nil
}

// ParseGoal decodes a single goal document.
func ParseGoal(data []byte) (goap.GoalState, error) {
	var spec goalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return goap.GoalState{}, fmt.Errorf("parse goal: %w", err)
	}
	return spec.toGoal()
}

// LoadGoalFile loads one goal from a YAML file.
func LoadGoalFile(path string) (goap.GoalState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return goap.GoalState{}, fmt.Errorf("read goal %s: %w", path, err)
	}
	goal, err := ParseGoal(data)
	if err != nil {
		return goap.GoalState{}, fmt.Errorf("%s: %w", path, err)
	}
	return goal, nil
}

// LoadGoalsFile loads a list of candidate goals for arbitration. Order is
// preserved: it breaks priority-and-cost ties deterministically.
func LoadGoalsFile(path string) ([]goap.GoalState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read goals %s: %w", path, err)
	}

	var file goalsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse goals %s: %w", path, err)
	}
	if len(file.Goals) == 0 {
		return nil, fmt.Errorf("%s: no goals defined", path)
	}

	goals := make([]goap.GoalState, 0, len(file.Goals))
	for _, spec := range file.Goals {
		goal, err := spec.toGoal()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

// ParseFactAssignments parses a compact "key=value,key=value" string into
// typed facts. Values parse as bool, then int, then fall back to string.
// Used by the console and the --goal-facts flag.
func ParseFactAssignments(s string) (map[string]goap.Value, error) {
	facts := make(map[string]goap.Value)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, raw, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("assignment %q: want key=value", part)
		}
		facts[key] = literalValue(strings.TrimSpace(raw))
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("no assignments in %q", s)
	}
	return facts, nil
}

func literalValue(raw string) goap.Value {
	if b, err := strconv.ParseBool(raw); err == nil {
		return goap.Bool(b)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return goap.Int(i)
	}
	return goap.String(strings.Trim(raw, `"`))
}
