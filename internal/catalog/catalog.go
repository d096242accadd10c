// Package catalog loads action catalogues, world states, and goals from
// YAML. The loader is the guard rail for catalogue authoring: it rejects
// malformed definitions (duplicate IDs, negative costs, fact values that
// are not string/int/bool) so the planner can assume well-formed input.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"plannerd/pkg/goap"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalogue format.
type File struct {
	Version int          `yaml:"version"`
	Actions []ActionSpec `yaml:"actions"`
}

// ActionSpec is one catalogue entry as authored. Cost is a pointer so an
// omitted field can default to 1.0 while an explicit zero stays zero.
type ActionSpec struct {
	ID               string                 `yaml:"id"`
	AgentRole        string                 `yaml:"agent_role"`
	Description      string                 `yaml:"description"`
	Preconditions    map[string]interface{} `yaml:"preconditions"`
	Effects          map[string]interface{} `yaml:"effects"`
	Cost             *float64               `yaml:"cost"`
	DurationEstimate string                 `yaml:"duration_estimate"`
}

// Parse decodes one catalogue document and validates every entry.
func Parse(data []byte) ([]goap.Action, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}

	actions := make([]goap.Action, 0, len(file.Actions))
	seen := make(map[string]struct{}, len(file.Actions))
	for i, spec := range file.Actions {
		action, err := spec.toAction()
		if err != nil {
			return nil, fmt.Errorf("action %d (%q): %w", i, spec.ID, err)
		}
		if _, dup := seen[action.ID]; dup {
			return nil, fmt.Errorf("duplicate action id %q", action.ID)
		}
		seen[action.ID] = struct{}{}
		actions = append(actions, action)
	}
	return actions, nil
}

// LoadFile loads a single catalogue file.
func LoadFile(path string) ([]goap.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	actions, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return actions, nil
}

// LoadDir loads every .yaml/.yml file in dir, in lexical filename order.
// Catalogue order decides planner tie-breaks, so the order must be stable
// across runs and machines; lexical sorting gives that.
func LoadDir(dir string) ([]goap.Action, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalogue dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogueFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var all []goap.Action
	seen := make(map[string]string) // action id -> filename
	for _, name := range names {
		actions, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			if prev, dup := seen[a.ID]; dup {
				return nil, fmt.Errorf("%s: action id %q already defined in %s", name, a.ID, prev)
			}
			seen[a.ID] = name
		}
		all = append(all, actions...)
	}
	return all, nil
}

func isCatalogueFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (s ActionSpec) toAction() (goap.Action, error) {
	if strings.TrimSpace(s.ID) == "" {
		return goap.Action{}, fmt.Errorf("missing id")
	}

	pre, err := FactMap(s.Preconditions)
	if err != nil {
		return goap.Action{}, fmt.Errorf("preconditions: %w", err)
	}
	eff, err := FactMap(s.Effects)
	if err != nil {
		return goap.Action{}, fmt.Errorf("effects: %w", err)
	}

	cost := 1.0
	if s.Cost != nil {
		if *s.Cost < 0 {
			return goap.Action{}, fmt.Errorf("cost must be non-negative, got %v", *s.Cost)
		}
		cost = *s.Cost
	}

	return goap.Action{
		ID:               s.ID,
		AgentRole:        s.AgentRole,
		Description:      s.Description,
		Preconditions:    pre,
		Effects:          eff,
		Cost:             cost,
		DurationEstimate: s.DurationEstimate,
	}, nil
}

// FactMap coerces a decoded YAML/JSON mapping into typed fact values.
func FactMap(raw map[string]interface{}) (map[string]goap.Value, error) {
	facts := make(map[string]goap.Value, len(raw))
	for key, v := range raw {
		val, err := goap.ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", key, err)
		}
		facts[key] = val
	}
	return facts, nil
}
