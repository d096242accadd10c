// Package kernel derives planner world states from raw observations with
// a Datalog rule base. The orchestration layer records what it can see
// (observed key/value pairs); rules turn those observations into the
// typed facts the planner searches over, so catalogue authors can write
// preconditions against derived knowledge instead of raw signals.
//
// Two predicates form the contract with the rule base:
//
//	fact(Key, Value)     facts for the planner's world state
//	resource(Key, N)     integer resource counters
//
// Observations are injected as observed(Key, Value) and
// observed_resource(Key, N); a pass-through rule makes every observation
// a fact unless the rule base says otherwise.
package kernel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"plannerd/pkg/goap"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Engine accumulates rule fragments and observations, and evaluates them
// into a WorldState on demand. Each Derive runs against a fresh fact
// store, so a bad rule set can never poison later derivations.
type Engine struct {
	mu        sync.RWMutex
	fragments []string
	facts     map[string]goap.Value
	resources map[string]int
}

// NewEngine returns an empty derivation engine.
func NewEngine() *Engine {
	return &Engine{
		facts:     make(map[string]goap.Value),
		resources: make(map[string]int),
	}
}

// LoadRules parses and retains a Datalog source fragment. Parsing happens
// eagerly so authoring mistakes surface at load time, not mid-derivation.
func (e *Engine) LoadRules(src string) error {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	if _, err := parse.Unit(strings.NewReader(src)); err != nil {
		return fmt.Errorf("parse rules: %w", err)
	}

	e.mu.Lock()
	e.fragments = append(e.fragments, src)
	e.mu.Unlock()
	return nil
}

// LoadRulesFile loads one .mg rule file.
func (e *Engine) LoadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules %s: %w", path, err)
	}
	if err := e.LoadRules(string(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadRulesDir loads every .mg file in dir in lexical order. A missing
// directory is not an error: rules are optional.
func (e *Engine) LoadRulesDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read rules dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mg") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := e.LoadRulesFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// RuleCount reports how many fragments have been loaded.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.fragments)
}

// Observe records a raw observation. Later observations of the same key
// overwrite earlier ones.
func (e *Engine) Observe(key string, v goap.Value) {
	e.mu.Lock()
	e.facts[key] = v
	e.mu.Unlock()
}

// ObserveAll records a batch of observations.
func (e *Engine) ObserveAll(facts map[string]goap.Value) {
	e.mu.Lock()
	for k, v := range facts {
		e.facts[k] = v
	}
	e.mu.Unlock()
}

// ObserveResource records an integer resource counter.
func (e *Engine) ObserveResource(key string, n int) {
	e.mu.Lock()
	e.resources[key] = n
	e.mu.Unlock()
}

// ObserveState records every fact and resource of a world state, e.g. to
// re-derive from where an executed plan left off.
func (e *Engine) ObserveState(state goap.WorldState) {
	e.mu.Lock()
	for k, v := range state.Facts {
		e.facts[k] = v
	}
	for k, n := range state.Resources {
		e.resources[k] = n
	}
	e.mu.Unlock()
}

// Reset drops all observations but keeps the rule base.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.facts = make(map[string]goap.Value)
	e.resources = make(map[string]int)
	e.mu.Unlock()
}

// Derive evaluates the rule base over the current observations and
// returns the resulting world state. Conflicting derived values for one
// fact key are an authoring error and surface as such; nothing is
// silently dropped.
func (e *Engine) Derive(ctx context.Context) (goap.WorldState, error) {
	if err := ctx.Err(); err != nil {
		return goap.WorldState{}, err
	}

	e.mu.RLock()
	source := e.programSource()
	e.mu.RUnlock()

	if strings.TrimSpace(source) == "" {
		return goap.NewWorldState(), nil
	}

	unit, err := parse.Unit(strings.NewReader(source))
	if err != nil {
		return goap.WorldState{}, fmt.Errorf("parse derivation program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return goap.WorldState{}, fmt.Errorf("analyze derivation program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()

	// Evaluation has no suspension points, so run it in a goroutine and
	// race it against the context the way long queries are handled.
	evalErr := make(chan error, 1)
	go func() {
		_, err := mengine.EvalProgramWithStats(programInfo, store)
		evalErr <- err
	}()
	select {
	case err := <-evalErr:
		if err != nil {
			return goap.WorldState{}, fmt.Errorf("evaluate derivation program: %w", err)
		}
	case <-ctx.Done():
		return goap.WorldState{}, ctx.Err()
	}

	state := goap.NewWorldState()
	if err := e.collectFacts(store, &state); err != nil {
		return goap.WorldState{}, err
	}
	if err := e.collectResources(store, &state); err != nil {
		return goap.WorldState{}, err
	}
	return state, nil
}

// programSource renders rule fragments plus observations as one Datalog
// program. Observations are sorted so the program text is deterministic.
func (e *Engine) programSource() string {
	var sb strings.Builder
	for _, frag := range e.fragments {
		sb.WriteString(frag)
		sb.WriteString("\n")
	}

	if len(e.facts) > 0 {
		sb.WriteString("fact(K, V) :- observed(K, V).\n")
		keys := make([]string, 0, len(e.facts))
		for k := range e.facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("observed(%q, %s).\n", k, renderTerm(e.facts[k])))
		}
	}

	if len(e.resources) > 0 {
		sb.WriteString("resource(K, N) :- observed_resource(K, N).\n")
		keys := make([]string, 0, len(e.resources))
		for k := range e.resources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("observed_resource(%q, %d).\n", k, e.resources[k]))
		}
	}

	return sb.String()
}

// renderTerm renders a fact value as a Datalog constant. Strings that
// already carry the /name prefix stay name constants; booleans become the
// /true and /false names.
func renderTerm(v goap.Value) string {
	switch v.Kind() {
	case goap.KindString:
		s, _ := v.StringValue()
		if strings.HasPrefix(s, "/") {
			return s
		}
		return fmt.Sprintf("%q", s)
	case goap.KindInt:
		i, _ := v.IntValue()
		return fmt.Sprintf("%d", i)
	default:
		b, _ := v.BoolValue()
		if b {
			return "/true"
		}
		return "/false"
	}
}

func (e *Engine) collectFacts(store factstore.FactStore, state *goap.WorldState) error {
	sym := ast.PredicateSym{Symbol: "fact", Arity: 2}
	return store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		key, err := termKey(atom.Args[0])
		if err != nil {
			return fmt.Errorf("fact key: %w", err)
		}
		value, err := termValue(atom.Args[1])
		if err != nil {
			return fmt.Errorf("fact %q: %w", key, err)
		}
		if prev, ok := state.Facts[key]; ok && !prev.Equal(value) {
			return fmt.Errorf("fact %q derived with conflicting values %v and %v", key, prev, value)
		}
		state.Facts[key] = value
		return nil
	})
}

func (e *Engine) collectResources(store factstore.FactStore, state *goap.WorldState) error {
	sym := ast.PredicateSym{Symbol: "resource", Arity: 2}
	return store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		key, err := termKey(atom.Args[0])
		if err != nil {
			return fmt.Errorf("resource key: %w", err)
		}
		c, ok := atom.Args[1].(ast.Constant)
		if !ok || c.Type != ast.NumberType {
			return fmt.Errorf("resource %q must be an integer, got %v", key, atom.Args[1])
		}
		if prev, ok := state.Resources[key]; ok && int64(prev) != c.NumValue {
			return fmt.Errorf("resource %q derived with conflicting counts %d and %d", key, prev, c.NumValue)
		}
		state.Resources[key] = int(c.NumValue)
		return nil
	})
}

func termKey(term ast.BaseTerm) (string, error) {
	c, ok := term.(ast.Constant)
	if !ok {
		return "", fmt.Errorf("expected a constant, got %v", term)
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol, nil
	default:
		return "", fmt.Errorf("keys must be strings or names, got %v", c)
	}
}

// termValue maps a Datalog constant back to a typed fact value. Name
// constants keep their slash, except /true and /false which round-trip
// to booleans.
func termValue(term ast.BaseTerm) (goap.Value, error) {
	c, ok := term.(ast.Constant)
	if !ok {
		return goap.Value{}, fmt.Errorf("expected a constant, got %v", term)
	}
	switch c.Type {
	case ast.StringType:
		return goap.String(c.Symbol), nil
	case ast.NameType:
		switch c.Symbol {
		case "/true":
			return goap.Bool(true), nil
		case "/false":
			return goap.Bool(false), nil
		}
		return goap.String(c.Symbol), nil
	case ast.NumberType:
		return goap.Int(c.NumValue), nil
	case ast.Float64Type:
		return goap.Value{}, fmt.Errorf("fractional values are not valid planner facts")
	default:
		return goap.Value{}, fmt.Errorf("unsupported constant %v", c)
	}
}
