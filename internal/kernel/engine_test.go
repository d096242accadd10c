package kernel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plannerd/pkg/goap"
)

func TestDerivePassThrough(t *testing.T) {
	e := NewEngine()
	e.Observe("file_read", goap.Bool(true))
	e.Observe("branch", goap.String("main"))
	e.Observe("open_issues", goap.Int(3))
	e.ObserveResource("tokens", 1200)

	state, err := e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if v, ok := state.Facts["file_read"]; !ok || !v.Equal(goap.Bool(true)) {
		t.Errorf("file_read = %v, want true", v)
	}
	if v, ok := state.Facts["branch"]; !ok || !v.Equal(goap.String("main")) {
		t.Errorf("branch = %v, want main", v)
	}
	if v, ok := state.Facts["open_issues"]; !ok || !v.Equal(goap.Int(3)) {
		t.Errorf("open_issues = %v, want 3", v)
	}
	if state.Resources["tokens"] != 1200 {
		t.Errorf("tokens = %d, want 1200", state.Resources["tokens"])
	}
}

func TestDeriveRules(t *testing.T) {
	e := NewEngine()
	err := e.LoadRules(`
fact("tests_passing", /true) :- observed("exit_code", 0).
fact("build_clean", /true) :- observed("exit_code", 0), observed("warnings", 0).
`)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	e.Observe("exit_code", goap.Int(0))
	e.Observe("warnings", goap.Int(0))

	state, err := e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if v, ok := state.Facts["tests_passing"]; !ok || !v.Equal(goap.Bool(true)) {
		t.Errorf("tests_passing = %v, want true", v)
	}
	if v, ok := state.Facts["build_clean"]; !ok || !v.Equal(goap.Bool(true)) {
		t.Errorf("build_clean = %v, want true", v)
	}
	// The raw observation still passes through alongside the derived facts.
	if v, ok := state.Facts["exit_code"]; !ok || !v.Equal(goap.Int(0)) {
		t.Errorf("exit_code = %v, want 0", v)
	}
}

func TestDeriveNameConstantsStayStrings(t *testing.T) {
	e := NewEngine()
	if err := e.LoadRules(`fact("status", /blocked).`); err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	state, err := e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if v := state.Facts["status"]; !v.Equal(goap.String("/blocked")) {
		t.Errorf("status = %v, want /blocked", v)
	}
}

func TestDeriveInlineFactsWithoutObservations(t *testing.T) {
	e := NewEngine()
	err := e.LoadRules(`
fact("workspace_ready", /true).
resource("workers", 4).
`)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	state, err := e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if v := state.Facts["workspace_ready"]; !v.Equal(goap.Bool(true)) {
		t.Errorf("workspace_ready = %v, want true", v)
	}
	if state.Resources["workers"] != 4 {
		t.Errorf("workers = %d, want 4", state.Resources["workers"])
	}
}

func TestDeriveEmptyEngine(t *testing.T) {
	state, err := NewEngine().Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(state.Facts) != 0 || len(state.Resources) != 0 {
		t.Errorf("empty engine derived %v", state)
	}
}

func TestDeriveConflictingFactValues(t *testing.T) {
	e := NewEngine()
	err := e.LoadRules(`
fact("mode", "fast").
fact("mode", "safe").
`)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	_, err = e.Derive(context.Background())
	if err == nil {
		t.Fatal("expected conflict error, got none")
	}
	if !strings.Contains(err.Error(), "conflicting") {
		t.Errorf("error = %v, want mention of conflicting values", err)
	}
}

func TestDeriveRejectsFractionalFacts(t *testing.T) {
	e := NewEngine()
	if err := e.LoadRules(`fact("ratio", 0.5).`); err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	_, err := e.Derive(context.Background())
	if err == nil {
		t.Fatal("expected error for fractional fact value")
	}
	if !strings.Contains(err.Error(), "fractional") {
		t.Errorf("error = %v, want mention of fractional values", err)
	}
}

func TestLoadRulesRejectsBadSyntax(t *testing.T) {
	e := NewEngine()
	if err := e.LoadRules(`fact("broken"`); err == nil {
		t.Fatal("expected parse error")
	}
	if e.RuleCount() != 0 {
		t.Errorf("RuleCount = %d after failed load, want 0", e.RuleCount())
	}
}

func TestLoadRulesDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("10-base.mg", `fact("base_loaded", /true).`)
	write("20-extra.mg", `fact("extra_loaded", /true).`)
	write("notes.txt", "not a rule file")

	e := NewEngine()
	if err := e.LoadRulesDir(dir); err != nil {
		t.Fatalf("LoadRulesDir: %v", err)
	}
	if e.RuleCount() != 2 {
		t.Fatalf("RuleCount = %d, want 2", e.RuleCount())
	}

	state, err := e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	for _, key := range []string{"base_loaded", "extra_loaded"} {
		if v := state.Facts[key]; !v.Equal(goap.Bool(true)) {
			t.Errorf("%s = %v, want true", key, v)
		}
	}
}

func TestLoadRulesDirMissingIsNotAnError(t *testing.T) {
	e := NewEngine()
	if err := e.LoadRulesDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("LoadRulesDir on missing dir: %v", err)
	}
}

func TestObserveStateAndReset(t *testing.T) {
	base := goap.NewWorldState()
	base.Facts["branch"] = goap.String("main")
	base.Resources["tokens"] = 50

	e := NewEngine()
	e.ObserveState(base)

	state, err := e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !state.Facts["branch"].Equal(goap.String("main")) || state.Resources["tokens"] != 50 {
		t.Fatalf("derived state %v does not reflect observed state", state)
	}

	e.Reset()
	state, err = e.Derive(context.Background())
	if err != nil {
		t.Fatalf("Derive after Reset: %v", err)
	}
	if len(state.Facts) != 0 || len(state.Resources) != 0 {
		t.Errorf("Reset left observations behind: %v", state)
	}
}

func TestDeriveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine()
	e.Observe("x", goap.Int(1))
	if _, err := e.Derive(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Derive with cancelled context: err = %v, want context.Canceled", err)
	}
}
