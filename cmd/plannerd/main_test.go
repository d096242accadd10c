package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plannerd/internal/config"
	"plannerd/pkg/goap"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const testCatalogue = `version: 1
actions:
  - id: run_tests
    agent_role: tester
    description: Run the unit test suite
    effects:
      tests_passing: true
  - id: deploy
    agent_role: operator
    description: Deploy to production
    cost: 2.5
    preconditions:
      tests_passing: true
    effects:
      deployed: true
`

// setupWorkspace points the global config at a temp catalogue and store.
func setupWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "actions.yaml"), []byte(testCatalogue), 0644); err != nil {
		t.Fatal(err)
	}

	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.CatalogDir = dir
	cfg.StorePath = filepath.Join(dir, "plans.db")
	maxDepth = 0
	return dir
}

func TestResolveGoalInline(t *testing.T) {
	goal, err := resolveGoal("", "deployed=true,retries=3")
	if err != nil {
		t.Fatalf("resolveGoal returned error: %v", err)
	}
	if goal.Name != "cli" {
		t.Errorf("Name = %q, want cli", goal.Name)
	}
	if !goal.Desired["deployed"].Equal(goap.Bool(true)) {
		t.Errorf("deployed = %v", goal.Desired["deployed"])
	}
	if !goal.Desired["retries"].Equal(goap.Int(3)) {
		t.Errorf("retries = %v", goal.Desired["retries"])
	}
}

func TestResolveGoalRequiresOneSource(t *testing.T) {
	if _, err := resolveGoal("", ""); err == nil {
		t.Error("expected error with no goal source")
	}
	if _, err := resolveGoal("goal.yaml", "deployed=true"); err == nil {
		t.Error("expected error with both goal sources")
	}
}

func TestPlanDepth(t *testing.T) {
	cfg = config.DefaultConfig()

	maxDepth = 7
	if got := planDepth(); got != 7 {
		t.Errorf("flag depth = %d, want 7", got)
	}

	maxDepth = 0
	cfg.Planner.MaxDepth = 12
	if got := planDepth(); got != 12 {
		t.Errorf("config depth = %d, want 12", got)
	}

	cfg.Planner.MaxDepth = 0
	if got := planDepth(); got != goap.DefaultMaxDepth {
		t.Errorf("fallback depth = %d, want %d", got, goap.DefaultMaxDepth)
	}
}

func TestRunActionsAll(t *testing.T) {
	setupWorkspace(t)
	actionsAll = true
	defer func() { actionsAll = false }()

	output := captureOutput(t, func() {
		if err := runActions(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runActions returned error: %v", err)
		}
	})

	if !strings.Contains(output, "run_tests") || !strings.Contains(output, "deploy") {
		t.Fatalf("expected both catalogue actions, got: %s", output)
	}
}

func TestRunActionsApplicableOnly(t *testing.T) {
	setupWorkspace(t)
	actionsAll = false
	actionsState = ""

	output := captureOutput(t, func() {
		if err := runActions(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runActions returned error: %v", err)
		}
	})

	// From an empty state only run_tests is applicable.
	if !strings.Contains(output, "run_tests") {
		t.Fatalf("expected run_tests to be applicable, got: %s", output)
	}
	if strings.Contains(output, "| deploy |") {
		t.Fatalf("deploy should not be applicable from an empty state, got: %s", output)
	}
}

func TestRunValidateInlineSteps(t *testing.T) {
	setupWorkspace(t)
	validateSteps = "run_tests,deploy"
	validateGoalFacts = "deployed=true"
	validateState = ""
	validateGoalFile = ""
	defer func() { validateSteps = ""; validateGoalFacts = "" }()

	output := captureOutput(t, func() {
		if err := runValidate(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runValidate returned error: %v", err)
		}
	})

	if !strings.Contains(output, "Plan is valid") {
		t.Fatalf("expected a valid plan, got: %s", output)
	}
}

func TestRunValidateBrokenPlan(t *testing.T) {
	setupWorkspace(t)
	validateSteps = "deploy"
	validateGoalFacts = "deployed=true"
	validateState = ""
	validateGoalFile = ""
	defer func() { validateSteps = ""; validateGoalFacts = "" }()

	var err error
	output := captureOutput(t, func() {
		err = runValidate(&cobra.Command{}, nil)
	})

	if err == nil {
		t.Fatal("expected validation to fail: deploy's precondition is unmet")
	}
	if !strings.Contains(output, "INVALID") {
		t.Fatalf("expected invalid notice, got: %s", output)
	}
}

func TestRunValidateUnknownAction(t *testing.T) {
	setupWorkspace(t)
	validateSteps = "run_tests,retired_action"
	validateGoalFacts = "deployed=true"
	defer func() { validateSteps = ""; validateGoalFacts = "" }()

	err := runValidate(&cobra.Command{}, nil)
	if err == nil || !strings.Contains(err.Error(), "no longer in the catalogue") {
		t.Fatalf("expected a catalogue-miss error, got: %v", err)
	}
}

func TestRunHistoryEmpty(t *testing.T) {
	setupWorkspace(t)

	output := captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})

	if !strings.Contains(output, "No stored plans") {
		t.Fatalf("expected empty history notice, got: %s", output)
	}
}

func TestPlanSaveAndHistoryRoundTrip(t *testing.T) {
	setupWorkspace(t)
	planGoalFacts = "deployed=true"
	planSave = true
	planState = ""
	planGoalFile = ""
	defer func() { planGoalFacts = ""; planSave = false }()

	output := captureOutput(t, func() {
		if err := runPlan(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runPlan returned error: %v", err)
		}
	})

	if !strings.Contains(output, "| 1 | run_tests |") || !strings.Contains(output, "| 2 | deploy |") {
		t.Fatalf("expected the two-step plan, got: %s", output)
	}
	if !strings.Contains(output, "Saved as ") {
		t.Fatalf("expected a saved-plan ID, got: %s", output)
	}

	history := captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})

	if !strings.Contains(history, "cli") || !strings.Contains(history, "planned") {
		t.Fatalf("expected the saved plan in history, got: %s", history)
	}
}

func TestRunPlanNoPlanFound(t *testing.T) {
	setupWorkspace(t)
	planGoalFacts = "certified=true"
	planSave = false
	planSuggest = false
	defer func() { planGoalFacts = "" }()

	var err error
	output := captureOutput(t, func() {
		err = runPlan(&cobra.Command{}, nil)
	})

	if err == nil {
		t.Fatal("expected an error for an unreachable goal")
	}
	if !strings.Contains(output, "No plan found") {
		t.Fatalf("expected a no-plan report, got: %s", output)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	rOut, wOut, _ := os.Pipe()
	os.Stdout = wOut

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	os.Stdout = origOut
	return <-done
}
