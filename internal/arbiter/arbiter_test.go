package arbiter

import (
	"context"
	"errors"
	"testing"

	"plannerd/pkg/goap"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// arbiterCatalogue offers one action per reachable fact, with run_tests
// markedly cheaper than deploy.
func arbiterCatalogue() []goap.Action {
	runTests := goap.NewAction("run_tests", "tester")
	runTests.Effects["tests_passing"] = goap.Bool(true)

	deploy := goap.NewAction("deploy", "operator")
	deploy.Cost = 5
	deploy.Effects["deployed"] = goap.Bool(true)

	return []goap.Action{runTests, deploy}
}

func boolGoal(name, key string, priority float64) goap.GoalState {
	g := goap.NewGoal(name, map[string]goap.Value{key: goap.Bool(true)})
	g.Priority = priority
	return g
}

func TestDecidePicksHighestPriority(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	goals := []goap.GoalState{
		boolGoal("test", "tests_passing", 10),
		boolGoal("release", "deployed", 90),
	}

	decision, err := arb.Decide(context.Background(), goap.NewWorldState(), goals, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision == nil {
		t.Fatal("expected a decision")
	}
	if decision.Goal.Name != "release" {
		t.Errorf("chose %q, want release", decision.Goal.Name)
	}
	if decision.Cost != 5 {
		t.Errorf("Cost = %v, want 5", decision.Cost)
	}
	if decision.Considered != 2 {
		t.Errorf("Considered = %d, want 2", decision.Considered)
	}
}

func TestDecideSkipsUnreachableGoals(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	goals := []goap.GoalState{
		boolGoal("impossible", "world_peace", 100),
		boolGoal("test", "tests_passing", 10),
	}

	decision, err := arb.Decide(context.Background(), goap.NewWorldState(), goals, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision == nil || decision.Goal.Name != "test" {
		t.Fatalf("decision = %+v, want the reachable goal", decision)
	}
}

func TestDecidePriorityTieBreaksOnCost(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	goals := []goap.GoalState{
		boolGoal("release", "deployed", 50),
		boolGoal("test", "tests_passing", 50),
	}

	decision, err := arb.Decide(context.Background(), goap.NewWorldState(), goals, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision == nil || decision.Goal.Name != "test" {
		t.Fatalf("decision = %+v, want the cheaper goal", decision)
	}
}

func TestDecideFullTieKeepsEarlierGoal(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	goals := []goap.GoalState{
		boolGoal("first", "tests_passing", 50),
		boolGoal("second", "tests_passing", 50),
	}

	decision, err := arb.Decide(context.Background(), goap.NewWorldState(), goals, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision == nil || decision.Goal.Name != "first" {
		t.Fatalf("decision = %+v, want the earlier goal", decision)
	}
}

func TestDecideSatisfiedGoalWinsWithZeroCost(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	initial := goap.NewWorldState()
	initial.Facts["tests_passing"] = goap.Bool(true)

	goals := []goap.GoalState{
		boolGoal("release", "deployed", 50),
		boolGoal("test", "tests_passing", 50),
	}

	decision, err := arb.Decide(context.Background(), initial, goals, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision == nil || decision.Goal.Name != "test" {
		t.Fatalf("decision = %+v, want the already satisfied goal", decision)
	}
	if decision.Plan == nil || len(decision.Plan) != 0 {
		t.Errorf("Plan = %v, want empty non-nil", decision.Plan)
	}
	if decision.Cost != 0 {
		t.Errorf("Cost = %v, want 0", decision.Cost)
	}
}

func TestDecideNoGoals(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	decision, err := arb.Decide(context.Background(), goap.NewWorldState(), nil, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision != nil {
		t.Errorf("decision = %+v, want nil", decision)
	}
}

func TestDecideNothingReachable(t *testing.T) {
	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	goals := []goap.GoalState{
		boolGoal("impossible", "world_peace", 100),
	}

	decision, err := arb.Decide(context.Background(), goap.NewWorldState(), goals, 0)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision != nil {
		t.Errorf("decision = %+v, want nil", decision)
	}
}

func TestDecideCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	arb := New(goap.NewPlanner(arbiterCatalogue()), nil)
	goals := []goap.GoalState{boolGoal("test", "tests_passing", 10)}

	if _, err := arb.Decide(ctx, goap.NewWorldState(), goals, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
