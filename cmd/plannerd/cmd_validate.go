package main

import (
	"fmt"
	"strings"

	"plannerd/pkg/goap"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	validateState     string
	validateGoalFile  string
	validateGoalFacts string
	validateSteps     string
)

// validateCmd replays a plan against a state and goal
var validateCmd = &cobra.Command{
	Use:   "validate [plan-id]",
	Short: "Check that a plan still reaches its goal",
	Long: `Replays a plan step by step against an initial state and reports
whether every precondition holds and the goal is reached. The plan comes
from the store (by ID) or from --steps as a comma-separated list of
action IDs resolved against the catalogue.

The exit code reflects the result: 0 when the plan is valid.

Examples:
  plannerd validate 0d9f31c2-8a44-4a6e-b1ce-5a1f0c9d2e77 --state state.yaml --goal goal.yaml
  plannerd validate --steps run_tests,deploy --goal-facts "deployed=true"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateState, "state", "", "Initial state YAML file (default: empty state)")
	validateCmd.Flags().StringVar(&validateGoalFile, "goal", "", "Goal YAML file")
	validateCmd.Flags().StringVar(&validateGoalFacts, "goal-facts", "", "Inline goal as key=value,key=value")
	validateCmd.Flags().StringVar(&validateSteps, "steps", "", "Inline plan as a comma-separated list of action IDs")
}

func runValidate(cmd *cobra.Command, args []string) error {
	actions, err := loadCatalogue()
	if err != nil {
		return err
	}

	plan, err := resolvePlan(args, actions)
	if err != nil {
		return err
	}

	initial, err := loadInitialState(validateState)
	if err != nil {
		return err
	}
	goal, err := resolveGoal(validateGoalFile, validateGoalFacts)
	if err != nil {
		return err
	}

	logger.Debug("Validating plan",
		zap.Int("steps", len(plan)),
		zap.String("goal", goal.Name))

	if !goap.ValidatePlan(plan, initial, goal) {
		fmt.Println("Plan is INVALID for the given state and goal.")
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("Plan is valid: %d steps, total cost %.1f.\n", len(plan), goap.PlanCost(plan))
	return nil
}

// resolvePlan materializes the plan under test, either from the store
// by ID or from the --steps list. Step IDs resolve against the live
// catalogue, so a catalogue edit can invalidate a stored plan.
func resolvePlan(args []string, actions []goap.Action) ([]goap.Action, error) {
	byID := make(map[string]goap.Action, len(actions))
	for _, a := range actions {
		byID[a.ID] = a
	}

	var ids []string
	switch {
	case len(args) == 1 && validateSteps != "":
		return nil, fmt.Errorf("use either a plan ID or --steps, not both")
	case len(args) == 1:
		st, err := openStore()
		if err != nil {
			return nil, err
		}
		defer st.Close()

		rec, err := st.GetPlan(args[0])
		if err != nil {
			return nil, err
		}
		for _, step := range rec.Steps {
			ids = append(ids, step.ActionID)
		}
	case validateSteps != "":
		for _, id := range strings.Split(validateSteps, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	default:
		return nil, fmt.Errorf("a plan is required: pass a plan ID or --steps")
	}

	plan := make([]goap.Action, 0, len(ids))
	for _, id := range ids {
		action, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("action %q is no longer in the catalogue", id)
		}
		plan = append(plan, action)
	}
	return plan, nil
}
