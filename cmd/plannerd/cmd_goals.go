package main

import (
	"context"
	"fmt"

	"plannerd/internal/arbiter"
	"plannerd/internal/articulation"
	"plannerd/internal/catalog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var goalsState string

// goalsCmd arbitrates between competing goals
var goalsCmd = &cobra.Command{
	Use:   "goals [goals-file]",
	Short: "Pick the best reachable goal from a goals file",
	Long: `Plans every goal in the file concurrently and picks the highest
priority one that is actually reachable; ties break on plan cost, then
file order. Prints the decision and the winning plan.

Example:
  plannerd goals goals.yaml --state state.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGoals,
}

func init() {
	goalsCmd.Flags().StringVar(&goalsState, "state", "", "Initial state YAML file (default: empty state)")
}

func runGoals(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetPlanTimeout())
	defer cancel()

	planner, _, err := loadPlanner()
	if err != nil {
		return err
	}

	goals, err := catalog.LoadGoalsFile(args[0])
	if err != nil {
		return err
	}
	initial, err := loadInitialState(goalsState)
	if err != nil {
		return err
	}

	logger.Info("Arbitrating goals",
		zap.Int("candidates", len(goals)),
		zap.Int("max_depth", planDepth()))

	decision, err := arbiter.New(planner, logger).Decide(ctx, initial, goals, planDepth())
	if err != nil {
		return err
	}

	fmt.Print(articulation.NewEmitter().DecisionReport(decision))
	if decision == nil {
		return fmt.Errorf("no reachable goal among %d candidates", len(goals))
	}
	return nil
}
