package main

import (
	"context"
	"fmt"

	"plannerd/internal/advisor"
	"plannerd/internal/articulation"
	"plannerd/pkg/goap"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	planState     string
	planGoalFile  string
	planGoalFacts string
	planDerive    bool
	planSave      bool
	planSuggest   bool
)

// planCmd runs one search and prints the resulting plan
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan an action sequence from a state to a goal",
	Long: `Searches the catalogue for the cheapest action sequence that takes the
initial state to the goal.

Examples:
  plannerd plan --state state.yaml --goal goal.yaml
  plannerd plan --goal-facts "deployed=true,tests_passing=true" --save
  plannerd plan --state obs.yaml --derive --goal goal.yaml --suggest`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planState, "state", "", "Initial state YAML file (default: empty state)")
	planCmd.Flags().StringVar(&planGoalFile, "goal", "", "Goal YAML file")
	planCmd.Flags().StringVar(&planGoalFacts, "goal-facts", "", "Inline goal as key=value,key=value")
	planCmd.Flags().BoolVar(&planDerive, "derive", false, "Derive facts from the state through the rule base first")
	planCmd.Flags().BoolVar(&planSave, "save", false, "Persist the plan to the store")
	planCmd.Flags().BoolVar(&planSuggest, "suggest", false, "On no plan, rank the nearest catalogue actions")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetPlanTimeout())
	defer cancel()

	planner, actions, err := loadPlanner()
	if err != nil {
		return err
	}

	initial, err := loadInitialState(planState)
	if err != nil {
		return err
	}
	if planDerive {
		initial, err = deriveState(ctx, initial)
		if err != nil {
			return fmt.Errorf("fact derivation failed: %w", err)
		}
	}

	goal, err := resolveGoal(planGoalFile, planGoalFacts)
	if err != nil {
		return err
	}

	logger.Info("Planning",
		zap.String("goal", goal.Name),
		zap.Int("actions", len(actions)),
		zap.Int("max_depth", planDepth()))

	plan, err := planner.PlanContext(ctx, initial, goal, planDepth())
	if err != nil {
		return err
	}

	emitter := articulation.NewEmitter()
	if plan == nil {
		var suggestions []advisor.Suggestion
		if planSuggest {
			suggestions, err = suggestNearest(ctx, goal, actions)
			if err != nil {
				logger.Warn("Advisor unavailable", zap.Error(err))
			}
		}
		fmt.Print(emitter.NoPlanReport(goal, suggestions))
		return fmt.Errorf("no plan found for goal %q", goal.Name)
	}

	fmt.Print(emitter.PlanReport(goal, plan))

	if planSave {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.SavePlan(goal, plan, initial)
		if err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
		fmt.Printf("\nSaved as %s\n", id)
	}
	return nil
}

// suggestNearest ranks catalogue actions against the goal through the
// embedding advisor. Requires a configured API key.
func suggestNearest(ctx context.Context, goal goap.GoalState, actions []goap.Action) ([]advisor.Suggestion, error) {
	if !cfg.HasLLM() {
		return nil, fmt.Errorf("no API key configured: set GEMINI_API_KEY or llm.api_key")
	}
	embedder, err := advisor.NewGenAIEmbedder(ctx, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return advisor.New(embedder, logger).Suggest(ctx, goal, actions, 3)
}
