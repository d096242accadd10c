package main

import (
	"context"
	"fmt"

	"plannerd/internal/articulation"
	"plannerd/internal/kernel"
	"plannerd/pkg/goap"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var factsState string

// factsCmd runs the rule base alone and prints the derived state
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Derive planner facts from observations through the rule base",
	Long: `Asserts the state file's facts as observations, evaluates the Datalog
rule base, and prints the derived world state. Useful for checking what
the planner would actually see before running a search.

Example:
  plannerd facts --state obs.yaml`,
	RunE: runFacts,
}

func init() {
	factsCmd.Flags().StringVar(&factsState, "state", "", "Observations YAML file (default: empty state)")
}

func runFacts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetPlanTimeout())
	defer cancel()

	observed, err := loadInitialState(factsState)
	if err != nil {
		return err
	}

	derived, err := deriveState(ctx, observed)
	if err != nil {
		return fmt.Errorf("fact derivation failed: %w", err)
	}

	logger.Debug("Derived state",
		zap.Int("facts", len(derived.Facts)),
		zap.Int("resources", len(derived.Resources)))

	fmt.Print(articulation.NewEmitter().StateDump(derived))
	return nil
}

// deriveState evaluates the configured rule base over the observed
// state. A missing rules directory passes observations through.
func deriveState(ctx context.Context, observed goap.WorldState) (goap.WorldState, error) {
	engine := kernel.NewEngine()
	if err := engine.LoadRulesDir(cfg.RulesDir); err != nil {
		return goap.WorldState{}, err
	}
	engine.ObserveState(observed)
	return engine.Derive(ctx)
}
