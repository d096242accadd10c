package main

import (
	"fmt"

	"plannerd/internal/articulation"

	"github.com/spf13/cobra"
)

var (
	actionsState string
	actionsAll   bool
)

// actionsCmd lists catalogue actions applicable in a state
var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List actions whose preconditions hold in a state",
	Long: `Shows which catalogue actions could run right now given the state.
With --all the whole catalogue is listed regardless of preconditions.

Examples:
  plannerd actions --state state.yaml
  plannerd actions --all`,
	RunE: runActions,
}

func init() {
	actionsCmd.Flags().StringVar(&actionsState, "state", "", "State YAML file (default: empty state)")
	actionsCmd.Flags().BoolVar(&actionsAll, "all", false, "List the whole catalogue")
}

func runActions(cmd *cobra.Command, args []string) error {
	planner, actions, err := loadPlanner()
	if err != nil {
		return err
	}

	emitter := articulation.NewEmitter()
	if actionsAll {
		fmt.Print(emitter.ActionTable(actions))
		return nil
	}

	state, err := loadInitialState(actionsState)
	if err != nil {
		return err
	}
	fmt.Print(emitter.ActionTable(planner.ApplicableActions(state)))
	return nil
}
