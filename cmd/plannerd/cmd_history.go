package main

import (
	"fmt"

	"plannerd/internal/articulation"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd lists stored plans
var historyCmd = &cobra.Command{
	Use:   "history [plan-id]",
	Short: "List stored plans, or show one in full",
	Long: `Without arguments, lists the most recent stored plans. With a plan ID,
shows that plan's steps and the state it was planned from.

Examples:
  plannerd history
  plannerd history 0d9f31c2-8a44-4a6e-b1ce-5a1f0c9d2e77`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of plans to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	emitter := articulation.NewEmitter()
	if len(args) == 1 {
		rec, err := st.GetPlan(args[0])
		if err != nil {
			return err
		}
		fmt.Print(emitter.RecordReport(rec))
		return nil
	}

	records, err := st.ListPlans(historyLimit)
	if err != nil {
		return err
	}
	fmt.Print(emitter.HistoryTable(records))
	return nil
}
