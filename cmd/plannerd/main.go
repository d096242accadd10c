package main

import (
	"fmt"
	"os"

	"plannerd/internal/catalog"
	"plannerd/internal/config"
	"plannerd/internal/store"
	"plannerd/pkg/goap"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgPath  string
	verbose  bool
	maxDepth int

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "plannerd",
	Short: "plannerd - goal-oriented action planning over YAML catalogues",
	Long: `plannerd plans action sequences with A* search over symbolic world
states. Actions live in YAML catalogues; states and goals are YAML files
or key=value assignments. Derived facts can come from a Datalog rule
base, and plans can be persisted, validated, and replayed.

Run without arguments to start the interactive planning console.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		// The console draws its own UI; keep the logger quiet there.
		if cmd.Use == "plannerd" && cmd.CalledAs() == "plannerd" {
			logger = zap.NewNop()
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if cfg.Logging.File != "" {
			zcfg.OutputPaths = []string{cfg.Logging.File}
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "Maximum plan length (0 = config default)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCatalogue reads the configured catalogue, which may be a single
// file or a directory of YAML files.
func loadCatalogue() ([]goap.Action, error) {
	info, err := os.Stat(cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", cfg.CatalogDir, err)
	}
	if info.IsDir() {
		return catalog.LoadDir(cfg.CatalogDir)
	}
	return catalog.LoadFile(cfg.CatalogDir)
}

// loadPlanner builds a planner over the configured catalogue.
func loadPlanner() (*goap.Planner, []goap.Action, error) {
	actions, err := loadCatalogue()
	if err != nil {
		return nil, nil, err
	}
	return goap.NewPlanner(actions), actions, nil
}

// loadInitialState reads a state file, or returns an empty state when
// no file was given.
func loadInitialState(path string) (goap.WorldState, error) {
	if path == "" {
		return goap.NewWorldState(), nil
	}
	return catalog.LoadStateFile(path)
}

// resolveGoal builds a goal from a goal file or inline key=value
// assignments. Exactly one source must be provided.
func resolveGoal(goalFile, goalFacts string) (goap.GoalState, error) {
	switch {
	case goalFile != "" && goalFacts != "":
		return goap.GoalState{}, fmt.Errorf("use either --goal or --goal-facts, not both")
	case goalFile != "":
		return catalog.LoadGoalFile(goalFile)
	case goalFacts != "":
		desired, err := catalog.ParseFactAssignments(goalFacts)
		if err != nil {
			return goap.GoalState{}, err
		}
		return goap.NewGoal("cli", desired), nil
	default:
		return goap.GoalState{}, fmt.Errorf("a goal is required: pass --goal or --goal-facts")
	}
}

// openStore opens the plan store at the configured path.
func openStore() (*store.PlanStore, error) {
	return store.NewPlanStore(cfg.StorePath, logger)
}

// planDepth resolves the search depth from the flag or config.
func planDepth() int {
	if maxDepth > 0 {
		return maxDepth
	}
	if cfg.Planner.MaxDepth > 0 {
		return cfg.Planner.MaxDepth
	}
	return goap.DefaultMaxDepth
}
