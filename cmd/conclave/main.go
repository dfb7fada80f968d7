package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"conclave/internal/config"
	"conclave/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "conclave - deliberation and consensus engine for agent work",
	Long: `conclave submits proposed work to a panel of LLM reviewer agents and
reduces their verdicts into one governed decision.

Weighted voting with veto authority, adaptive provider routing under rate
and budget caps, autonomous deadlock mediation, and a feedback loop that
turns production failures into standing review constraints.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if workspace != "" {
			if err := os.Chdir(workspace); err != nil {
				return fmt.Errorf("failed to enter workspace: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "conclave.yaml", "Path to project config")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(constraintsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the layered configuration: project YAML, user JSON,
// then environment.
func loadConfig() (*config.Config, *config.UserConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	user, err := config.LoadUserConfig(config.DefaultUserConfigPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, user, nil
}

func stateDir() string {
	return ".conclave"
}

func budgetPath() string {
	return filepath.Join(stateDir(), "budget.json")
}
