package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conclave/internal/kernel"
)

var (
	runContext    string
	runComplexity int
	runEnforcing  bool
)

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Execute a task through the governed lifecycle",
	Long: `Runs the full deliberate-decide-execute-learn pipeline. The council
reviews the task first; in enforcing mode a FAIL consensus blocks execution
entirely, in advisory mode it is logged and the task proceeds. The real
outcome is fed back so the council learns from its mistakes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runContext, "context", "", "Execution context for the panel")
	runCmd.Flags().IntVar(&runComplexity, "complexity", 3, "Task complexity 1-5, drives routing")
	runCmd.Flags().BoolVar(&runEnforcing, "enforcing", false, "Block execution on a FAIL consensus")
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx, runEnforcing)
	if err != nil {
		return err
	}

	task := strings.Join(args, " ")
	res, err := a.kernel.ExecuteTask(ctx, task, runContext, runComplexity)
	if err != nil {
		var gerr *kernel.GovernanceError
		if errors.As(err, &gerr) {
			logger.Warn("Execution blocked by governance",
				zap.String("session", gerr.SessionID),
				zap.String("reason", gerr.Reason))
		}
		return err
	}

	fmt.Printf("Status:   %s\n", res.Status)
	fmt.Printf("Decision: %s\n", res.Decision)
	fmt.Printf("Outcome:  %s\n", res.Outcome)
	return nil
}
