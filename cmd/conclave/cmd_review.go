package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conclave/internal/council"
	"conclave/internal/events"
	"conclave/internal/verdict"
)

var (
	reviewContext    string
	reviewLanguage   string
	reviewComplexity int
	reviewEnforcing  bool
	reviewVisualize  bool
	reviewJSON       bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [task description or code]",
	Short: "Submit work to the council for deliberation",
	Long: `Runs one full deliberation over the given work: adaptive routing,
parallel panel review, weighted consensus with veto authority, and deadlock
mediation when the panel splits.

With --enforcing, a FAIL consensus exits non-zero so the command can gate a
pipeline step.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewContext, "context", "General Review", "Review context for the panel")
	reviewCmd.Flags().StringVar(&reviewLanguage, "language", "go", "Language scope for constraint matching")
	reviewCmd.Flags().IntVar(&reviewComplexity, "complexity", 3, "Task complexity 1-5, drives routing")
	reviewCmd.Flags().BoolVar(&reviewEnforcing, "enforcing", false, "Exit non-zero on a FAIL consensus")
	reviewCmd.Flags().BoolVar(&reviewVisualize, "visualize", false, "Echo deliberation events as they happen")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print the full session as JSON")
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx, reviewEnforcing)
	if err != nil {
		return err
	}

	if reviewVisualize {
		subscribeEventEcho(a.bus)
	}

	task := strings.Join(args, " ")
	logger.Info("Starting deliberation",
		zap.Int("complexity", reviewComplexity),
		zap.String("language", reviewLanguage))

	session, err := a.council.Deliberate(ctx, task, reviewContext, reviewLanguage, reviewComplexity)
	if err != nil {
		return err
	}
	a.bus.Drain()

	if reviewJSON {
		out, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printSession(session)
	}

	if reviewEnforcing && session.Consensus.Decision == verdict.DecisionFail {
		return fmt.Errorf("council blocked execution: %s", session.Consensus.Reason)
	}
	return nil
}

func printSession(s *council.Session) {
	fmt.Printf("Session:    %s\n", s.SessionID)
	fmt.Printf("Route:      %s/%s (%d tokens) - %s\n", s.Route.Provider, s.Route.Model, s.Route.MaxTokens, s.Route.Reason)

	names := make([]string, 0, len(s.Verdicts))
	for name := range s.Verdicts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := s.Verdicts[name]
		fmt.Printf("  %-22s %-5s (%.2f) %s\n", name, v.Decision, v.Confidence, v.Reasoning)
	}

	fmt.Printf("Consensus:  %s (%.2f) - %s\n", s.Consensus.Decision, s.Consensus.Confidence, s.Consensus.Reason)
	if s.Mediation != nil {
		fmt.Printf("Mediation:  attempt %d, %s", s.Mediation.Attempt, s.Mediation.Action)
		if s.Mediation.RequiresHuman {
			fmt.Print(" (requires human ratification)")
		}
		fmt.Println()
	}
	if s.Fallback {
		fmt.Println("Note:       degraded fail-open result, panel did not complete")
	}
}

func subscribeEventEcho(bus *events.Bus) {
	echo := func(e events.Event) {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, e.Data[k])
		}
		fmt.Printf("[%s]%s\n", e.Type, sb.String())
	}
	for _, t := range []events.Type{
		events.TypeDeliberationStart,
		events.TypeAgentVote,
		events.TypeConsensusReached,
		events.TypeDeliberationEnd,
		events.TypeLoopDetected,
		events.TypeError,
	} {
		bus.Subscribe(t, echo)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
