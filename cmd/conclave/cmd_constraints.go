package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"conclave/internal/memory"
)

var (
	constraintDesc     string
	constraintPattern  string
	constraintTier     string
	constraintLanguage string
	constraintDomain   string
	listAll            bool
)

var constraintsCmd = &cobra.Command{
	Use:   "constraints",
	Short: "Inspect and curate the constraint library",
}

var constraintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List constraints injected into panel prompts",
	RunE:  listConstraints,
}

var constraintsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a curated constraint",
	Long: `Adds a constraint by hand. Manual curation is how validated and
immutable rules enter the library; experimental tier is reserved for the
feedback loop and expires after its trial window.`,
	RunE: addConstraint,
}

var constraintsPromoteCmd = &cobra.Command{
	Use:   "promote [id] [tier]",
	Short: "Promote a constraint one tier up",
	Args:  cobra.ExactArgs(2),
	RunE:  promoteConstraint,
}

func init() {
	constraintsListCmd.Flags().BoolVar(&listAll, "all", false, "Include inactive and expired constraints")

	constraintsAddCmd.Flags().StringVar(&constraintDesc, "description", "", "What the rule requires (required)")
	constraintsAddCmd.Flags().StringVar(&constraintPattern, "pattern", "", "Pattern the rule watches for (required)")
	constraintsAddCmd.Flags().StringVar(&constraintTier, "tier", "validated", "Tier: immutable, validated, experimental, logged")
	constraintsAddCmd.Flags().StringVar(&constraintLanguage, "language", "", "Language scope (empty = all)")
	constraintsAddCmd.Flags().StringVar(&constraintDomain, "domain", "general", "Domain scope")
	constraintsAddCmd.MarkFlagRequired("description")
	constraintsAddCmd.MarkFlagRequired("pattern")

	constraintsCmd.AddCommand(constraintsListCmd)
	constraintsCmd.AddCommand(constraintsAddCmd)
	constraintsCmd.AddCommand(constraintsPromoteCmd)
}

func listConstraints(cmd *cobra.Command, args []string) error {
	store, err := memory.NewStore(stateDir())
	if err != nil {
		return err
	}

	constraints := store.AllConstraints()
	if !listAll {
		live := constraints[:0]
		for _, c := range constraints {
			if c.Active && !c.Expired() {
				live = append(live, c)
			}
		}
		constraints = live
	}

	if len(constraints) == 0 {
		fmt.Println("No constraints.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tDOMAIN\tSOURCE\tACTIVE\tDESCRIPTION")
	for _, c := range constraints {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
			c.ID, c.Tier, c.Scope.Domain, c.Source, c.Active && !c.Expired(), c.Description)
	}
	return w.Flush()
}

func addConstraint(cmd *cobra.Command, args []string) error {
	tier := memory.Tier(constraintTier)
	switch tier {
	case memory.TierImmutable, memory.TierValidated, memory.TierExperimental, memory.TierLogged:
	default:
		return fmt.Errorf("invalid tier %q", constraintTier)
	}

	store, err := memory.NewStore(stateDir())
	if err != nil {
		return err
	}

	c := memory.NewConstraint(constraintDesc, constraintPattern, tier,
		memory.Scope{Language: constraintLanguage, Domain: constraintDomain}, "manual_curation")
	if err := store.AddConstraint(c); err != nil {
		return err
	}

	fmt.Printf("Added %s (%s)\n", c.ID, c.Tier)
	return nil
}

func promoteConstraint(cmd *cobra.Command, args []string) error {
	store, err := memory.NewStore(stateDir())
	if err != nil {
		return err
	}

	id, tier := args[0], memory.Tier(args[1])
	if err := store.Promote(id, tier); err != nil {
		return err
	}
	fmt.Printf("Promoted %s to %s\n", id, tier)
	return nil
}
