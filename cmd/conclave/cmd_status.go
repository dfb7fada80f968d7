package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"conclave/internal/ledger"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider rate and budget status",
	RunE:  showStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	led := ledger.New(budgetPath(), poolFromLimits(cfg.Limits), ledger.Limits{DailyBudget: cfg.Limits.DailyBudgetUSD})
	status := led.Status()

	if statusJSON {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	providers := make([]string, 0, len(status))
	for p := range status {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	for _, p := range providers {
		s := status[p]
		fmt.Printf("%s: %s\n", p, s.Health)
		if s.Budget > 0 {
			fmt.Printf("  spend today: $%.4f of $%.2f\n", s.Spend, s.Budget)
		}
		if s.CurrentModel != "" {
			fmt.Printf("  current model: %s\n", s.CurrentModel)
		}
		for _, m := range s.Models {
			fmt.Printf("  %-28s rpm %d/%d  tpm %d/%d\n",
				m.Name, m.RequestsThisMinute, m.RPMLimit, m.TokensThisMinute, m.TPMLimit)
		}
	}
	return nil
}
