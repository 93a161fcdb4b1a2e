package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/recurring"
)

func newRecurringCommand() *cobra.Command {
	var (
		dir     string
		account string
	)

	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Re-detect recurring payment groups for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecurring(dir, account)
		},
	}
	cmd.Flags().StringVarP(&dir, "workspace", "w", ".", "workspace directory")
	cmd.Flags().StringVar(&account, "account", "", "account name (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func runRecurring(dir, accountName string) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	ctx := context.Background()

	acct, err := ws.store.GetAccountByName(ctx, accountName)
	if err != nil {
		return err
	}

	detector := recurring.NewDetector(ws.store, ws.store)
	res, err := detector.Sync(ctx, acct.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := ws.save(); err != nil {
		return err
	}

	fmt.Printf("created %d, updated %d, deleted %d, skipped %d (manual override)\n",
		res.Created, res.Updated, res.Deleted, res.Skipped)

	groups, err := ws.store.ListRecurringGroups(ctx, acct.ID)
	if err != nil {
		return err
	}
	bold := color.New(color.Bold)
	for _, g := range groups {
		state := "inactive"
		if g.Active {
			state = "active"
		}
		bold.Printf("%s\n", g.Recipient)
		fmt.Printf("  ~%s every %.0f days, %d occurrences, next ~%s, confidence %.2f, %s\n",
			g.AverageAmount.StringFixed(2), g.AverageIntervalDays, g.OccurrenceCount,
			g.PredictedNext.Format("2006-01-02"), g.Confidence, state)
	}
	return nil
}
