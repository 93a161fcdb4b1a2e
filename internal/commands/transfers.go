package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/transfer"
)

func newTransfersCommand() *cobra.Command {
	var (
		dir   string
		from  string
		to    string
		min   float64
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Find inter-account transfer pairs in a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfers(dir, from, to, min, apply)
		},
	}
	cmd.Flags().StringVarP(&dir, "workspace", "w", ".", "workspace directory")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD, default 90 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD, default today)")
	cmd.Flags().Float64Var(&min, "min-confidence", 0, "minimum confidence (default from config)")
	cmd.Flags().BoolVar(&apply, "apply", false, "create links for the pairs found")
	return cmd
}

func runTransfers(dir, fromStr, toStr string, min float64, apply bool) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	ctx := context.Background()

	toDate := time.Now().UTC()
	if toStr != "" {
		if toDate, err = time.Parse("2006-01-02", toStr); err != nil {
			return fmt.Errorf("parsing --to: %w", err)
		}
	}
	fromDate := toDate.AddDate(0, 0, -90)
	if fromStr != "" {
		if fromDate, err = time.Parse("2006-01-02", fromStr); err != nil {
			return fmt.Errorf("parsing --from: %w", err)
		}
	}
	if min <= 0 {
		min = ws.cfg.Matching.TransferMinConfidence
	}

	accounts, err := ws.store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(accounts))
	names := make(map[uuid.UUID]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
		names[a.ID] = a.Name
	}

	matcher := transfer.NewMatcher(ws.store, ws.store)
	candidates, err := matcher.FindCandidates(ctx, ids, fromDate, toDate, min)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("no transfer candidates found")
		return nil
	}

	for _, c := range candidates {
		fmt.Printf("%s  %s (%s) -> %s (%s)  %s  confidence %.2f\n",
			c.From.Date.Format("2006-01-02"),
			c.From.Recipient, names[c.From.AccountID],
			c.To.Recipient, names[c.To.AccountID],
			c.To.Amount.StringFixed(2), c.Confidence)
		if apply {
			if _, err := matcher.CreateLink(ctx, c.From.ID, c.To.ID, true, c.Confidence); err != nil {
				return err
			}
		}
	}

	if apply {
		if err := ws.save(); err != nil {
			return err
		}
		fmt.Printf("linked %d pairs\n", len(candidates))
	}
	return nil
}
