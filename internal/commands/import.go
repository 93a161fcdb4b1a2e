package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/auditlog"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/ingest"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/normalize"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

func newImportCommand() *cobra.Command {
	var (
		dir     string
		account string
		mapping normalize.ColumnMapping
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a statement export into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(dir, args[0], account, mapping)
		},
	}
	cmd.Flags().StringVarP(&dir, "workspace", "w", ".", "workspace directory")
	cmd.Flags().StringVar(&account, "account", "", "account name (required, created on first use)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&mapping.Date, "date", "", "date column header (default: suggestion)")
	cmd.Flags().StringVar(&mapping.Amount, "amount", "", "amount column header (default: suggestion)")
	cmd.Flags().StringVar(&mapping.Recipient, "recipient", "", "recipient column header (default: suggestion)")
	cmd.Flags().StringVar(&mapping.Purpose, "purpose", "", "purpose column header (optional)")
	return cmd
}

func runImport(dir, file, accountName string, mapping normalize.ColumnMapping) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	ctx := context.Background()

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	if int64(len(raw)) > ws.cfg.Import.MaxFileBytes {
		return fmt.Errorf("%s exceeds the %d byte upload limit", file, ws.cfg.Import.MaxFileBytes)
	}

	pipeline := newPipeline(ws)

	// Fill mapping gaps from the analysis suggestions.
	analysis, err := pipeline.Analyze(raw, filepath.Base(file))
	if err != nil {
		return err
	}
	if analysis.RowCount > ws.cfg.Import.MaxRows {
		return fmt.Errorf("%s has %d rows, over the %d row limit", file, analysis.RowCount, ws.cfg.Import.MaxRows)
	}
	if mapping.Date == "" {
		mapping.Date = analysis.Suggested.Date
	}
	if mapping.Amount == "" {
		mapping.Amount = analysis.Suggested.Amount
	}
	if mapping.Recipient == "" {
		mapping.Recipient = analysis.Suggested.Recipient
	}
	if mapping.Purpose == "" {
		mapping.Purpose = analysis.Suggested.Purpose
	}

	acct, err := ensureAccount(ctx, ws.store, accountName, ws.cfg.Import.DefaultCurrency)
	if err != nil {
		return err
	}

	summary, err := pipeline.Import(ctx, raw, filepath.Base(file), acct.ID, mapping)
	if err != nil {
		return err
	}

	if err := ws.save(); err != nil {
		return err
	}
	logEntry := auditlog.Entry{
		Timestamp:  time.Now().UTC(),
		BatchID:    summary.BatchID.String(),
		Account:    accountName,
		File:       filepath.Base(file),
		Imported:   summary.Imported,
		Duplicates: summary.Duplicates,
		Errored:    summary.Errored,
		Status:     string(summary.Status),
	}
	if err := auditlog.Append(ws.dir, []auditlog.Entry{logEntry}); err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func ensureAccount(ctx context.Context, st *store.MemoryStore, name, currency string) (*model.Account, error) {
	acct, err := st.GetAccountByName(ctx, name)
	if err == nil {
		return acct, nil
	}
	acct = &model.Account{ID: uuid.New(), Name: name, Currency: currency}
	if err := st.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func printSummary(summary *ingest.BatchSummary) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	green.Printf("imported:   %d\n", summary.Imported)
	yellow.Printf("duplicates: %d\n", summary.Duplicates)
	if summary.Errored > 0 {
		red.Printf("errors:     %d\n", summary.Errored)
		for _, msg := range summary.ErrorMessages {
			fmt.Printf("  %s\n", msg)
		}
	}
	fmt.Printf("status: %s\n", summary.Status)

	if len(summary.TransferCandidates) > 0 {
		fmt.Println("Possible transfers (confirm with the transfers command):")
		for _, c := range summary.TransferCandidates {
			fmt.Printf("  %s  %s -> %s  (confidence %.2f)\n",
				c.From.Date.Format("2006-01-02"), c.From.Recipient, c.To.Recipient, c.Confidence)
		}
	}
}
