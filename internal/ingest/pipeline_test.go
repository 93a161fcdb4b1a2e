package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/category"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/detect"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/normalize"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/recipient"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

var giroMapping = normalize.ColumnMapping{
	Date:      "Buchungstag",
	Amount:    "Betrag",
	Recipient: "Empfänger",
	Purpose:   "Verwendungszweck",
}

const giroStatement = `Buchungstag;Betrag;Empfänger;Verwendungszweck
15.01.2026;-9,99;NETFLIX.COM;Abo Januar
16.01.2026;-42,17;REWE Markt GmbH;Einkauf
17.01.2026;2.500,00;Arbeitgeber AG;Gehalt Januar
`

func newTestPipeline(t *testing.T) (*Pipeline, *store.MemoryStore, uuid.UUID) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()

	account := &model.Account{ID: uuid.New(), Name: "giro", Currency: "EUR"}
	require.NoError(t, st.CreateAccount(ctx, account))
	require.NoError(t, st.PutCategoryRules(ctx, []model.CategoryRule{
		{ID: uuid.New(), Name: "Streaming", Patterns: []string{"netflix"}},
		{ID: uuid.New(), Name: "Groceries", Patterns: []string{"rewe", "edeka"}},
	}))

	p := NewPipeline(st, category.NewMatcher(st), recipient.NewResolver(st, st, 0), Options{})
	return p, st, account.ID
}

func TestImport(t *testing.T) {
	p, st, accountID := newTestPipeline(t)
	ctx := context.Background()

	summary, err := p.Import(ctx, []byte(giroStatement), "januar.csv", accountID, giroMapping)
	require.NoError(t, err)
	assert.Equal(t, BatchImported, summary.Status)
	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 0, summary.Duplicates)
	assert.Equal(t, 0, summary.Errored)
	require.Len(t, summary.Rows, 3)

	txs, err := st.ListTransactions(ctx, accountID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// Dotted dates parse day-first, amounts locale-aware.
	netflix := txs[0]
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), netflix.Date)
	assert.True(t, netflix.Amount.Equal(decimal.NewFromFloat(-9.99)))
	assert.Equal(t, "EUR", netflix.Currency)
	assert.Equal(t, summary.BatchID, netflix.ImportBatchID)
	require.NotNil(t, netflix.CategoryID)
	require.NotNil(t, netflix.RecipientIdentityID)

	salary := txs[2]
	assert.True(t, salary.Amount.Equal(decimal.NewFromInt(2500)))
	assert.Nil(t, salary.CategoryID, "no rule matches the employer")

	// Raw row values survive in the audit trail.
	assert.Equal(t, "-9,99", netflix.Audit["Betrag"])

	identities, err := st.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, identities, 3)
}

func TestImport_Idempotent(t *testing.T) {
	p, st, accountID := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Import(ctx, []byte(giroStatement), "januar.csv", accountID, giroMapping)
	require.NoError(t, err)
	require.Equal(t, 3, first.Imported)

	// The exact same bytes land again, for example a re-uploaded export.
	second, err := p.Import(ctx, []byte(giroStatement), "januar-again.csv", accountID, giroMapping)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, BatchDuplicatesOnly, second.Status)

	txs, err := st.ListTransactions(ctx, accountID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestImport_DuplicateIgnoresPurpose(t *testing.T) {
	p, _, accountID := newTestPipeline(t)

	// Same date, amount, and recipient; only the purpose differs. The
	// fingerprint treats these as the same payment.
	statement := `Buchungstag;Betrag;Empfänger;Verwendungszweck
15.01.2026;-9,99;NETFLIX.COM;Abo Januar
15.01.2026;-9,99;NETFLIX.COM;Rechnung 4711
`
	summary, err := p.Import(context.Background(), []byte(statement), "dup.csv", accountID, giroMapping)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, BatchImported, summary.Status)
}

func TestImport_RowErrorsDoNotAbort(t *testing.T) {
	p, st, accountID := newTestPipeline(t)

	statement := `Buchungstag;Betrag;Empfänger;Verwendungszweck
15.01.2026;-9,99;NETFLIX.COM;Abo
16.01.2026;kaputt;REWE Markt GmbH;Einkauf
17.01.2026;-3,50;;Bäckerei
18.01.2026;-12,00;Bäckerei Schmidt;Brötchen
`
	summary, err := p.Import(context.Background(), []byte(statement), "mixed.csv", accountID, giroMapping)
	require.NoError(t, err)
	assert.Equal(t, BatchImported, summary.Status)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 2, summary.Errored)
	require.Len(t, summary.ErrorMessages, 2)
	assert.Contains(t, summary.ErrorMessages[0], "row 2")

	var failed []int
	for _, r := range summary.Rows {
		if r.Status == RowFailed {
			failed = append(failed, r.Line)
		}
	}
	assert.Equal(t, []int{2, 3}, failed)

	txs, err := st.ListTransactions(context.Background(), accountID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestImport_AllRowsFailed(t *testing.T) {
	p, _, accountID := newTestPipeline(t)

	statement := `Buchungstag;Betrag;Empfänger;Verwendungszweck
15.01.2026;kaputt;NETFLIX.COM;Abo
`
	summary, err := p.Import(context.Background(), []byte(statement), "bad.csv", accountID, giroMapping)
	require.NoError(t, err)
	assert.Equal(t, BatchFailed, summary.Status)
	assert.Equal(t, 1, summary.Errored)
}

func TestImport_StructuralFailures(t *testing.T) {
	p, _, accountID := newTestPipeline(t)
	ctx := context.Background()

	// Prose, not a table.
	_, err := p.Import(ctx, []byte("Dear customer\nyour statement follows\n"), "x.csv", accountID, giroMapping)
	assert.ErrorIs(t, err, detect.ErrNoTabularStructure)

	// A mapped column missing from the headers.
	_, err = p.Import(ctx, []byte(giroStatement), "x.csv", accountID, normalize.ColumnMapping{
		Date: "Buchungstag", Amount: "Betrag", Recipient: "Kontoinhaber",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kontoinhaber")

	// Unknown account.
	_, err = p.Import(ctx, []byte(giroStatement), "x.csv", uuid.New(), giroMapping)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImport_ReportsTransferCandidates(t *testing.T) {
	p, st, accountID := newTestPipeline(t)
	ctx := context.Background()

	savings := &model.Account{ID: uuid.New(), Name: "savings", Currency: "EUR"}
	require.NoError(t, st.CreateAccount(ctx, savings))
	require.NoError(t, st.CreateTransaction(ctx, &model.PersistedTransaction{
		ID:        uuid.New(),
		AccountID: savings.ID,
		CanonicalTransaction: model.CanonicalTransaction{
			Date:      time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
			Amount:    decimal.NewFromInt(500),
			Recipient: "Giro",
			Currency:  "EUR",
		},
		Fingerprint: "fp-savings-in",
	}))

	statement := `Buchungstag;Betrag;Empfänger;Verwendungszweck
20.01.2026;-500,00;Eigenes Sparkonto;Uebertrag
`
	summary, err := p.Import(ctx, []byte(statement), "transfer.csv", accountID, giroMapping)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Imported)
	require.Len(t, summary.TransferCandidates, 1)
	assert.Equal(t, accountID, summary.TransferCandidates[0].From.AccountID)
	assert.Equal(t, savings.ID, summary.TransferCandidates[0].To.AccountID)
}

func TestAnalyze(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	a, err := p.Analyze([]byte(giroStatement), "januar.csv")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", a.Encoding)
	assert.Equal(t, ';', a.Delimiter)
	assert.Equal(t, []string{"Buchungstag", "Betrag", "Empfänger", "Verwendungszweck"}, a.Headers)
	assert.Equal(t, 3, a.RowCount)
	assert.Len(t, a.SampleRows, 3)

	assert.Equal(t, "Buchungstag", a.Suggested.Date)
	assert.Equal(t, "Betrag", a.Suggested.Amount)
	assert.Equal(t, "Empfänger", a.Suggested.Recipient)
	assert.Equal(t, "Verwendungszweck", a.Suggested.Purpose)
	assert.Equal(t, "02.01.2006", a.DateConvention)
}

func TestAnalyze_EnglishHeaders(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	statement := "Date,Amount,Payee,Memo\n2026-01-15,-9.99,Netflix,subscription\n"
	a, err := p.Analyze([]byte(statement), "export.csv")
	require.NoError(t, err)
	assert.Equal(t, ',', a.Delimiter)
	assert.Equal(t, "Date", a.Suggested.Date)
	assert.Equal(t, "Amount", a.Suggested.Amount)
	assert.Equal(t, "Payee", a.Suggested.Recipient)
	assert.Equal(t, "Memo", a.Suggested.Purpose)
	assert.Equal(t, "2006-01-02", a.DateConvention)
}
