// Package ingest orchestrates the statement pipeline: format detection, row
// normalization, duplicate gating, and enrichment, one batch at a time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/category"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/detect"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/fingerprint"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/normalize"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/recipient"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/transfer"
)

// RowStatus tags one row's outcome.
type RowStatus string

const (
	RowImported  RowStatus = "imported"
	RowDuplicate RowStatus = "duplicate"
	RowFailed    RowStatus = "failed"
)

// RowResult is the per-row outcome: a persisted transaction, a duplicate
// marker, or a typed row error.
type RowResult struct {
	Line        int
	Status      RowStatus
	Transaction *model.CanonicalTransaction
	Err         error
}

// BatchStatus tags a whole batch. A batch is "imported" when at least one
// row landed, even alongside errors; zero imported with errors is reported
// distinctly.
type BatchStatus string

const (
	BatchImported       BatchStatus = "imported"
	BatchDuplicatesOnly BatchStatus = "duplicates-only"
	BatchFailed         BatchStatus = "failed"
)

// BatchSummary is what the caller gets back from one import.
type BatchSummary struct {
	BatchID            uuid.UUID
	Status             BatchStatus
	Imported           int
	Duplicates         int
	Errored            int
	ErrorMessages      []string // first errorSample messages
	Rows               []RowResult
	TransferCandidates []transfer.Candidate
}

// defaultErrorSample bounds ErrorMessages.
const defaultErrorSample = 10

// Pipeline wires the pipeline stages to a store. The caller enforces upload
// size and row-count limits before invoking it.
type Pipeline struct {
	store       store.Store
	matcher     *category.Matcher
	resolver    *recipient.Resolver
	transfers   *transfer.Matcher
	currency    string
	errorSample int
	minTransfer float64
}

// Options tunes a Pipeline; zero values pick defaults.
type Options struct {
	DefaultCurrency       string
	ErrorSample           int
	TransferMinConfidence float64
}

// NewPipeline creates a Pipeline over one store.
func NewPipeline(st store.Store, matcher *category.Matcher, resolver *recipient.Resolver, opts Options) *Pipeline {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "EUR"
	}
	if opts.ErrorSample <= 0 {
		opts.ErrorSample = defaultErrorSample
	}
	if opts.TransferMinConfidence <= 0 {
		opts.TransferMinConfidence = 0.5
	}
	return &Pipeline{
		store:       st,
		matcher:     matcher,
		resolver:    resolver,
		transfers:   transfer.NewMatcher(st, st),
		currency:    opts.DefaultCurrency,
		errorSample: opts.ErrorSample,
		minTransfer: opts.TransferMinConfidence,
	}
}

// Import runs one upload through the pipeline sequentially, row by row. Row
// failures are collected; only structural failures abort, preserving partial
// counts in the returned summary.
func (p *Pipeline) Import(ctx context.Context, raw []byte, filename string, accountID uuid.UUID, mapping normalize.ColumnMapping) (*BatchSummary, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	account, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	currency := account.Currency
	if currency == "" {
		currency = p.currency
	}

	table, err := detect.Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := checkMappedHeaders(table.Headers, mapping); err != nil {
		return nil, err
	}
	conv, err := detect.ConventionFor(table.Column(mapping.Date))
	if err != nil {
		return nil, err
	}

	batch := &model.ImportBatch{
		ID:         uuid.New(),
		AccountID:  accountID,
		Filename:   filename,
		ImportedAt: time.Now().UTC(),
	}
	if err := p.store.CreateImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("creating import batch: %w", err)
	}

	// Best-effort fast path; the store's uniqueness constraint is the
	// real duplicate guarantee under concurrent imports.
	existing, err := p.store.ListFingerprints(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing fingerprints: %w", err)
	}

	summary := &BatchSummary{BatchID: batch.ID}
	seen := make(map[string]struct{})

	for i, row := range table.Rows {
		line := i + 1
		canonical, err := normalize.Row(row, conv, mapping, line)
		if err != nil {
			p.recordError(summary, line, err)
			continue
		}
		canonical.Currency = currency

		fp := fingerprint.Compute(canonical.Date, canonical.Amount, canonical.Recipient)
		if fingerprint.IsDuplicate(fp, existing) || fingerprint.IsDuplicate(fp, seen) {
			summary.Duplicates++
			summary.Rows = append(summary.Rows, RowResult{Line: line, Status: RowDuplicate})
			continue
		}

		tx := &model.PersistedTransaction{
			ID:                   uuid.New(),
			AccountID:            accountID,
			CanonicalTransaction: canonical,
			Fingerprint:          fp,
			ImportBatchID:        batch.ID,
		}

		match, err := p.matcher.Classify(ctx, canonical.Recipient, canonical.Purpose)
		if err != nil {
			return p.finish(ctx, batch, summary), fmt.Errorf("classifying row %d: %w", line, err)
		}
		if match != nil {
			id := match.Rule.ID
			tx.CategoryID = &id
		}

		identity, err := p.resolver.Resolve(ctx, canonical.Recipient)
		if err != nil {
			return p.finish(ctx, batch, summary), fmt.Errorf("resolving recipient on row %d: %w", line, err)
		}
		id := identity.ID
		tx.RecipientIdentityID = &id

		if err := p.store.CreateTransaction(ctx, tx); err != nil {
			if errors.Is(err, store.ErrDuplicateFingerprint) {
				summary.Duplicates++
				summary.Rows = append(summary.Rows, RowResult{Line: line, Status: RowDuplicate})
				continue
			}
			return p.finish(ctx, batch, summary), fmt.Errorf("persisting row %d: %w", line, err)
		}

		seen[fp] = struct{}{}
		summary.Imported++
		summary.Rows = append(summary.Rows, RowResult{Line: line, Status: RowImported, Transaction: &canonical})
	}

	p.finish(ctx, batch, summary)
	p.findTransferCandidates(ctx, summary)
	return summary, nil
}

func (p *Pipeline) recordError(summary *BatchSummary, line int, err error) {
	summary.Errored++
	summary.Rows = append(summary.Rows, RowResult{Line: line, Status: RowFailed, Err: err})
	if len(summary.ErrorMessages) < p.errorSample {
		summary.ErrorMessages = append(summary.ErrorMessages, err.Error())
	}
}

// finish stamps the batch status, persists the counters, and returns the
// summary so fatal paths can hand back partial counts.
func (p *Pipeline) finish(ctx context.Context, batch *model.ImportBatch, summary *BatchSummary) *BatchSummary {
	switch {
	case summary.Imported > 0:
		summary.Status = BatchImported
	case summary.Errored > 0:
		summary.Status = BatchFailed
	default:
		summary.Status = BatchDuplicatesOnly
	}

	batch.Imported = summary.Imported
	batch.Duplicates = summary.Duplicates
	batch.Errored = summary.Errored
	// Counter persistence is advisory; the summary already carries them.
	_ = p.store.UpdateImportBatch(ctx, batch)
	return summary
}

// findTransferCandidates reports, as a batch side effect, possible transfer
// pairs touching the rows just imported. Failures here never fail the batch.
func (p *Pipeline) findTransferCandidates(ctx context.Context, summary *BatchSummary) {
	var from, to time.Time
	for _, r := range summary.Rows {
		if r.Status != RowImported {
			continue
		}
		if from.IsZero() || r.Transaction.Date.Before(from) {
			from = r.Transaction.Date
		}
		if to.IsZero() || r.Transaction.Date.After(to) {
			to = r.Transaction.Date
		}
	}
	if from.IsZero() {
		return
	}

	accounts, err := p.store.ListAccounts(ctx)
	if err != nil {
		return
	}
	ids := make([]uuid.UUID, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	candidates, err := p.transfers.FindCandidates(ctx, ids, from, to, p.minTransfer)
	if err != nil {
		return
	}
	summary.TransferCandidates = candidates
}

func checkMappedHeaders(headers []string, mapping normalize.ColumnMapping) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	required := map[string]string{
		"date":      mapping.Date,
		"amount":    mapping.Amount,
		"recipient": mapping.Recipient,
	}
	for field, header := range required {
		if !known[header] {
			return fmt.Errorf("mapped %s column %q not found in file headers", field, header)
		}
	}
	if mapping.Purpose != "" && !known[mapping.Purpose] {
		return fmt.Errorf("mapped purpose column %q not found in file headers", mapping.Purpose)
	}
	return nil
}
