// Package store defines the persistence boundary of the ingestion pipeline.
// The real storage engine lives behind these interfaces; MemoryStore is the
// reference implementation used by tests and the CLI.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

var (
	// ErrNotFound is returned for lookups of unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFingerprint mirrors the database uniqueness constraint on
	// (account, fingerprint).
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("conflict")
)

// AccountStore manages bank accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetAccountByName(ctx context.Context, name string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]*model.Account, error)
}

// TransactionStore manages persisted transactions and the queries the
// enrichment stages need.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *model.PersistedTransaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.PersistedTransaction, error)
	// ListTransactions returns an account's rows ordered by date ascending.
	// Zero from/to mean unbounded.
	ListTransactions(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*model.PersistedTransaction, error)
	// ListFingerprints returns the account's stored fingerprint set.
	ListFingerprints(ctx context.Context, accountID uuid.UUID) (map[string]struct{}, error)
	// FindByAmountInWindow returns rows of exactly amount, dated within
	// [from,to], in any account except excludeAccount. This is the narrow
	// slice query the transfer matcher runs per candidate.
	FindByAmountInWindow(ctx context.Context, excludeAccount uuid.UUID, amount decimal.Decimal, from, to time.Time) ([]*model.PersistedTransaction, error)
	// ReassignIdentity re-points every transaction referencing fromIdentity
	// to toIdentity and returns how many rows changed.
	ReassignIdentity(ctx context.Context, fromIdentity, toIdentity uuid.UUID) (int, error)
}

// IdentityStore manages recipient identities.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, identity *model.RecipientIdentity) error
	GetIdentity(ctx context.Context, id uuid.UUID) (*model.RecipientIdentity, error)
	ListIdentities(ctx context.Context) ([]*model.RecipientIdentity, error)
	UpdateIdentity(ctx context.Context, identity *model.RecipientIdentity) error
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// RuleStore supplies category rules. Satisfies category.RuleSource.
type RuleStore interface {
	ListCategoryRules(ctx context.Context) ([]model.CategoryRule, error)
	PutCategoryRules(ctx context.Context, rules []model.CategoryRule) error
}

// RecurringStore manages detected recurring groups and their supporting-row
// links.
type RecurringStore interface {
	ListRecurringGroups(ctx context.Context, accountID uuid.UUID) ([]*model.RecurringGroup, error)
	CreateRecurringGroup(ctx context.Context, group *model.RecurringGroup) error
	UpdateRecurringGroup(ctx context.Context, group *model.RecurringGroup) error
	DeleteRecurringGroup(ctx context.Context, id uuid.UUID) error
	SetRecurringMembers(ctx context.Context, groupID uuid.UUID, txIDs []uuid.UUID) error
	RecurringMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// TransferStore manages transfer links.
type TransferStore interface {
	CreateTransferLink(ctx context.Context, link *model.TransferLink) error
	ListTransferLinks(ctx context.Context) ([]*model.TransferLink, error)
	// TransactionLinked reports whether the transaction already participates
	// in a link on either side.
	TransactionLinked(ctx context.Context, txID uuid.UUID) (bool, error)
}

// BatchStore records import batches.
type BatchStore interface {
	CreateImportBatch(ctx context.Context, batch *model.ImportBatch) error
	UpdateImportBatch(ctx context.Context, batch *model.ImportBatch) error
}

// Store is the full persistence surface the pipeline is wired against.
type Store interface {
	AccountStore
	TransactionStore
	IdentityStore
	RuleStore
	RecurringStore
	TransferStore
	BatchStore
}
