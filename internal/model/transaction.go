package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CanonicalTransaction is one normalized statement row: ISO date, exact
// decimal amount, trimmed strings. Immutable once accepted by the pipeline.
type CanonicalTransaction struct {
	Date      time.Time
	Amount    decimal.Decimal // negative = money out, positive = money in
	Recipient string
	Purpose   string
	Currency  string
	Audit     map[string]string // original header -> raw value
}

// PersistedTransaction is a canonical transaction plus its stored identity
// and enrichment references. Rows are cascade-deleted with their account or
// import batch.
type PersistedTransaction struct {
	ID                  uuid.UUID
	AccountID           uuid.UUID
	CanonicalTransaction
	Fingerprint         string
	CategoryID          *uuid.UUID
	RecipientIdentityID *uuid.UUID
	ImportBatchID       uuid.UUID
}
