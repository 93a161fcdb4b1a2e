package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecurringGroup is a detected cluster of similar-amount, similarly-spaced
// transactions to one recipient. Groups with ManualOverride set are never
// touched by re-detection.
type RecurringGroup struct {
	ID                  uuid.UUID
	AccountID           uuid.UUID
	Recipient           string
	AverageAmount       decimal.Decimal
	AverageIntervalDays float64
	FirstDate           time.Time
	LastDate            time.Time
	OccurrenceCount     int
	Active              bool
	ManualOverride      bool
	PredictedNext       time.Time
	Confidence          float64
}

// TransferLink pairs a negative transaction in one account with the
// positive transaction of identical magnitude in another.
//
// Invariants: FromTransactionID != ToTransactionID, the two transactions
// belong to different accounts, the "from" amount is negative and the "to"
// amount is its positive mirror. Amount stores the positive magnitude.
type TransferLink struct {
	ID                uuid.UUID
	FromTransactionID uuid.UUID
	ToTransactionID   uuid.UUID
	Amount            decimal.Decimal
	Date              time.Time
	AutoDetected      bool
	Confidence        float64
}
