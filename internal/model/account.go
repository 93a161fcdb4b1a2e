package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is a bank account that statement files are imported into.
type Account struct {
	ID       uuid.UUID
	Name     string
	Currency string
}

// ImportBatch records one statement-file upload and its outcome counters.
type ImportBatch struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Filename   string
	ImportedAt time.Time
	Imported   int
	Duplicates int
	Errored    int
}
