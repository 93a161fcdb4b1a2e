package model

import "github.com/google/uuid"

// CategoryRule assigns a category to transactions whose text contains one of
// its literal patterns. Patterns keep their stored order; rule order decides
// ties between rules.
type CategoryRule struct {
	ID       uuid.UUID
	Name     string
	Patterns []string
}

// RecipientIdentity is the deduplicated canonical representation of a
// counterparty. NormalizedName is the unique lookup key; Aliases collects
// normalized near-duplicate spellings folded into this identity.
type RecipientIdentity struct {
	ID               uuid.UUID
	DisplayName      string
	NormalizedName   string
	Aliases          []string
	TransactionCount int
}
