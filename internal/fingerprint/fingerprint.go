// Package fingerprint computes the stable content hash that gates duplicate
// rows. The digest covers exactly {ISO date, canonical decimal amount,
// trimmed recipient}; purpose is excluded so later edits to it do not break
// deduplication. Changing this derivation invalidates every stored
// fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// payload is serialized with sorted keys (struct order is alphabetical).
type payload struct {
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Recipient string `json:"recipient"`
}

// Compute returns the hex sha256 digest of the transaction triple. The
// amount is quantized to a 2-digit canonical string first, so every decimal
// spelling of the same value hashes identically.
func Compute(date time.Time, amount decimal.Decimal, recipient string) string {
	p := payload{
		Amount:    amount.StringFixed(2),
		Date:      date.Format("2006-01-02"),
		Recipient: strings.TrimSpace(recipient),
	}
	raw, _ := json.Marshal(p) // struct of strings cannot fail
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// IsDuplicate is a pure membership check against a caller-supplied set. The
// package holds no state; the persistence layer's uniqueness constraint is
// the real guarantee, this is the fast path.
func IsDuplicate(digest string, existing map[string]struct{}) bool {
	_, ok := existing[digest]
	return ok
}
