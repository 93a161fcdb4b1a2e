// Package normalize turns one detected-format row into a canonical
// transaction: ISO date, exact decimal amount, trimmed strings.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/detect"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

// maxRecipientRunes caps the stored recipient length.
const maxRecipientRunes = 255

// ColumnMapping binds the canonical fields to source headers. Date, Amount
// and Recipient are required; Purpose is optional.
type ColumnMapping struct {
	Date      string
	Amount    string
	Recipient string
	Purpose   string
}

// Validate reports a missing required binding.
func (m ColumnMapping) Validate() error {
	switch {
	case m.Date == "":
		return errors.New("column mapping: date column is required")
	case m.Amount == "":
		return errors.New("column mapping: amount column is required")
	case m.Recipient == "":
		return errors.New("column mapping: recipient column is required")
	}
	return nil
}

// RowError is a row-level validation failure. It never aborts the batch.
type RowError struct {
	Line  int // 1-based data row number
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Row converts one raw row under the file's date convention and the caller's
// column mapping. line is the 1-based data row number used in errors.
func Row(row detect.RawRow, conv detect.DateConvention, mapping ColumnMapping, line int) (model.CanonicalTransaction, error) {
	rawDate := strings.TrimSpace(row.Get(mapping.Date))
	if rawDate == "" {
		return model.CanonicalTransaction{}, &RowError{Line: line, Field: "date", Err: errors.New("missing value")}
	}
	date, err := conv.ParseDate(rawDate)
	if err != nil {
		return model.CanonicalTransaction{}, &RowError{Line: line, Field: "date", Err: err}
	}

	rawAmount := strings.TrimSpace(row.Get(mapping.Amount))
	if rawAmount == "" {
		return model.CanonicalTransaction{}, &RowError{Line: line, Field: "amount", Err: errors.New("missing value")}
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return model.CanonicalTransaction{}, &RowError{Line: line, Field: "amount", Err: err}
	}

	recipient := strings.TrimSpace(row.Get(mapping.Recipient))
	if recipient == "" {
		return model.CanonicalTransaction{}, &RowError{Line: line, Field: "recipient", Err: errors.New("missing value")}
	}
	if runes := []rune(recipient); len(runes) > maxRecipientRunes {
		recipient = string(runes[:maxRecipientRunes])
	}

	var purpose string
	if mapping.Purpose != "" {
		purpose = strings.TrimSpace(row.Get(mapping.Purpose))
	}

	// Preserve the full raw row for auditing; unmapped columns survive here.
	audit := make(map[string]string, len(row.Headers()))
	for _, h := range row.Headers() {
		audit[h] = row.Get(h)
	}

	return model.CanonicalTransaction{
		Date:      date,
		Amount:    amount,
		Recipient: recipient,
		Purpose:   purpose,
		Audit:     audit,
	}, nil
}

// ParseAmount reads a locale-ambiguous amount string into an exact decimal.
// The decimal separator (comma vs dot) is decided by position: when both
// appear, the later one is the decimal mark; a lone separator is a decimal
// mark unless it is followed by exactly three digits in a multi-group
// number.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, raw)
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" || cleaned == "-" {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", raw)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European: 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			// American: 1,234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && !isThousandsTail(cleaned, lastComma) {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") > 1 || isThousandsTail(cleaned, lastDot) {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

// isThousandsTail reports whether the separator at pos looks like a grouping
// mark: exactly three trailing digits and more than three digits in total
// before it would make ".234" a grouped thousand, not cents.
func isThousandsTail(s string, pos int) bool {
	tail := s[pos+1:]
	if len(tail) != 3 {
		return false
	}
	head := strings.TrimLeft(s[:pos], "-")
	return len(head) >= 1 && len(head) <= 3 && head != "0"
}
