package ingest

import (
	"strings"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/detect"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/normalize"
)

// Analysis describes an upload before import: the detected format plus
// discardable column-mapping hints. The pipeline never guesses field
// identity beyond these suggestions; the caller decides the mapping.
type Analysis struct {
	Encoding       string
	Delimiter      rune
	Headers        []string
	RowCount       int
	Suggested      normalize.ColumnMapping
	DateConvention string // empty when no date column could be suggested
	SampleRows     [][]string
}

// Header keyword lists for mapping suggestions, multi-language like real
// bank exports.
var (
	dateKeywords      = []string{"date", "datum", "buchungstag", "valuta", "fecha", "data"}
	amountKeywords    = []string{"amount", "betrag", "importe", "valor", "value", "umsatz"}
	recipientKeywords = []string{"recipient", "payee", "counterparty", "merchant", "beneficiary", "empfänger", "auftraggeber", "name"}
	purposeKeywords   = []string{"purpose", "description", "verwendungszweck", "memo", "reference", "text", "descrição", "descripcion"}
)

const sampleRowCount = 5

// Analyze detects the file format and suggests a column mapping from header
// keywords. It never mutates anything.
func (p *Pipeline) Analyze(raw []byte, _ string) (*Analysis, error) {
	table, err := detect.Parse(raw)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Encoding:  table.Encoding,
		Delimiter: table.Delimiter,
		Headers:   table.Headers,
		RowCount:  len(table.Rows),
	}
	for i := 0; i < len(table.Rows) && i < sampleRowCount; i++ {
		a.SampleRows = append(a.SampleRows, table.Rows[i].Values())
	}

	a.Suggested = normalize.ColumnMapping{
		Date:      matchHeader(table.Headers, dateKeywords),
		Amount:    matchHeader(table.Headers, amountKeywords),
		Recipient: matchHeader(table.Headers, recipientKeywords),
		Purpose:   matchHeader(table.Headers, purposeKeywords),
	}

	if a.Suggested.Date != "" {
		if conv, err := detect.ConventionFor(table.Column(a.Suggested.Date)); err == nil {
			a.DateConvention = conv.String()
		}
	}
	return a, nil
}

// matchHeader returns the first header containing one of the keywords,
// preferring exact matches.
func matchHeader(headers []string, keywords []string) string {
	for _, kw := range keywords {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), kw) {
				return h
			}
		}
	}
	for _, kw := range keywords {
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), kw) {
				return h
			}
		}
	}
	return ""
}
