// Package detect infers the tabular format of a raw statement export:
// encoding, delimiter, header row, and the file's date convention.
package detect

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrNoTabularStructure means no delimiter/encoding combination produced a
// table with at least two columns.
var ErrNoTabularStructure = errors.New("no valid tabular structure")

// candidateDelimiters in detection order. Semicolon first: ambiguous
// European exports use it alongside comma decimals.
var candidateDelimiters = []rune{';', ',', '\t', '|'}

// sampleLines is how many leading non-empty lines feed delimiter frequency
// counting.
const sampleLines = 10

// RawRow is one parsed line as an ordered header -> raw string mapping.
type RawRow struct {
	headers []string
	values  []string
}

// Get returns the raw value under header, or "" if the header is unknown or
// the row is short.
func (r RawRow) Get(header string) string {
	for i, h := range r.headers {
		if h == header && i < len(r.values) {
			return r.values[i]
		}
	}
	return ""
}

// Headers returns the column headers in file order.
func (r RawRow) Headers() []string { return r.headers }

// Values returns the raw values in file order.
func (r RawRow) Values() []string { return r.values }

// Table is the detected tabular structure of a statement file.
type Table struct {
	Encoding  string
	Delimiter rune
	Headers   []string
	Rows      []RawRow
}

// Column returns all values of the named column, in row order.
func (t *Table) Column(header string) []string {
	vals := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		vals = append(vals, row.Get(header))
	}
	return vals
}

// Parse detects encoding and delimiter and parses raw into a Table. It is a
// pure function of the input bytes.
func Parse(raw []byte) (*Table, error) {
	text, encName, err := decode(raw)
	if err != nil {
		return nil, err
	}

	delim, records, err := detectDelimiter(text)
	if err != nil {
		return nil, err
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rows = append(rows, RawRow{headers: headers, values: rec})
	}

	return &Table{
		Encoding:  encName,
		Delimiter: delim,
		Headers:   headers,
		Rows:      rows,
	}, nil
}

// decode strips a UTF-8 BOM and returns valid UTF-8 text, falling back to
// Windows-1252 and then ISO-8859-1 for legacy bank exports.
func decode(raw []byte) (string, string, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw), "utf-8", nil
	}

	fallbacks := []struct {
		name string
		cm   *charmap.Charmap
	}{
		{"windows-1252", charmap.Windows1252},
		{"iso-8859-1", charmap.ISO8859_1},
	}
	for _, fb := range fallbacks {
		decoded, err := fb.cm.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		return string(decoded), fb.name, nil
	}
	return "", "", fmt.Errorf("%w: undecodable byte stream", ErrNoTabularStructure)
}

// detectDelimiter counts candidate delimiters over the first lines, then
// confirms the winner by parsing the whole text into >=2 columns. Candidates
// are retried in descending frequency so a losing count can still win when
// the top pick fails to parse.
func detectDelimiter(text string) (rune, [][]string, error) {
	lines := leadingLines(text, sampleLines)
	if len(lines) == 0 {
		return 0, nil, fmt.Errorf("%w: empty input", ErrNoTabularStructure)
	}

	counts := make(map[rune]int, len(candidateDelimiters))
	for _, line := range lines {
		for _, d := range candidateDelimiters {
			counts[d] += strings.Count(line, string(d))
		}
	}

	// Stable order: by count descending, candidate order breaking ties.
	order := make([]rune, len(candidateDelimiters))
	copy(order, candidateDelimiters)
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if counts[order[j]] > counts[order[i]] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	for _, d := range order {
		if counts[d] == 0 {
			continue
		}
		records, err := readAll(text, d)
		if err != nil || len(records) == 0 {
			continue
		}
		if len(records[0]) < 2 {
			continue
		}
		return d, records, nil
	}
	return 0, nil, ErrNoTabularStructure
}

func readAll(text string, delim rune) ([][]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func leadingLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
