package detect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoDateConvention means no template parsed every value and the
// disambiguation heuristic found nothing to decide on.
var ErrNoDateConvention = errors.New("no date convention fits all values")

// conventionKind tags how dates in a file are interpreted.
type conventionKind int

const (
	kindFixed conventionKind = iota
	kindDayFirst
	kindMonthFirst
)

// DateConvention is the single per-file interpretation of the date column:
// either a fixed layout that parsed every value, or a day-first/month-first
// ruling for files whose separators match no fixed template.
type DateConvention struct {
	kind   conventionKind
	layout string
}

// Fixed returns a convention bound to one time layout.
func Fixed(layout string) DateConvention {
	return DateConvention{kind: kindFixed, layout: layout}
}

// DayFirst is the ambiguous-separator convention reading D-M-Y.
var DayFirst = DateConvention{kind: kindDayFirst}

// MonthFirst is the ambiguous-separator convention reading M-D-Y.
var MonthFirst = DateConvention{kind: kindMonthFirst}

func (c DateConvention) String() string {
	switch c.kind {
	case kindDayFirst:
		return "day-first"
	case kindMonthFirst:
		return "month-first"
	default:
		return c.layout
	}
}

// dateTemplates in priority order. Dotted dates are European and read
// day-first; plain slashes default to the US order unless a value rules it
// out.
var dateTemplates = []string{
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

const (
	minPlausibleYear = 1990
	yearSlack        = 1 // accepted years run up to now + slack
)

// ConventionFor picks the file's date convention from every non-empty value
// of the date column. A fixed template is accepted only if it parses all
// values with plausible years; otherwise a component >12 anywhere decides
// day-first vs month-first for the whole file.
func ConventionFor(values []string) (DateConvention, error) {
	var nonEmpty []string
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return DateConvention{}, fmt.Errorf("%w: date column is empty", ErrNoDateConvention)
	}

	maxYear := time.Now().Year() + yearSlack

	for _, layout := range dateTemplates {
		if parsesAll(layout, nonEmpty, maxYear) {
			return Fixed(layout), nil
		}
	}

	for _, v := range nonEmpty {
		parts := numericParts(v)
		if len(parts) != 3 || parts[0] > 31 {
			// Not a plain triple, or a leading 4-digit year: nothing to decide.
			continue
		}
		if parts[0] > 12 && parts[0] <= 31 {
			return DayFirst, nil
		}
		if parts[1] > 12 && parts[1] <= 31 {
			return MonthFirst, nil
		}
	}

	// Every value is ambiguous and no template matched the separators.
	// Bank exports outside the US overwhelmingly write the day first.
	if allAmbiguousTriples(nonEmpty, maxYear) {
		return DayFirst, nil
	}
	return DateConvention{}, ErrNoDateConvention
}

// ParseDate reads one date value under the convention.
func (c DateConvention) ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}

	if c.kind == kindFixed {
		t, err := time.Parse(c.layout, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing date %q: %w", value, err)
		}
		return t, nil
	}

	parts := numericParts(value)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("parsing date %q: expected three components", value)
	}

	var day, month, year int
	switch {
	case parts[0] > 31: // leading 4-digit year
		year, month, day = parts[0], parts[1], parts[2]
	case c.kind == kindDayFirst:
		day, month, year = parts[0], parts[1], parts[2]
	default:
		month, day, year = parts[0], parts[1], parts[2]
	}
	if year < 100 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("parsing date %q: no such calendar day", value)
	}
	return t, nil
}

func parsesAll(layout string, values []string, maxYear int) bool {
	for _, v := range values {
		t, err := time.Parse(layout, v)
		if err != nil {
			return false
		}
		if t.Year() < minPlausibleYear || t.Year() > maxYear {
			return false
		}
	}
	return true
}

// numericParts splits a date string on any non-digit runs.
func numericParts(s string) []int {
	var parts []int
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r < '0' || r > '9' }) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil
		}
		parts = append(parts, n)
	}
	return parts
}

// allAmbiguousTriples reports whether every value is shaped like an
// ambiguous d-m-y triple: two leading components that could each be a day or
// month, and a trailing 2- or 4-digit plausible year.
func allAmbiguousTriples(values []string, maxYear int) bool {
	for _, v := range values {
		fields := strings.FieldsFunc(v, func(r rune) bool { return r < '0' || r > '9' })
		if len(fields) != 3 || len(fields[0]) == 4 {
			return false
		}
		a, errA := strconv.Atoi(fields[0])
		b, errB := strconv.Atoi(fields[1])
		if errA != nil || errB != nil || a < 1 || a > 31 || b < 1 || b > 31 {
			return false
		}
		switch len(fields[2]) {
		case 2:
		case 4:
			y, err := strconv.Atoi(fields[2])
			if err != nil || y < minPlausibleYear || y > maxYear {
				return false
			}
		default:
			return false
		}
	}
	return true
}
