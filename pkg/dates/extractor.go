// Package dates extracts literal date ranges from Portuguese question text.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pisoforte/insights-engine/pkg/models"
)

const isoLayout = "2006-01-02"

// dateToken matches either D/M/Y or ISO YYYY-MM-DD. The ISO alternative
// comes first so its hyphens are consumed before the range connector.
const dateToken = `(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})`

// rangePattern matches "de D/M/Y a D/M/Y", "entre D/M/Y e D/M/Y",
// "D/M/Y - D/M/Y" and their ISO equivalents, case-insensitively.
var rangePattern = regexp.MustCompile(
	`(?i)(?:\bde\s+|\bentre\s+)?` + dateToken + `(?:\s+(?:a|até|ate|e)\s+|\s*-\s*)` + dateToken)

var (
	dmyPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	isoPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// Extract parses question text for a literal date range. It returns a zero
// range when no pattern matches; the caller must then fall back to
// externally supplied filters. Out-of-range days are clamped to the last
// valid day of their month and reported as correction messages. Pure
// function over its input.
func Extract(question string) (models.DateRange, []string) {
	m := rangePattern.FindStringSubmatch(question)
	if m == nil {
		return models.DateRange{}, nil
	}

	var corrections []string

	start, ok := parseDate(m[1], &corrections)
	if !ok {
		return models.DateRange{}, nil
	}
	end, ok := parseDate(m[2], &corrections)
	if !ok {
		return models.DateRange{}, nil
	}

	return models.DateRange{Start: start, End: end}, corrections
}

// parseDate parses one date token, clamping an out-of-range day to the last
// valid day of the month. Appends a correction message when clamping changed
// the value. Returns ok=false for tokens with an invalid month or year.
func parseDate(token string, corrections *[]string) (time.Time, bool) {
	var day, month, year int

	if m := dmyPattern.FindStringSubmatch(token); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else if m := isoPattern.FindStringSubmatch(token); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		return time.Time{}, false
	}

	if month < 1 || month > 12 || day < 1 || year < 1 {
		return time.Time{}, false
	}

	if last := daysInMonth(month, year); day > last {
		day = last
		corrected := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		*corrections = append(*corrections,
			fmt.Sprintf("Ajustei %s para %s", token, corrected.Format(isoLayout)))
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// daysInMonth returns the last valid day of the given month.
func daysInMonth(month, year int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	default:
		if isLeapYear(year) {
			return 29
		}
		return 28
	}
}

// isLeapYear follows the Gregorian rule: divisible by 4 and not by 100,
// or divisible by 400.
func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}
