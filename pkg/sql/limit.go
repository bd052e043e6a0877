package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxLimit caps the row count of every executed statement.
const DefaultMaxLimit = 500

var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)

// EnsureLimit guarantees the statement carries a top-level LIMIT clause no
// greater than maxLimit. Every LIMIT occurrence, subquery ones included,
// is clamped down and never raised; a missing top-level clause is
// appended. Idempotent: re-applying is a no-op beyond the clamp.
func EnsureLimit(sqlQuery string, maxLimit int) string {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	trimmed := strings.TrimSpace(sqlQuery)
	trailingSemi := strings.HasSuffix(trimmed, ";")
	if trailingSemi {
		trimmed = strings.TrimRight(strings.TrimSuffix(trimmed, ";"), " \t\n\r")
	}

	trimmed = limitPattern.ReplaceAllStringFunc(trimmed, func(clause string) string {
		m := limitPattern.FindStringSubmatch(clause)
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxLimit {
			return fmt.Sprintf("LIMIT %d", maxLimit)
		}
		return clause
	})

	if keywordIndex(trimmed, "LIMIT") < 0 {
		trimmed = fmt.Sprintf("%s LIMIT %d", trimmed, maxLimit)
	}

	if trailingSemi {
		trimmed += ";"
	}
	return trimmed
}
