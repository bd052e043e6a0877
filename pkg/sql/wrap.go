package sql

import (
	"fmt"
	"strings"
	"time"
)

// DateRestriction models the date-range injection as a small rendered
// structure instead of pattern-matching date columns inside generated SQL.
// The predicates land in the statement's own WHERE clause, before GROUP BY
// and LIMIT, so aggregations group the filtered rows and the row cap never
// truncates the period being filtered.
type DateRestriction struct {
	Column string
	Start  time.Time
	End    time.Time
}

func (r DateRestriction) predicates() []string {
	var predicates []string
	if !r.Start.IsZero() {
		predicates = append(predicates,
			fmt.Sprintf("%s >= '%s'", r.Column, r.Start.Format("2006-01-02")))
	}
	if !r.End.IsZero() {
		predicates = append(predicates,
			fmt.Sprintf("%s <= '%s'", r.Column, r.End.Format("2006-01-02")))
	}
	return predicates
}

// Apply returns the statement with the date predicates added to its
// top-level WHERE clause. An existing condition is parenthesized before
// the predicates are conjoined, so OR conditions keep their meaning. A
// statement without dates passes through unchanged, so fallback SQL
// reaches the executor unmodified except for limit clamping.
func (r DateRestriction) Apply(sqlQuery string) string {
	predicates := r.predicates()
	trimmed := strings.TrimRight(strings.TrimSpace(sqlQuery), "; \t\n\r")
	if len(predicates) == 0 {
		return trimmed
	}
	condition := strings.Join(predicates, " AND ")

	whereIdx, tailIdx := clauseSplit(trimmed)

	if whereIdx >= 0 {
		existing := strings.TrimSpace(trimmed[whereIdx+len("WHERE") : tailIdx])
		rewritten := trimmed[:whereIdx] + "WHERE (" + existing + ") AND " + condition
		if tail := trimmed[tailIdx:]; tail != "" {
			rewritten += " " + tail
		}
		return rewritten
	}

	head := strings.TrimRight(trimmed[:tailIdx], " \t\n\r")
	rewritten := head + " WHERE " + condition
	if tail := trimmed[tailIdx:]; tail != "" {
		rewritten += " " + tail
	}
	return rewritten
}

// tailKeywords open the clauses that must follow an injected WHERE.
var tailKeywords = []string{"GROUP", "HAVING", "WINDOW", "ORDER", "LIMIT", "OFFSET", "FETCH"}

// clauseSplit locates the statement's top-level WHERE keyword (-1 when
// absent) and the start of the first trailing clause (len(s) when none).
// Subquery clauses sit at parenthesis depth > 0 and are ignored.
func clauseSplit(s string) (whereIdx, tailIdx int) {
	whereIdx = -1
	tailIdx = len(s)

	forEachTopLevel(s, func(i int) bool {
		if whereIdx < 0 && matchKeyword(s, i, "WHERE") {
			whereIdx = i
			return false
		}
		for _, kw := range tailKeywords {
			if matchKeyword(s, i, kw) {
				tailIdx = i
				return true
			}
		}
		return false
	})

	return whereIdx, tailIdx
}

// keywordIndex returns the offset of the first top-level occurrence of kw,
// or -1.
func keywordIndex(s, kw string) int {
	idx := -1
	forEachTopLevel(s, func(i int) bool {
		if matchKeyword(s, i, kw) {
			idx = i
			return true
		}
		return false
	})
	return idx
}

// forEachTopLevel calls fn at every offset that sits at parenthesis depth
// zero outside single-quoted literals. fn returns true to stop the walk.
func forEachTopLevel(s string, fn func(i int) bool) {
	depth := 0
	inString := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			if c == '\'' {
				// A doubled quote is an escaped quote inside the literal.
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
				} else {
					inString = false
				}
			}
			continue
		}

		switch c {
		case '\'':
			inString = true
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}

		if depth == 0 && fn(i) {
			return
		}
	}
}

// matchKeyword reports whether kw starts at offset i as a whole word.
func matchKeyword(s string, i int, kw string) bool {
	if i+len(kw) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isIdentChar(s[i-1]) {
		return false
	}
	if i+len(kw) < len(s) && isIdentChar(s[i+len(kw)]) {
		return false
	}
	return true
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
