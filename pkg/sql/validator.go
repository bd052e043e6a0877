// Package sql provides the guardrails every generated statement must pass
// before execution: SELECT-only validation against a fixed view whitelist,
// limit enforcement, structured date-range wrapping, and injection
// screening of request values.
package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// ViolationError describes why a candidate statement was rejected.
// A rejected candidate is never repaired; the caller substitutes a
// known-good fallback report wholesale.
type ViolationError struct {
	Reason string
}

func (e *ViolationError) Error() string {
	return e.Reason
}

// blockedKeywords are DML/DDL/control keywords rejected as whole words.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "EXECUTE", "EXEC", "CALL", "COMMIT", "ROLLBACK",
	"SAVEPOINT", "DECLARE", "FETCH", "OPEN", "CLOSE", "DEALLOCATE",
}

var (
	transactionPattern = regexp.MustCompile(`(?i)\bBEGIN\s+(TRANSACTION|WORK|ATOMIC)\b`)
	sessionPattern     = regexp.MustCompile(`(?i)\bSET\s+(ROLE|SESSION|LOCAL|TIME\s+ZONE|TRANSACTION)\b`)

	// tableRefPattern captures the identifier after FROM or JOIN. A "("
	// after FROM (a subquery) is intentionally not captured.
	tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)

	keywordPatterns = compileKeywordPatterns()
)

func compileKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(blockedKeywords))
	for _, kw := range blockedKeywords {
		patterns[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}

// Validate checks a candidate statement against the rejection rules, in
// order, short-circuiting on the first failure. A nil return means the
// statement is safe to execute. allowedViews is the lowercase view
// whitelist; every FROM/JOIN target must belong to it.
func Validate(sqlQuery string, allowedViews map[string]bool) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return &ViolationError{Reason: "empty statement"}
	}

	if transactionPattern.MatchString(trimmed) {
		return &ViolationError{Reason: "transaction control statements are not allowed"}
	}

	if sessionPattern.MatchString(trimmed) {
		return &ViolationError{Reason: "session or role mutation is not allowed"}
	}

	for _, kw := range blockedKeywords {
		if keywordPatterns[kw].MatchString(trimmed) {
			return &ViolationError{Reason: fmt.Sprintf("blocked keyword: %s", kw)}
		}
	}

	// A semicolon anywhere before the final character means multiple
	// statements; a single trailing semicolon is tolerated.
	if idx := strings.Index(trimmed, ";"); idx >= 0 && idx < len(trimmed)-1 {
		return &ViolationError{Reason: "multiple statements are not allowed"}
	}

	// Comments are rejected outright to prevent validator bypass via
	// trailing comment injection.
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return &ViolationError{Reason: "comments are not allowed"}
	}

	for _, m := range tableRefPattern.FindAllStringSubmatch(trimmed, -1) {
		table := strings.ToLower(m[1])
		if !allowedViews[table] {
			return &ViolationError{Reason: fmt.Sprintf("table not allowed: %s", table)}
		}
	}

	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return &ViolationError{Reason: "only SELECT statements are allowed"}
	}

	return nil
}

// ViewSet builds the lowercase whitelist set Validate expects.
func ViewSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

// FirstTable returns the first FROM/JOIN target of the statement, or ""
// when none is found. The direct execution fallback reads this view.
func FirstTable(sqlQuery string) string {
	m := tableRefPattern.FindStringSubmatch(sqlQuery)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
