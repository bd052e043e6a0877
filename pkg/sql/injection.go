package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// request-supplied value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if a SQL injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	FieldName   string // Name of the request field that failed the check
	FieldValue  string // The value that was checked
}

// CheckRequestValue uses libinjection to detect SQL injection patterns in
// a request-supplied string before it reaches prompt or SQL construction.
// Returns nil when the value is clean or empty.
func CheckRequestValue(fieldName, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		FieldName:   fieldName,
		FieldValue:  value,
	}
}

// CheckRequestValues screens a set of request fields and returns the first
// detection, or nil when all values are clean.
func CheckRequestValues(fields map[string]string) *InjectionCheckResult {
	// Deterministic order keeps audit logs stable.
	for _, name := range []string{"fallbackKey", "startDate", "endDate"} {
		if value, ok := fields[name]; ok {
			if result := CheckRequestValue(name, value); result != nil {
				return result
			}
		}
	}
	return nil
}
