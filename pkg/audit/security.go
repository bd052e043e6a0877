// Package audit provides security audit logging for SIEM consumption.
// Security-relevant events are logged in structured JSON format for easy
// parsing and integration with monitoring systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL
	// injection patterns in a request value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventValidationRejection is logged when the validator rejects a
	// generated candidate and a fallback is substituted.
	EventValidationRejection SecurityEventType = "validation_rejection"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a detected injection attempt.
type InjectionDetails struct {
	FieldName   string `json:"field_name"`
	FieldValue  string `json:"field_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace, for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a detected SQL injection attempt with full
// context. Logged at ERROR level with "critical" severity for alerting.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		UserID:    userID,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "critical",
	}

	// Marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("field_name", details.FieldName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "critical"),
	)
}

// LogValidationRejection records a validator rejection of a generated
// candidate. Logged at WARN level: these are recovered via fallback, but a
// pattern of rejections may indicate probing.
func (a *SecurityAuditor) LogValidationRejection(ctx context.Context, reason, rejectedSQL, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventValidationRejection,
		UserID:    userID,
		ClientIP:  clientIP,
		Details: map[string]string{
			"reason":       reason,
			"rejected_sql": rejectedSQL,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Generated candidate rejected by validator",
		zap.String("event_json", string(eventJSON)),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "warning"),
	)
}
