// Package repositories provides data access for the engine's own tables.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pisoforte/insights-engine/pkg/database"
	"github.com/pisoforte/insights-engine/pkg/models"
)

// AuditRepository provides access to the append-only insights audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry. Write-once per request.
	Create(ctx context.Context, entry *models.AuditEntry) error
}

type auditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO insights_audit (
			id, user_id, pergunta, fallback_key, final_sql,
			start_date, end_date, execution_time_ms, row_count,
			confidence, source, success, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		nullIfEmpty(entry.Question),
		nullIfEmpty(entry.FallbackKey),
		entry.FinalSQL,
		entry.StartDate,
		entry.EndDate,
		entry.ExecutionTimeMs,
		entry.RowCount,
		entry.Confidence,
		string(entry.Source),
		entry.Success,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
