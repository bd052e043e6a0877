package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/database"
	"github.com/pisoforte/insights-engine/pkg/models"
	enginesql "github.com/pisoforte/insights-engine/pkg/sql"
)

// QueryExecutor runs validated statements against the backing store.
type QueryExecutor interface {
	// Execute runs the statement through the restricted, read-only
	// procedure that applies per-user row scoping server-side.
	Execute(ctx context.Context, userID, sqlQuery string) ([]map[string]any, error)

	// ExecuteDirect issues a filtered select straight against one
	// whitelisted view. Resilience path for statements the procedure
	// rejects; it honors the same SELECT-only, limited contract.
	ExecuteDirect(ctx context.Context, view string, dateRange models.DateRange, limit int) ([]map[string]any, error)
}

type pgExecutor struct {
	db       *database.DB
	maxLimit int
	logger   *zap.Logger
}

// NewQueryExecutor creates a PostgreSQL-backed executor. maxLimit is the
// configured row cap, passed to the restricted procedure and used as the
// direct-read default.
func NewQueryExecutor(db *database.DB, maxLimit int, logger *zap.Logger) QueryExecutor {
	if maxLimit <= 0 {
		maxLimit = enginesql.DefaultMaxLimit
	}
	return &pgExecutor{db: db, maxLimit: maxLimit, logger: logger}
}

var _ QueryExecutor = (*pgExecutor)(nil)

func (e *pgExecutor) Execute(ctx context.Context, userID, sqlQuery string) ([]map[string]any, error) {
	start := time.Now()

	rows, err := e.db.Query(ctx,
		"SELECT * FROM consultar_view_segura($1, $2, $3)",
		userID, sqlQuery, e.maxLimit)
	if err != nil {
		return nil, fmt.Errorf("restricted execution failed: %w", err)
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		var row map[string]any
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode result row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	e.logger.Debug("Executed restricted query",
		zap.Int("rows", len(results)),
		zap.Duration("elapsed", time.Since(start)))

	return results, nil
}

func (e *pgExecutor) ExecuteDirect(ctx context.Context, view string, dateRange models.DateRange, limit int) ([]map[string]any, error) {
	if !models.IsAllowedView(view) {
		return nil, fmt.Errorf("view not allowed: %s", view)
	}
	if limit <= 0 {
		limit = e.maxLimit
	}

	// The view name is interpolated because identifiers cannot be bound
	// as parameters; it has just been checked against the whitelist.
	var (
		predicates []string
		args       []any
	)
	if !dateRange.Start.IsZero() {
		args = append(args, dateRange.Start)
		predicates = append(predicates, fmt.Sprintf("data >= $%d", len(args)))
	}
	if !dateRange.End.IsZero() {
		args = append(args, dateRange.End)
		predicates = append(predicates, fmt.Sprintf("data <= $%d", len(args)))
	}

	query := "SELECT * FROM " + view
	if len(predicates) > 0 {
		query += " WHERE " + strings.Join(predicates, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := e.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("direct view read failed: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	var results []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read result row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	e.logger.Debug("Executed direct view read",
		zap.String("view", view),
		zap.Int("rows", len(results)))

	return results, nil
}
