package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/apperrors"
	"github.com/pisoforte/insights-engine/pkg/audit"
	"github.com/pisoforte/insights-engine/pkg/auth"
	"github.com/pisoforte/insights-engine/pkg/dates"
	"github.com/pisoforte/insights-engine/pkg/models"
	"github.com/pisoforte/insights-engine/pkg/reports"
	"github.com/pisoforte/insights-engine/pkg/repositories"
	enginesql "github.com/pisoforte/insights-engine/pkg/sql"
)

// InsightsService runs the full pipeline for one request: date extraction,
// cache lookup, generation (or fallback), validation, limit enforcement,
// date-range injection, execution, composition, cache and audit writes.
// Everything happens strictly sequentially within one request.
type InsightsService interface {
	Query(ctx context.Context, req *models.QueryRequest, clientIP string) (*models.InsightsResult, error)
}

type insightsService struct {
	generator    QueryGenerator
	executor     QueryExecutor
	cache        ResultCache
	auditRepo    repositories.AuditRepository
	secAuditor   *audit.SecurityAuditor
	allowedViews map[string]bool
	maxLimit     int
	logger       *zap.Logger
}

// NewInsightsService creates the pipeline orchestrator with dependencies.
func NewInsightsService(
	generator QueryGenerator,
	executor QueryExecutor,
	cache ResultCache,
	auditRepo repositories.AuditRepository,
	secAuditor *audit.SecurityAuditor,
	maxLimit int,
	logger *zap.Logger,
) InsightsService {
	if maxLimit <= 0 {
		maxLimit = enginesql.DefaultMaxLimit
	}
	return &insightsService{
		generator:    generator,
		executor:     executor,
		cache:        cache,
		auditRepo:    auditRepo,
		secAuditor:   secAuditor,
		allowedViews: enginesql.ViewSet(models.AllowedViewNames()),
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

var _ InsightsService = (*insightsService)(nil)

func (s *insightsService) Query(ctx context.Context, req *models.QueryRequest, clientIP string) (*models.InsightsResult, error) {
	start := time.Now()
	userID := auth.GetUserIDFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	fallbackKey := strings.TrimSpace(req.FallbackKey)
	if question == "" && fallbackKey == "" {
		return nil, apperrors.ErrMissingInput
	}

	// The question itself may legitimately mention SQL words and must
	// flow through generation; only structured fields are screened.
	if detection := enginesql.CheckRequestValues(map[string]string{
		"fallbackKey": fallbackKey,
		"startDate":   req.Filters.StartDate,
		"endDate":     req.Filters.EndDate,
	}); detection != nil {
		s.secAuditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
			FieldName:   detection.FieldName,
			FieldValue:  detection.FieldValue,
			Fingerprint: detection.Fingerprint,
		}, clientIP)
		return nil, apperrors.ErrUnsafeInput
	}

	// Dates extracted from the question take precedence over filters and
	// are immutable from here on.
	dateRange, corrections := dates.Extract(question)
	usedQuestionDates := !dateRange.IsZero()
	if !usedQuestionDates {
		dateRange = parseFilterDates(req.Filters)
	}

	keyText := question
	if fallbackKey != "" {
		keyText = "fallback:" + fallbackKey
	}
	hash := CacheHash(userID, keyText, dateRange)

	if cached, ok := s.cache.Get(ctx, hash); ok {
		result := *cached
		result.Cached = true
		result.Source = models.SourceCached
		result.CacheHash = hash
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		s.writeAudit(ctx, userID, question, fallbackKey, result.SQL, dateRange,
			result.ExecutionTimeMs, result.RowCount, result.Confidence, models.SourceCached, true)
		return &result, nil
	}

	wantsChart := s.generator.WantsChart(question)
	candidate, source := s.buildCandidate(ctx, question, fallbackKey, corrections, wantsChart, clientIP)
	if source == models.SourceFallback {
		// Fallback reports are pre-authored with a chart in mind.
		wantsChart = true
	}

	// Date predicates go into the statement's own WHERE clause, before
	// GROUP BY and LIMIT; the row cap is enforced on the result.
	restricted := enginesql.DateRestriction{
		Column: "data",
		Start:  dateRange.Start,
		End:    dateRange.End,
	}.Apply(candidate.SQL)
	finalSQL := enginesql.EnsureLimit(restricted, s.maxLimit)

	rows, err := s.executor.Execute(ctx, userID, finalSQL)
	if err != nil {
		s.logger.Warn("Primary execution failed, trying direct view read",
			zap.String("user_id", userID),
			zap.Error(err))

		rows, err = s.executeDirect(ctx, candidate.SQL, dateRange)
		if err != nil {
			elapsed := time.Since(start).Milliseconds()
			s.writeAudit(ctx, userID, question, fallbackKey, finalSQL, dateRange,
				elapsed, 0, candidate.Confidence, source, false)
			return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailed, err)
		}
		source = models.SourceDirect
	}

	result := ComposeResult(rows, candidate, corrections, dateRange, wantsChart)
	result.SQL = finalSQL
	result.Source = source
	result.UsedQuestionDates = usedQuestionDates
	result.CacheHash = hash
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	s.cache.Put(ctx, hash, &result)
	s.writeAudit(ctx, userID, question, fallbackKey, finalSQL, dateRange,
		result.ExecutionTimeMs, result.RowCount, result.Confidence, source, true)

	return &result, nil
}

// buildCandidate produces the candidate query: an explicit fallback report,
// an AI-generated statement, or the default report when generation fails or
// validation rejects. One substitution at most; never retried.
func (s *insightsService) buildCandidate(ctx context.Context, question, fallbackKey string, corrections []string, wantsChart bool, clientIP string) (models.CandidateQuery, models.ResultSource) {
	if fallbackKey != "" {
		report, ok := reports.Lookup(fallbackKey)
		if !ok {
			s.logger.Warn("Unknown fallback key, using default report",
				zap.String("fallback_key", fallbackKey))
			report = reports.Default()
		}
		return reports.Candidate(report), models.SourceFallback
	}

	candidate, err := s.generator.Generate(ctx, question, corrections, wantsChart)
	if err != nil {
		s.logger.Warn("Generation failed, substituting default report", zap.Error(err))
		substituted := reports.Candidate(reports.Default())
		substituted.Explanation = "Não consegui gerar uma consulta para a pergunta; mostrando o relatório padrão."
		return substituted, models.SourceFallback
	}

	if err := enginesql.Validate(candidate.SQL, s.allowedViews); err != nil {
		s.secAuditor.LogValidationRejection(ctx, err.Error(), candidate.SQL, clientIP)
		substituted := reports.Candidate(reports.Default())
		substituted.Explanation = fmt.Sprintf(
			"Consulta gerada rejeitada (%s); mostrando o relatório padrão.", err.Error())
		return substituted, models.SourceFallback
	}

	return candidate, models.SourceGenerated
}

// executeDirect reads the first FROM view of the candidate directly,
// re-applying the date filters that would have been injected into the SQL.
func (s *insightsService) executeDirect(ctx context.Context, candidateSQL string, dateRange models.DateRange) ([]map[string]any, error) {
	view := enginesql.FirstTable(candidateSQL)
	if view == "" {
		return nil, fmt.Errorf("no view reference found for direct read")
	}
	return s.executor.ExecuteDirect(ctx, view, dateRange, s.maxLimit)
}

func (s *insightsService) writeAudit(ctx context.Context, userID, question, fallbackKey, finalSQL string, dateRange models.DateRange, elapsedMs int64, rowCount int, confidence float64, source models.ResultSource, success bool) {
	entry := &models.AuditEntry{
		UserID:          userID,
		Question:        question,
		FallbackKey:     fallbackKey,
		FinalSQL:        finalSQL,
		ExecutionTimeMs: elapsedMs,
		RowCount:        rowCount,
		Confidence:      confidence,
		Source:          source,
		Success:         success,
	}
	if !dateRange.Start.IsZero() {
		startDate := dateRange.Start
		entry.StartDate = &startDate
	}
	if !dateRange.End.IsZero() {
		endDate := dateRange.End
		entry.EndDate = &endDate
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit entry",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// parseFilterDates resolves externally supplied ISO date filters. Invalid
// values are ignored rather than rejected; they were already screened for
// injection patterns.
func parseFilterDates(filters models.QueryFilters) models.DateRange {
	var dateRange models.DateRange
	if t, err := time.Parse("2006-01-02", filters.StartDate); err == nil {
		dateRange.Start = t
	}
	if t, err := time.Parse("2006-01-02", filters.EndDate); err == nil {
		dateRange.End = t
	}
	return dateRange
}
