package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/apperrors"
	"github.com/pisoforte/insights-engine/pkg/audit"
	"github.com/pisoforte/insights-engine/pkg/auth"
	"github.com/pisoforte/insights-engine/pkg/models"
	"github.com/pisoforte/insights-engine/pkg/reports"
)

type fakeGenerator struct {
	wantsChart bool
	candidate  models.CandidateQuery
	err        error
	calls      int
}

func (f *fakeGenerator) WantsChart(string) bool { return f.wantsChart }

func (f *fakeGenerator) Generate(context.Context, string, []string, bool) (models.CandidateQuery, error) {
	f.calls++
	return f.candidate, f.err
}

type fakeExecutor struct {
	rows         []map[string]any
	err          error
	directRows   []map[string]any
	directErr    error
	executeCalls int
	directCalls  int
	lastSQL      string
	lastView     string
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, sqlQuery string) ([]map[string]any, error) {
	f.executeCalls++
	f.lastSQL = sqlQuery
	return f.rows, f.err
}

func (f *fakeExecutor) ExecuteDirect(_ context.Context, view string, _ models.DateRange, _ int) ([]map[string]any, error) {
	f.directCalls++
	f.lastView = view
	return f.directRows, f.directErr
}

type memoryCache struct {
	entries map[string]*models.InsightsResult
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*models.InsightsResult)}
}

func (c *memoryCache) Get(_ context.Context, hash string) (*models.InsightsResult, bool) {
	result, ok := c.entries[hash]
	return result, ok
}

func (c *memoryCache) Put(_ context.Context, hash string, result *models.InsightsResult) {
	c.puts++
	c.entries[hash] = result
}

type fakeAuditRepo struct {
	entries []*models.AuditEntry
	err     error
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *models.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return f.err
}

type pipeline struct {
	service   InsightsService
	generator *fakeGenerator
	executor  *fakeExecutor
	cache     *memoryCache
	auditRepo *fakeAuditRepo
}

func newPipeline(generator *fakeGenerator, executor *fakeExecutor) *pipeline {
	cache := newMemoryCache()
	auditRepo := &fakeAuditRepo{}
	service := NewInsightsService(
		generator,
		executor,
		cache,
		auditRepo,
		audit.NewSecurityAuditor(zap.NewNop()),
		500,
		zap.NewNop(),
	)
	return &pipeline{service, generator, executor, cache, auditRepo}
}

func userContext(userID string) context.Context {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
	return context.WithValue(context.Background(), auth.ClaimsKey, claims)
}

func TestQuery_MissingInput(t *testing.T) {
	p := newPipeline(&fakeGenerator{}, &fakeExecutor{})

	_, err := p.service.Query(userContext("user-1"), &models.QueryRequest{Question: "   "}, "10.0.0.1")

	assert.ErrorIs(t, err, apperrors.ErrMissingInput)
	assert.Empty(t, p.auditRepo.entries)
}

func TestQuery_InjectionInFilters(t *testing.T) {
	p := newPipeline(&fakeGenerator{}, &fakeExecutor{})

	req := &models.QueryRequest{
		Question:    "quanto vendi",
		FallbackKey: "' OR '1'='1",
	}
	_, err := p.service.Query(userContext("user-1"), req, "10.0.0.1")

	assert.ErrorIs(t, err, apperrors.ErrUnsafeInput)
	assert.Zero(t, p.generator.calls, "generation must not run on unsafe input")
	assert.Zero(t, p.executor.executeCalls)
}

func TestQuery_GeneratedPath(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{
			SQL:        "SELECT vendedor, SUM(valor_total) AS valor_total FROM vw_vendas GROUP BY vendedor LIMIT 20",
			ChartType:  models.ChartBar,
			XAxis:      "vendedor",
			YAxis:      []string{"valor_total"},
			Confidence: 0.9,
		},
	}
	executor := &fakeExecutor{rows: []map[string]any{
		{"vendedor": "Ana", "valor_total": 5000.0},
		{"vendedor": "Bruno", "valor_total": 3000.0},
	}}
	p := newPipeline(generator, executor)

	result, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{Question: "vendas por vendedor"}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, models.SourceGenerated, result.Source)
	assert.False(t, result.Cached)
	assert.False(t, result.UsedFallback)
	assert.Equal(t, 2, result.RowCount)
	assert.Contains(t, result.SQL, "LIMIT")
	assert.Equal(t, 1, p.cache.puts)

	require.Len(t, p.auditRepo.entries, 1)
	entry := p.auditRepo.entries[0]
	assert.Equal(t, "user-1", entry.UserID)
	assert.True(t, entry.Success)
	assert.Equal(t, models.SourceGenerated, entry.Source)
	assert.Equal(t, 2, entry.RowCount)
}

func TestQuery_FallbackKey(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]any{
		{"estagio": "novo", "total": int64(12), "valor_estimado": 40000.0},
		{"estagio": "proposta", "total": int64(5), "valor_estimado": 15000.0},
	}}
	p := newPipeline(&fakeGenerator{}, executor)

	result, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{FallbackKey: "funil_por_estagio"}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, models.SourceFallback, result.Source)
	assert.True(t, result.UsedFallback)
	assert.Equal(t, models.ChartBar, result.ChartType)
	assert.Equal(t, "estagio", result.XAxis)
	assert.True(t, result.WantsChart)
	assert.Zero(t, p.generator.calls, "explicit fallback key skips generation")
}

func TestQuery_UnknownFallbackKeyUsesDefault(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]any{{"valor_total": 100.0}}}
	p := newPipeline(&fakeGenerator{}, executor)

	result, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{FallbackKey: "relatorio_inexistente"}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, models.SourceFallback, result.Source)
	assert.Equal(t, reports.Default().SQL, executor.lastSQL)
}

func TestQuery_ValidationRejectionSubstitutesDefault(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{SQL: "DROP TABLE vw_vendas", Confidence: 0.8},
	}
	executor := &fakeExecutor{rows: []map[string]any{
		{"data": "2025-01-10", "valor_total": 900.0},
		{"data": "2025-01-11", "valor_total": 1100.0},
	}}
	p := newPipeline(generator, executor)

	result, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{Question: "DROP TABLE vw_vendas"}, "10.0.0.1")
	require.NoError(t, err, "rejected candidates recover via fallback, never an error")

	assert.Equal(t, models.SourceFallback, result.Source)
	assert.True(t, result.UsedFallback)
	assert.Contains(t, result.Explanation, "rejeitada")
	assert.Equal(t, reports.Default().SQL, executor.lastSQL)
}

func TestQuery_GenerationFailureSubstitutesDefault(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("model unavailable")}
	executor := &fakeExecutor{rows: []map[string]any{{"valor_total": 500.0}}}
	p := newPipeline(generator, executor)

	result, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{Question: "quanto vendi"}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, models.SourceFallback, result.Source)
	assert.True(t, result.UsedFallback)
	assert.Contains(t, result.Explanation, "relatório padrão")
}

func TestQuery_CacheHitShortCircuits(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{SQL: "SELECT COUNT(*) AS total FROM vw_vendas LIMIT 1", Confidence: 0.9},
	}
	executor := &fakeExecutor{rows: []map[string]any{{"total": int64(42)}}}
	p := newPipeline(generator, executor)
	ctx := userContext("user-1")
	req := &models.QueryRequest{Question: "quantas vendas temos"}

	first, err := p.service.Query(ctx, req, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.service.Query(ctx, req, "10.0.0.1")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, models.SourceCached, second.Source)
	assert.Equal(t, first.CacheHash, second.CacheHash)
	assert.Equal(t, 1, p.executor.executeCalls, "hit must not re-execute")
	assert.Equal(t, 1, p.generator.calls, "hit must not re-generate")
	assert.Len(t, p.auditRepo.entries, 2, "cache hits are audited too")
	assert.Equal(t, models.SourceCached, p.auditRepo.entries[1].Source)
}

func TestQuery_DirectViewFallback(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{SQL: "SELECT data, valor_total FROM vw_vendas LIMIT 10", Confidence: 0.7},
	}
	executor := &fakeExecutor{
		err:        errors.New("function consultar_view_segura does not exist"),
		directRows: []map[string]any{{"data": "2025-01-10", "valor_total": 800.0}},
	}
	p := newPipeline(generator, executor)

	result, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{Question: "vendas recentes"}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, models.SourceDirect, result.Source)
	assert.Equal(t, "vw_vendas", executor.lastView)
	assert.Equal(t, 1, executor.directCalls)
	assert.Equal(t, 1, result.RowCount)
}

func TestQuery_BothExecutionsFail(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{SQL: "SELECT data FROM vw_vendas LIMIT 10", Confidence: 0.7},
	}
	executor := &fakeExecutor{
		err:       errors.New("primary path down"),
		directErr: errors.New("view read failed"),
	}
	p := newPipeline(generator, executor)

	_, err := p.service.Query(userContext("user-1"),
		&models.QueryRequest{Question: "vendas recentes"}, "10.0.0.1")

	assert.ErrorIs(t, err, apperrors.ErrExecutionFailed)
	require.Len(t, p.auditRepo.entries, 1)
	assert.False(t, p.auditRepo.entries[0].Success)
	assert.Zero(t, p.cache.puts, "failures are never cached")
}

func TestQuery_QuestionDatesTakePrecedence(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{SQL: "SELECT data, valor_total FROM vw_vendas LIMIT 100", Confidence: 0.8},
	}
	executor := &fakeExecutor{rows: []map[string]any{{"data": "2025-07-01", "valor_total": 2500.0}}}
	p := newPipeline(generator, executor)

	req := &models.QueryRequest{
		Question: "vendas de 31/06/2025 a 15/07/2025",
		Filters:  models.QueryFilters{StartDate: "2024-01-01", EndDate: "2024-12-31"},
	}
	result, err := p.service.Query(userContext("user-1"), req, "10.0.0.1")
	require.NoError(t, err)

	assert.True(t, result.UsedQuestionDates)
	assert.Equal(t, "2025-06-30 a 2025-07-15", result.PeriodUsed)
	assert.Contains(t, result.TextResponse, "Ajustei 31/06/2025 para 2025-06-30")
	assert.Contains(t, executor.lastSQL, "'2025-06-30'")
	assert.Contains(t, executor.lastSQL, "'2025-07-15'")
	assert.NotContains(t, executor.lastSQL, "2024-01-01")
}

func TestQuery_DateFilterLandsBeforeAggregation(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]any{
		{"estagio": "novo", "total": int64(3), "valor_estimado": 9000.0},
		{"estagio": "proposta", "total": int64(2), "valor_estimado": 6000.0},
	}}
	p := newPipeline(&fakeGenerator{}, executor)

	req := &models.QueryRequest{
		FallbackKey: "funil_por_estagio",
		Filters:     models.QueryFilters{StartDate: "2025-01-01", EndDate: "2025-03-31"},
	}
	_, err := p.service.Query(userContext("user-1"), req, "10.0.0.1")
	require.NoError(t, err)

	// The date predicate must filter the rows being grouped, not the
	// grouped projection, which no longer carries the date column.
	whereIdx := strings.Index(executor.lastSQL, "WHERE data >= '2025-01-01' AND data <= '2025-03-31'")
	groupIdx := strings.Index(executor.lastSQL, "GROUP BY")
	require.GreaterOrEqual(t, whereIdx, 0, "sql = %q", executor.lastSQL)
	require.GreaterOrEqual(t, groupIdx, 0, "sql = %q", executor.lastSQL)
	assert.Less(t, whereIdx, groupIdx)
}

func TestQuery_FilterDatesWhenQuestionHasNone(t *testing.T) {
	generator := &fakeGenerator{
		candidate: models.CandidateQuery{SQL: "SELECT data, valor_total FROM vw_vendas LIMIT 100", Confidence: 0.8},
	}
	executor := &fakeExecutor{rows: []map[string]any{{"data": "2025-02-01", "valor_total": 1200.0}}}
	p := newPipeline(generator, executor)

	req := &models.QueryRequest{
		Question: "quanto vendi",
		Filters:  models.QueryFilters{StartDate: "2025-01-01", EndDate: "2025-03-31"},
	}
	result, err := p.service.Query(userContext("user-1"), req, "10.0.0.1")
	require.NoError(t, err)

	assert.False(t, result.UsedQuestionDates)
	assert.Equal(t, "2025-01-01 a 2025-03-31", result.PeriodUsed)
	assert.Contains(t, executor.lastSQL, "'2025-01-01'")
}
