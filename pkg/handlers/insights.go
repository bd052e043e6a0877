package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/apperrors"
	"github.com/pisoforte/insights-engine/pkg/auth"
	"github.com/pisoforte/insights-engine/pkg/models"
	"github.com/pisoforte/insights-engine/pkg/reports"
	"github.com/pisoforte/insights-engine/pkg/services"
)

// ExecutionErrorResponse is returned when both execution paths failed.
// It carries user-facing Portuguese text so the frontend can render it
// directly in the chat surface.
type ExecutionErrorResponse struct {
	Error        string `json:"error"`
	Suggestion   string `json:"suggestion"`
	TextResponse string `json:"textResponse"`
}

// ReportSummary describes one canned report for the catalog endpoint.
type ReportSummary struct {
	Key         string           `json:"key"`
	Description string           `json:"description"`
	ChartType   models.ChartType `json:"chartType"`
}

// InsightsHandler handles natural-language insights requests.
type InsightsHandler struct {
	insightsService services.InsightsService
	logger          *zap.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(insightsService services.InsightsService, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{
		insightsService: insightsService,
		logger:          logger,
	}
}

// RegisterRoutes registers the insights routes on the given mux.
func (h *InsightsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/insights/query", authMiddleware.RequireAuth(h.Query))
	mux.HandleFunc("GET /api/insights/reports", authMiddleware.RequireAuth(h.ListReports))
}

// Query handles POST /api/insights/query requests.
// A malformed or malicious question never surfaces as an error here; the
// pipeline recovers via fallback reports. Only missing input, unsafe
// structured fields and total execution failure reach the client as errors.
func (h *InsightsHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest,
			"Requisição inválida", "request body is not valid JSON")
		return
	}

	result, err := h.insightsService.Query(r.Context(), &req, clientIP(r))
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode insights response", zap.Error(err))
	}
}

func (h *InsightsHandler) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrMissingInput):
		_ = ErrorResponse(w, http.StatusBadRequest,
			"Pergunta é obrigatória", "request carried neither a question nor a fallback key")

	case errors.Is(err, apperrors.ErrUnsafeInput):
		_ = ErrorResponse(w, http.StatusBadRequest,
			"Valor de filtro inválido", "a request value failed injection screening")

	case errors.Is(err, apperrors.ErrExecutionFailed):
		h.logger.Error("Insights query failed on both execution paths",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		_ = WriteJSON(w, http.StatusInternalServerError, ExecutionErrorResponse{
			Error:        "Não consegui executar a consulta agora.",
			Suggestion:   "Tente novamente em instantes ou escolha um relatório pronto.",
			TextResponse: "Não consegui executar a consulta agora.",
		})

	default:
		h.logger.Error("Insights query failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError,
			"Erro interno", "unexpected pipeline failure")
	}
}

// ListReports handles GET /api/insights/reports requests.
// Returns the canned report catalog so the frontend can offer them as
// one-click fallback options.
func (h *InsightsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	keys := reports.Keys()
	sort.Strings(keys)

	summaries := make([]ReportSummary, 0, len(keys))
	for _, key := range keys {
		report, _ := reports.Lookup(key)
		summaries = append(summaries, ReportSummary{
			Key:         report.Key,
			Description: report.Description,
			ChartType:   report.Chart,
		})
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"reports": summaries}); err != nil {
		h.logger.Error("Failed to encode reports response", zap.Error(err))
	}
}

// clientIP resolves the originating client address, preferring the first
// X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
