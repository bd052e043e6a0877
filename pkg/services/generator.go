// Package services orchestrates the insights pipeline: generation,
// validation, execution, composition, caching and auditing.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/llm"
	"github.com/pisoforte/insights-engine/pkg/models"
)

// QueryGenerator turns a natural-language question into a candidate query.
// The contract is deterministic: NL in, structured candidate out; the
// candidate is advisory until it passes validation.
type QueryGenerator interface {
	// WantsChart scans the question for chart/trend vocabulary. The flag
	// changes the generation instruction (grouped/time-series shape vs.
	// flat aggregate); it does not validate or execute anything.
	WantsChart(question string) bool

	// Generate produces a candidate query for the question. Any error
	// means the caller must substitute a fallback report; generation is
	// never retried.
	Generate(ctx context.Context, question string, corrections []string, wantsChart bool) (models.CandidateQuery, error)
}

// chartVocabulary are the terms that signal the user expects a chart or a
// time series rather than a flat aggregate.
var chartVocabulary = []string{
	"gráfico", "grafico", "chart",
	"evolução", "evolucao", "evolution",
	"por mês", "por mes", "por dia", "por semana",
	"tendência", "tendencia", "trend",
	"timeline", "linha do tempo",
	"histórico", "historico", "history",
	"últimos", "ultimos", "últimas", "ultimas",
}

type queryGenerator struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewQueryGenerator creates a generator backed by the given client.
// timeout bounds each generation call; generation latency is the dominant
// variable cost of a request.
func NewQueryGenerator(client llm.Client, timeout time.Duration, logger *zap.Logger) QueryGenerator {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &queryGenerator{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

var _ QueryGenerator = (*queryGenerator)(nil)

func (g *queryGenerator) WantsChart(question string) bool {
	lower := strings.ToLower(question)
	for _, term := range chartVocabulary {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// generatedPayload is the JSON object the model is instructed to return.
type generatedPayload struct {
	SQL        string   `json:"sql"`
	ChartType  string   `json:"chart_type"`
	XAxis      string   `json:"x_axis"`
	YAxis      []string `json:"y_axis"`
	Confidence float64  `json:"confidence"`
}

func (g *queryGenerator) Generate(ctx context.Context, question string, corrections []string, wantsChart bool) (models.CandidateQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := buildUserPrompt(question, corrections, wantsChart)

	response, err := g.client.GenerateResponse(ctx, prompt, systemPrompt(), 0.1)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("generation call failed: %w", err)
	}

	payload, err := llm.ParseJSONResponse[generatedPayload](response)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("unparseable generation output: %w", err)
	}
	if strings.TrimSpace(payload.SQL) == "" {
		return models.CandidateQuery{}, fmt.Errorf("generation output has no SQL")
	}

	g.logger.Debug("Generated candidate query",
		zap.String("model", g.client.GetModel()),
		zap.Float64("confidence", payload.Confidence),
		zap.Bool("wants_chart", wantsChart))

	return models.CandidateQuery{
		SQL:        strings.TrimSpace(payload.SQL),
		ChartType:  normalizeChartType(payload.ChartType),
		XAxis:      payload.XAxis,
		YAxis:      payload.YAxis,
		Confidence: clampConfidence(payload.Confidence),
	}, nil
}

func normalizeChartType(raw string) models.ChartType {
	switch models.ChartType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.ChartBar:
		return models.ChartBar
	case models.ChartLine:
		return models.ChartLine
	case models.ChartPie:
		return models.ChartPie
	default:
		return models.ChartTable
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// systemPrompt describes the fixed view whitelist and the rules the model
// must follow. The generator is only ever told about these views; nothing
// outside the whitelist is visible to it.
func systemPrompt() string {
	var b strings.Builder
	b.WriteString("Você é um gerador de consultas SQL para um CRM de instalação de pisos (PostgreSQL).\n")
	b.WriteString("Você só pode consultar as views abaixo. Nenhuma outra tabela existe para você.\n\n")

	for _, view := range models.AllowedViews {
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n",
			view.Name, view.Description, strings.Join(view.Columns, ", ")))
	}

	b.WriteString("\nRegras:\n")
	b.WriteString("1. Gere exatamente uma consulta SELECT, sem ponto e vírgula e sem comentários.\n")
	b.WriteString("2. Nunca use INSERT, UPDATE, DELETE ou qualquer comando que modifique dados.\n")
	b.WriteString("3. Inclua LIMIT de no máximo 500 linhas.\n")
	b.WriteString("4. Responda somente com um objeto JSON: ")
	b.WriteString(`{"sql": "...", "chart_type": "table|bar|line|pie", "x_axis": "...", "y_axis": ["..."], "confidence": 0.0}`)
	b.WriteString("\n")
	return b.String()
}

func buildUserPrompt(question string, corrections []string, wantsChart bool) string {
	var b strings.Builder
	b.WriteString("Pergunta: ")
	b.WriteString(question)
	b.WriteString("\n")

	for _, c := range corrections {
		b.WriteString("Observação: ")
		b.WriteString(c)
		b.WriteString("\n")
	}

	if wantsChart {
		b.WriteString("O usuário quer visualizar um gráfico: agrupe os dados (por período ou categoria) e escolha chart_type, x_axis e y_axis adequados.\n")
	} else {
		b.WriteString("O usuário quer um número ou uma lista simples: gere um agregado plano, chart_type \"table\".\n")
	}

	return b.String()
}
