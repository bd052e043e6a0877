// Package reports holds the static catalog of canned, pre-validated
// queries used when AI generation is unavailable or unsafe.
package reports

import "github.com/pisoforte/insights-engine/pkg/models"

// DefaultKey is the report substituted when generation or validation
// fails and the caller did not name a fallback explicitly.
const DefaultKey = "visao_geral_vendas"

// catalog is authored against the same view whitelist the validator
// enforces, so every entry passes validation by construction.
// Looked up by key, never mutated at runtime.
var catalog = map[string]models.FallbackReport{
	"visao_geral_vendas": {
		Key:         "visao_geral_vendas",
		SQL:         "SELECT data, valor_total, margem_pct, vendedor FROM vw_vendas ORDER BY data DESC LIMIT 100",
		Chart:       models.ChartLine,
		XAxis:       "data",
		YAxis:       []string{"valor_total"},
		Description: "Vendas recentes com valores e margens",
	},
	"funil_por_estagio": {
		Key:         "funil_por_estagio",
		SQL:         "SELECT estagio, COUNT(*) AS total, SUM(valor_estimado) AS valor_estimado FROM vw_leads GROUP BY estagio ORDER BY total DESC LIMIT 50",
		Chart:       models.ChartBar,
		XAxis:       "estagio",
		YAxis:       []string{"total", "valor_estimado"},
		Description: "Funil de leads por estágio",
	},
	"vendas_por_mes": {
		Key:         "vendas_por_mes",
		SQL:         "SELECT DATE_TRUNC('month', data) AS mes, SUM(valor_total) AS valor_total, COUNT(*) AS total FROM vw_vendas GROUP BY mes ORDER BY mes LIMIT 36",
		Chart:       models.ChartLine,
		XAxis:       "mes",
		YAxis:       []string{"valor_total"},
		Description: "Evolução mensal das vendas",
	},
	"propostas_por_status": {
		Key:         "propostas_por_status",
		SQL:         "SELECT status, COUNT(*) AS total, SUM(valor_total) AS valor_total FROM vw_propostas GROUP BY status ORDER BY total DESC LIMIT 20",
		Chart:       models.ChartPie,
		XAxis:       "status",
		YAxis:       []string{"total"},
		Description: "Propostas agrupadas por status",
	},
	"receita_despesa_mensal": {
		Key:         "receita_despesa_mensal",
		SQL:         "SELECT DATE_TRUNC('month', data) AS mes, SUM(receita) AS receita, SUM(despesa) AS despesa FROM vw_financeiro GROUP BY mes ORDER BY mes LIMIT 36",
		Chart:       models.ChartBar,
		XAxis:       "mes",
		YAxis:       []string{"receita", "despesa"},
		Description: "Receitas e despesas por mês",
	},
	"visitas_por_status": {
		Key:         "visitas_por_status",
		SQL:         "SELECT status, COUNT(*) AS total FROM vw_visitas GROUP BY status ORDER BY total DESC LIMIT 20",
		Chart:       models.ChartBar,
		XAxis:       "status",
		YAxis:       []string{"total"},
		Description: "Visitas técnicas por status",
	},
	"top_clientes": {
		Key:         "top_clientes",
		SQL:         "SELECT nome, valor_total, total_compras FROM vw_clientes ORDER BY valor_total DESC LIMIT 20",
		Chart:       models.ChartBar,
		XAxis:       "nome",
		YAxis:       []string{"valor_total"},
		Description: "Clientes com maior valor acumulado",
	},
	"obras_em_andamento": {
		Key:         "obras_em_andamento",
		SQL:         "SELECT status, COUNT(*) AS total, SUM(area_m2) AS area_m2 FROM vw_obras GROUP BY status ORDER BY total DESC LIMIT 20",
		Chart:       models.ChartBar,
		XAxis:       "status",
		YAxis:       []string{"total", "area_m2"},
		Description: "Obras agrupadas por status",
	},
}

// Lookup returns the report registered under key.
func Lookup(key string) (models.FallbackReport, bool) {
	report, ok := catalog[key]
	return report, ok
}

// Default returns the report used when generation or validation fails.
func Default() models.FallbackReport {
	return catalog[DefaultKey]
}

// Keys lists the registered report keys, for the nextSteps suggestions.
func Keys() []string {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	return keys
}

// Candidate converts a report into the candidate-query shape the pipeline
// consumes. Fallback selection always forces usedFallback and a chart.
func Candidate(report models.FallbackReport) models.CandidateQuery {
	return models.CandidateQuery{
		SQL:          report.SQL,
		ChartType:    report.Chart,
		XAxis:        report.XAxis,
		YAxis:        report.YAxis,
		Confidence:   0.4,
		Explanation:  report.Description,
		UsedFallback: true,
	}
}
