package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pisoforte/insights-engine/pkg/models"
	"github.com/pisoforte/insights-engine/pkg/reports"
)

// valueColumns maps, in priority order, the column names summed as the
// valor_total KPI. An explicit enumeration instead of duck-typing the
// first row: only these columns ever feed the aggregate.
var valueColumns = []string{"valor_total", "receita", "valor"}

// marginColumn feeds the margem_media KPI, averaged over positive values only.
const marginColumn = "margem_pct"

// ComposeResult converts executed rows into KPIs, a natural-language
// summary and next-step suggestions. wantsChart is the original chart
// intent; the final flag also requires at least 2 rows and both axis
// bindings, since a single-row or axis-less result can never render.
func ComposeResult(rows []map[string]any, candidate models.CandidateQuery, corrections []string, dateRange models.DateRange, wantsChart bool) models.InsightsResult {
	kpis := computeKPIs(rows)

	chart := wantsChart &&
		len(rows) >= 2 &&
		candidate.XAxis != "" &&
		len(candidate.YAxis) > 0

	return models.InsightsResult{
		Data:         rows,
		KPIs:         kpis,
		ChartType:    candidate.ChartType,
		XAxis:        candidate.XAxis,
		YAxis:        candidate.YAxis,
		Confidence:   candidate.Confidence,
		Explanation:  candidate.Explanation,
		TextResponse: buildTextResponse(kpis, corrections, dateRange),
		UsedFallback: candidate.UsedFallback,
		RowCount:     len(rows),
		WantsChart:   chart,
		PeriodUsed:   dateRange.String(),
		NextSteps:    buildNextSteps(len(rows), dateRange),
	}
}

func computeKPIs(rows []map[string]any) models.KPIs {
	kpis := models.KPIs{TotalRegistros: len(rows)}
	if len(rows) == 0 {
		return kpis
	}

	valueColumn := ""
	for _, col := range valueColumns {
		if _, ok := rows[0][col]; ok {
			valueColumn = col
			break
		}
	}

	if valueColumn != "" {
		total := 0.0
		for _, row := range rows {
			if v, ok := toFloat(row[valueColumn]); ok {
				total += v
			}
		}
		kpis.ValorTotal = &total

		ticket := total / float64(len(rows))
		kpis.TicketMedio = &ticket
	}

	if _, ok := rows[0][marginColumn]; ok {
		sum, count := 0.0, 0
		for _, row := range rows {
			if v, ok := toFloat(row[marginColumn]); ok && v > 0 {
				sum += v
				count++
			}
		}
		if count > 0 {
			avg := sum / float64(count)
			kpis.MargemMedia = &avg
		}
	}

	return kpis
}

// toFloat converts the numeric shapes a jsonb or pgx row value can take.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func buildTextResponse(kpis models.KPIs, corrections []string, dateRange models.DateRange) string {
	var sentences []string

	// Date corrections always come first, as their own sentence.
	if len(corrections) > 0 {
		sentences = append(sentences, strings.Join(corrections, ". ")+".")
	}

	if kpis.TotalRegistros == 0 {
		msg := "Não encontrei registros para este período ou filtro."
		if !dateRange.IsZero() {
			msg = fmt.Sprintf("Não encontrei registros no período %s.", dateRange.String())
		}
		sentences = append(sentences, msg, "Tente ampliar o período consultado.")
		return strings.Join(sentences, " ")
	}

	summary := fmt.Sprintf("Encontrei %d registros", kpis.TotalRegistros)
	if !dateRange.IsZero() {
		summary += fmt.Sprintf(" no período %s", dateRange.String())
	}
	if kpis.ValorTotal != nil {
		summary += fmt.Sprintf(", totalizando %s", FormatBRL(*kpis.ValorTotal))
		if kpis.TicketMedio != nil {
			summary += fmt.Sprintf(" (ticket médio de %s)", FormatBRL(*kpis.TicketMedio))
		}
	}
	if kpis.MargemMedia != nil {
		summary += fmt.Sprintf(", com margem média de %.1f%%", *kpis.MargemMedia)
	}
	summary += "."

	sentences = append(sentences, summary)
	return strings.Join(sentences, " ")
}

func buildNextSteps(rowCount int, dateRange models.DateRange) []string {
	var steps []string

	if rowCount == 0 {
		if !dateRange.IsZero() {
			steps = append(steps, "Amplie o período consultado para encontrar mais registros.")
		} else {
			steps = append(steps, "Informe um período, por exemplo \"de 01/01/2025 a 31/03/2025\".")
		}
	} else if dateRange.IsZero() {
		steps = append(steps, "Restrinja a um período para uma análise mais focada.")
	}

	// Suggest up to two canned reports, in stable order.
	keys := reports.Keys()
	sort.Strings(keys)
	for _, key := range keys[:int(math.Min(2, float64(len(keys))))] {
		report, _ := reports.Lookup(key)
		steps = append(steps, fmt.Sprintf("Veja o relatório \"%s\" (%s).", report.Description, key))
	}

	return steps
}

// FormatBRL renders a value as Brazilian currency, e.g. "R$ 1.234,56".
func FormatBRL(value float64) string {
	negative := value < 0
	if negative {
		value = -value
	}

	whole := int64(value)
	cents := int64(math.Round((value - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents)
}
