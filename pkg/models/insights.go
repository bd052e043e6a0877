// Package models defines the data model of the insights pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ChartType is the kind of visualization a query result is rendered as.
type ChartType string

const (
	ChartTable ChartType = "table"
	ChartBar   ChartType = "bar"
	ChartLine  ChartType = "line"
	ChartPie   ChartType = "pie"
)

// ResultSource tags which path produced the final result.
type ResultSource string

const (
	// SourceCached means the result came from the cache, short-circuiting
	// generation and execution entirely.
	SourceCached ResultSource = "cached"
	// SourceGenerated means the AI-generated candidate passed validation
	// and executed on the primary path.
	SourceGenerated ResultSource = "generated"
	// SourceFallback means a canned report replaced the candidate
	// (generation failure, validation failure, or explicit key).
	SourceFallback ResultSource = "fallback"
	// SourceDirect means the primary execution path failed and the result
	// came from the direct view read.
	SourceDirect ResultSource = "direct"
)

// QueryRequest is the decoded insights request body.
type QueryRequest struct {
	Question    string       `json:"pergunta,omitempty"`
	FallbackKey string       `json:"fallbackKey,omitempty"`
	Filters     QueryFilters `json:"filtros"`
}

// QueryFilters carries externally supplied date bounds in ISO form.
// Dates extracted from the question text take precedence over these.
type QueryFilters struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// DateRange is a resolved, inclusive date interval. Zero values mean
// "unbounded on that side".
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// String renders the range for the periodUsed response field.
func (r DateRange) String() string {
	const layout = "2006-01-02"
	switch {
	case r.Start.IsZero() && r.End.IsZero():
		return ""
	case r.End.IsZero():
		return "a partir de " + r.Start.Format(layout)
	case r.Start.IsZero():
		return "até " + r.End.Format(layout)
	default:
		return r.Start.Format(layout) + " a " + r.End.Format(layout)
	}
}

// CandidateQuery is the not-yet-validated output of the generation step.
type CandidateQuery struct {
	SQL          string    `json:"sql"`
	ChartType    ChartType `json:"chart_type"`
	XAxis        string    `json:"x_axis"`
	YAxis        []string  `json:"y_axis"`
	Confidence   float64   `json:"confidence"`
	Explanation  string    `json:"explanation,omitempty"`
	UsedFallback bool      `json:"-"`
}

// FallbackReport is a static catalog entry of pre-validated SQL used when
// generation is unavailable or unsafe. Never mutated at runtime.
type FallbackReport struct {
	Key         string
	SQL         string
	Chart       ChartType
	XAxis       string
	YAxis       []string
	Description string
}

// KPIs are the opportunistic aggregates computed over the result rows.
// Only fields backed by columns present in the rows are populated.
type KPIs struct {
	TotalRegistros int      `json:"total_registros"`
	ValorTotal     *float64 `json:"valor_total,omitempty"`
	TicketMedio    *float64 `json:"ticket_medio,omitempty"`
	MargemMedia    *float64 `json:"margem_media,omitempty"`
}

// InsightsResult is the finalized response payload of a query request.
type InsightsResult struct {
	Data              []map[string]any `json:"data"`
	KPIs              KPIs             `json:"kpis"`
	SQL               string           `json:"sql"`
	ChartType         ChartType        `json:"chartType"`
	XAxis             string           `json:"xAxis"`
	YAxis             []string         `json:"yAxis"`
	Confidence        float64          `json:"confidence"`
	Explanation       string           `json:"explanation"`
	TextResponse      string           `json:"textResponse"`
	UsedFallback      bool             `json:"usedFallback"`
	RowCount          int              `json:"rowCount"`
	ExecutionTimeMs   int64            `json:"executionTimeMs"`
	WantsChart        bool             `json:"wantsChart"`
	PeriodUsed        string           `json:"periodUsed,omitempty"`
	UsedQuestionDates bool             `json:"usedQuestionDates"`
	Cached            bool             `json:"cached"`
	CacheHash         string           `json:"cacheHash"`
	NextSteps         []string         `json:"nextSteps"`
	Source            ResultSource     `json:"source"`
}

// AuditEntry is one append-only record of a finalized insights request.
// Written once per request, never read back by the pipeline.
type AuditEntry struct {
	ID              uuid.UUID
	UserID          string
	Question        string
	FallbackKey     string
	FinalSQL        string
	StartDate       *time.Time
	EndDate         *time.Time
	ExecutionTimeMs int64
	RowCount        int
	Confidence      float64
	Source          ResultSource
	Success         bool
	CreatedAt       time.Time
}
