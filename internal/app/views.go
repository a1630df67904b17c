package service

import (
	"time"

	"github.com/okian/cxdiag/internal/domain/model"
)

// Recalculation outcomes reported by SaveProgress.
const (
	RecalcNotRequired = "not_required"
	RecalcDisabled    = "disabled"
	RecalcEnqueued    = "enqueued"
	RecalcCoalesced   = "coalesced"
	RecalcRejected    = "rejected"
)

// SaveResult is returned after storing a tenant's answers.
type SaveResult struct {
	TenantID      string      `json:"tenant_id"`
	Answered      int         `json:"answered"`
	Score         float64     `json:"score"`
	Level         model.Level `json:"level"`
	Completed     bool        `json:"completed"`
	Recalculation string      `json:"recalculation"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// DimensionView is one benchmark row as surfaced to clients.
type DimensionView struct {
	Dimension string    `json:"dimension"`
	Title     string    `json:"title"`
	Average   float64   `json:"average"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BenchmarkView is the current snapshot. Overall is nil before the first run.
type BenchmarkView struct {
	Dimensions []DimensionView        `json:"dimensions"`
	Overall    *model.OverallSnapshot `json:"overall,omitempty"`
}

// DiagnosticSummary is a listing row without the raw answers.
type DiagnosticSummary struct {
	ID          int64       `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Answered    int         `json:"answered"`
	Score       float64     `json:"score"`
	Level       model.Level `json:"level"`
	CompletedAt time.Time   `json:"completed_at"`
}

// DiagnosticPage is one page of the admin listing.
type DiagnosticPage struct {
	Items   []DiagnosticSummary `json:"items"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
	Total   int                 `json:"total"`
	Pages   int                 `json:"pages"`
}

// Stats summarises the stored corpus.
type Stats struct {
	TotalDiagnostics     int                         `json:"total_diagnostics"`
	CompletedDiagnostics int                         `json:"completed_diagnostics"`
	CompletionRate       float64                     `json:"completion_rate"`
	PendingTriggers      int                         `json:"pending_triggers"`
	LastRecalculation    *model.RecalculationSummary `json:"last_recalculation,omitempty"`
}
