package model

import "time"

// TriggerReason says why a benchmark recalculation was requested.
type TriggerReason string

// Trigger reasons.
const (
	TriggerAdmin      TriggerReason = "admin"
	TriggerCompletion TriggerReason = "completion"
	TriggerStartup    TriggerReason = "startup"
)

// Trigger is a request to recalculate the benchmark snapshot.
type Trigger struct {
	Reason      TriggerReason `json:"reason"`
	TenantID    string        `json:"tenant_id,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
}

// RecalculationSummary is the outcome of one benchmark aggregation run.
type RecalculationSummary struct {
	Success           bool          `json:"success"`
	Message           string        `json:"message"`
	TotalDiagnostics  int           `json:"total_diagnostics"`
	DimensionsUpdated int           `json:"dimensions_updated"`
	Reason            TriggerReason `json:"reason,omitempty"`
	FinishedAt        time.Time     `json:"finished_at"`
}
