// Package model contains domain models passed between layers.
package model

import "time"

// ResponseSet maps a question key such as "1.2.3" to its numeric answer.
type ResponseSet map[string]float64

// Diagnostic is the single stored questionnaire result of one tenant.
type Diagnostic struct {
	ID          int64       `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Responses   ResponseSet `json:"responses"`
	Score       float64     `json:"score"`
	Level       Level       `json:"level"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Answered returns the number of answered items.
func (d Diagnostic) Answered() int { return len(d.Responses) }

// DiagnosticResponses is the aggregation view of a stored diagnostic.
type DiagnosticResponses struct {
	ID        int64
	TenantID  string
	Responses ResponseSet
	Score     float64
}

// DimensionSnapshot is the persisted benchmark row of one dimension.
type DimensionSnapshot struct {
	Dimension string    `json:"dimension"`
	Average   float64   `json:"average"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverallSnapshot holds descriptive statistics over stored overall scores.
type OverallSnapshot struct {
	Average   float64   `json:"average"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}
