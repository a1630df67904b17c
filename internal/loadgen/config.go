// Package loadgen seeds a running cxdiag server with generated diagnostics
// and checks the resulting benchmark against a local computation.
package loadgen

import (
	"time"

	"github.com/okian/cxdiag/internal/domain/model"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Tenants           int           // Number of tenants to generate
	CompleteShare     float64       // Share of tenants answering every item, 0..1
	ItemsPerDimension int           // Questions per dimension
	Workers           int           // Number of concurrent submitters
	Timeout           time.Duration // HTTP request timeout
	TenantHeader      string        // Header carrying the tenant id
	AdminToken        string        // Bearer token for admin routes
	Seed              uint64        // Random seed; 0 picks one from the clock
	OutputFile        string        // Optional JSON dump of the submissions
	Verbose           bool          // Log every mismatch
}

// Submission is one tenant's generated answers.
type Submission struct {
	TenantID  string            `json:"tenant_id"`
	Responses model.ResponseSet `json:"responses"`
}

// Dimension mirrors one benchmark row returned by the server.
type Dimension struct {
	Dimension string  `json:"dimension"`
	Average   float64 `json:"average"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Count     int     `json:"count"`
}

// Benchmark mirrors GET /api/benchmark.
type Benchmark struct {
	Dimensions []Dimension `json:"dimensions"`
}

// Summary mirrors the admin recalculation response.
type Summary struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TotalDiagnostics  int    `json:"total_diagnostics"`
	DimensionsUpdated int    `json:"dimensions_updated"`
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Complete    int
	Submitted   int
	Successful  int
	Failed      int
	Verified    int
	Mismatches  int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Recalculate Summary
}
