// Package repository persists diagnostics and benchmark snapshots.
package repository

import (
	"context"

	"github.com/okian/cxdiag/internal/domain/model"
)

// Store provides read/write access to diagnostics and the benchmark snapshot.
type Store interface {
	// SaveDiagnostic stores d as the tenant's only diagnostic, replacing any
	// previous one. The returned value carries the persisted id and timestamp.
	SaveDiagnostic(ctx context.Context, d model.Diagnostic) (model.Diagnostic, error)
	// GetDiagnostic returns ErrNotFound if the tenant has no diagnostic.
	GetDiagnostic(ctx context.Context, tenantID string) (model.Diagnostic, error)
	// DeleteDiagnostic returns ErrNotFound if the tenant has no diagnostic.
	DeleteDiagnostic(ctx context.Context, tenantID string) error
	// ListDiagnostics returns a page ordered newest first.
	ListDiagnostics(ctx context.Context, limit, offset int) ([]model.Diagnostic, error)
	CountDiagnostics(ctx context.Context) (int, error)
	// CountAnsweredAtLeast counts diagnostics with at least n answers.
	CountAnsweredAtLeast(ctx context.Context, n int) (int, error)
	// ListScores returns the stored overall score of every tenant.
	ListScores(ctx context.Context) (map[string]float64, error)

	// ListDiagnosticsWithResponses returns every diagnostic whose response set is non-empty.
	ListDiagnosticsWithResponses(ctx context.Context) ([]model.DiagnosticResponses, error)
	// UpsertDimensionSnapshot updates the dimension row in place or inserts it.
	UpsertDimensionSnapshot(ctx context.Context, s model.DimensionSnapshot) error
	// UpsertOverallSnapshot replaces the single overall row.
	UpsertOverallSnapshot(ctx context.Context, s model.OverallSnapshot) error
	ListDimensionSnapshots(ctx context.Context) ([]model.DimensionSnapshot, error)
	// GetOverallSnapshot returns ErrNotFound before the first successful run.
	GetOverallSnapshot(ctx context.Context) (model.OverallSnapshot, error)

	Close() error
}
