package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/pkg/logger"
	"github.com/okian/cxdiag/pkg/metrics"
)

// Messages surfaced in run summaries.
const (
	msgNoCorpus  = "No hay diagnósticos para calcular benchmark"
	msgSuccess   = "Benchmark recalculado con %d diagnósticos"
	msgFailedFmt = "Error: %s"
)

// Store is the persistence the aggregator needs.
type Store interface {
	ListDiagnosticsWithResponses(ctx context.Context) ([]model.DiagnosticResponses, error)
	UpsertDimensionSnapshot(ctx context.Context, s model.DimensionSnapshot) error
	UpsertOverallSnapshot(ctx context.Context, s model.OverallSnapshot) error
}

// Aggregator recomputes the benchmark snapshot from the stored corpus.
// Runs are serialised; concurrent callers wait for the run in progress.
type Aggregator struct {
	store   Store
	catalog *questionnaire.Catalog
	now     func() time.Time
	logger  logger.Logger

	mu   sync.Mutex
	last atomic.Pointer[model.RecalculationSummary]
}

// NewAggregator constructs an Aggregator with configuration options.
func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		catalog: questionnaire.Default(),
		now:     time.Now,
		logger:  logger.Get().Named("benchmark"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the dimension catalog used for grouping.
func (a *Aggregator) Catalog() *questionnaire.Catalog { return a.catalog }

// LastSummary returns the most recent run summary, if any run finished.
func (a *Aggregator) LastSummary() (model.RecalculationSummary, bool) {
	s := a.last.Load()
	if s == nil {
		return model.RecalculationSummary{}, false
	}
	return *s, true
}

// Recalculate runs one aggregation over the whole corpus.
//
// An empty corpus is a no-op: the summary has Success false and the error is
// nil. A store failure stops the run; dimensions written before it stay
// written, the summary reports failure and the error wraps ErrPersistence.
func (a *Aggregator) Recalculate(ctx context.Context, reason model.TriggerReason) (model.RecalculationSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	summary, err := a.run(ctx)
	summary.Reason = reason
	summary.FinishedAt = a.now().UTC()
	a.last.Store(&summary)

	ms := float64(time.Since(start).Milliseconds())
	switch {
	case err != nil:
		metrics.RecordRecalculation(metrics.OutcomeFailure, ms, summary.DimensionsUpdated)
		metrics.RecordErrorByType("recalculation_error", "high")
		a.logger.Error(ctx, "benchmark recalculation failed",
			logger.String("reason", string(reason)),
			logger.Int("dimensions_updated", summary.DimensionsUpdated),
			logger.Error(err),
		)
	case !summary.Success:
		metrics.RecordRecalculation(metrics.OutcomeNoCorpus, ms, 0)
		a.logger.Info(ctx, "benchmark recalculation skipped", logger.String("reason", string(reason)))
	default:
		metrics.RecordRecalculation(metrics.OutcomeSuccess, ms, summary.DimensionsUpdated)
		a.logger.Info(ctx, "benchmark recalculated",
			logger.String("reason", string(reason)),
			logger.Int("total_diagnostics", summary.TotalDiagnostics),
			logger.Int("dimensions_updated", summary.DimensionsUpdated),
		)
	}
	return summary, err
}

func (a *Aggregator) run(ctx context.Context) (model.RecalculationSummary, error) {
	records, err := a.store.ListDiagnosticsWithResponses(ctx)
	if err != nil {
		return failed(0, 0, err), fmt.Errorf("%w: list diagnostics: %w", ErrPersistence, err)
	}

	res, err := Compute(a.catalog, records)
	if errors.Is(err, ErrNoCorpus) {
		return model.RecalculationSummary{Success: false, Message: msgNoCorpus}, nil
	}
	if err != nil {
		return failed(len(records), 0, err), err
	}

	updated := 0
	for _, d := range res.Dimensions {
		snap := model.DimensionSnapshot{
			Dimension: d.Dimension.Name,
			Average:   d.Average,
			Min:       d.Min,
			Max:       d.Max,
			Count:     d.Count,
			UpdatedAt: a.now().UTC(),
		}
		if err := a.store.UpsertDimensionSnapshot(ctx, snap); err != nil {
			return failed(res.Diagnostics, updated, err),
				fmt.Errorf("%w: upsert dimension %s: %w", ErrPersistence, d.Dimension.Name, err)
		}
		updated++
	}

	overall := model.OverallSnapshot{
		Average:   res.Overall.Average,
		Min:       res.Overall.Min,
		Max:       res.Overall.Max,
		Count:     res.Overall.Count,
		UpdatedAt: a.now().UTC(),
	}
	if err := a.store.UpsertOverallSnapshot(ctx, overall); err != nil {
		return failed(res.Diagnostics, updated, err), fmt.Errorf("%w: upsert overall: %w", ErrPersistence, err)
	}

	return model.RecalculationSummary{
		Success:           true,
		Message:           fmt.Sprintf(msgSuccess, res.Diagnostics),
		TotalDiagnostics:  res.Diagnostics,
		DimensionsUpdated: updated,
	}, nil
}

func failed(total, updated int, err error) model.RecalculationSummary {
	return model.RecalculationSummary{
		Success:           false,
		Message:           fmt.Sprintf(msgFailedFmt, err.Error()),
		TotalDiagnostics:  total,
		DimensionsUpdated: updated,
	}
}
