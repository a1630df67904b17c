// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	triggerqueue "github.com/okian/cxdiag/internal/adapters/mq/queue"
	"github.com/okian/cxdiag/internal/adapters/mq/worker"
	"github.com/okian/cxdiag/internal/adapters/ranking"
	repository "github.com/okian/cxdiag/internal/adapters/repository"
	"github.com/okian/cxdiag/internal/domain/benchmark"
	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/internal/domain/scoring"
	"github.com/okian/cxdiag/pkg/logger"
	"github.com/okian/cxdiag/pkg/metrics"
)

// Default service configuration.
const (
	defaultFullItemCount   = 60
	defaultTriggerQueue    = 1
	defaultMaxPageSize     = 100
	defaultPerPage         = 20
	workerDrainTimeout     = 10 * time.Second
	defaultDatabaseDriver  = repository.DriverSQLite
	defaultDatabaseDSN     = "cxdiag.db"
	percentileWhenNoScores = 50
)

// Service implements the API dependencies for the diagnostic system.
type Service struct {
	mu sync.RWMutex
	// writeMu orders store writes with their ranking index updates.
	writeMu sync.Mutex

	// Core components
	store      repository.Store
	ownsStore  bool
	catalog    *questionnaire.Catalog
	aggregator *benchmark.Aggregator
	index      *ranking.Index
	triggers   triggerqueue.Queue
	worker     *worker.RecalculationWorker
	cancelRun  context.CancelFunc

	// Configuration
	driver             string
	dsn                string
	fullItemCount      int
	autoRecalculate    bool
	recalculateOnStart bool
	triggerQueueSize   int
	maxPageSize        int

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ownsStore:        true,
		driver:           defaultDatabaseDriver,
		dsn:              defaultDatabaseDSN,
		fullItemCount:    defaultFullItemCount,
		autoRecalculate:  true,
		triggerQueueSize: defaultTriggerQueue,
		maxPageSize:      defaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, rebuilds the ranking index and starts the trigger worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.catalog == nil {
		s.catalog = questionnaire.Default()
	}

	s.logger.Info(ctx, "starting diagnostic service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.driver, s.dsn)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
		s.logger.Info(ctx, "store opened", logger.String("driver", s.driver))
	}

	scores, err := s.store.ListScores(ctx)
	if err != nil {
		s.closeOwnedStore()
		return fmt.Errorf("rebuild ranking index: %w", err)
	}
	s.index = ranking.NewIndex()
	s.index.Reset(scores)
	metrics.UpdateTotalDiagnostics(s.index.Len())

	s.aggregator = benchmark.NewAggregator(s.store,
		benchmark.WithCatalog(s.catalog),
		benchmark.WithLogger(s.logger.Named("benchmark")),
	)
	s.triggers = triggerqueue.NewInMemoryQueue(triggerqueue.WithCapacity(s.triggerQueueSize))
	s.worker = worker.NewRecalculationWorker(s.triggers, s.aggregator,
		worker.WithName("recalculation"),
		worker.WithLogger(s.logger.Named("worker")),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	go s.worker.Run(runCtx)

	if s.recalculateOnStart {
		s.triggers.Enqueue(ctx, triggerqueue.Trigger{Reason: model.TriggerStartup, RequestedAt: time.Now()})
	}

	s.started = true
	s.logger.Info(ctx, "diagnostic service started",
		logger.Int("indexed_scores", s.index.Len()),
		logger.Int("full_questionnaire_item_count", s.fullItemCount),
		logger.Bool("auto_recalculate", s.autoRecalculate),
		logger.Int("trigger_queue_size", s.triggerQueueSize),
	)
	return nil
}

// Stop drains pending triggers, stops the worker and closes an owned store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping diagnostic service...")

	_ = s.triggers.Close()
	drainCtx, cancel := context.WithTimeout(ctx, workerDrainTimeout)
	if err := s.worker.Wait(drainCtx); err != nil {
		s.logger.Warn(ctx, "worker did not drain in time", logger.Error(err))
		s.cancelRun()
		_ = s.worker.Shutdown(drainCtx)
	}
	cancel()
	s.cancelRun()

	s.closeOwnedStore()
	s.started = false
	s.logger.Info(ctx, "diagnostic service stopped")
}

func (s *Service) closeOwnedStore() {
	if s.ownsStore && s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SaveProgress scores and stores the tenant's answers, replacing any previous
// diagnostic. A complete submission queues a benchmark recalculation.
func (s *Service) SaveProgress(ctx context.Context, tenantID string, responses model.ResponseSet) (SaveResult, error) {
	if err := s.ready(); err != nil {
		return SaveResult{}, err
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return SaveResult{}, ErrInvalidTenant
	}
	if len(responses) == 0 {
		return SaveResult{}, ErrEmptyResponses
	}

	result := scoring.Score(responses)
	s.writeMu.Lock()
	saved, err := s.store.SaveDiagnostic(ctx, model.Diagnostic{
		TenantID:  tenantID,
		Responses: responses,
		Score:     result.Score,
		Level:     result.Level,
	})
	if err != nil {
		s.writeMu.Unlock()
		return SaveResult{}, fmt.Errorf("save diagnostic: %w", err)
	}
	s.index.Upsert(tenantID, result.Score)
	s.writeMu.Unlock()
	metrics.RecordDiagnosticSubmitted(result.Score)
	metrics.UpdateTotalDiagnostics(s.index.Len())

	out := SaveResult{
		TenantID:      tenantID,
		Answered:      result.Answered,
		Score:         result.Rounded(),
		Level:         result.Level,
		Completed:     result.Answered >= s.fullItemCount,
		Recalculation: RecalcNotRequired,
		CompletedAt:   saved.CompletedAt,
	}
	if !out.Completed {
		return out, nil
	}

	metrics.RecordDiagnosticCompleted()
	if !s.autoRecalculate {
		out.Recalculation = RecalcDisabled
		return out, nil
	}
	switch s.triggers.Enqueue(ctx, triggerqueue.Trigger{
		Reason:      model.TriggerCompletion,
		TenantID:    tenantID,
		RequestedAt: time.Now(),
	}) {
	case triggerqueue.Enqueued:
		out.Recalculation = RecalcEnqueued
	case triggerqueue.Coalesced:
		out.Recalculation = RecalcCoalesced
	default:
		out.Recalculation = RecalcRejected
		s.logger.Warn(ctx, "recalculation trigger rejected", logger.String("tenant", tenantID))
	}
	return out, nil
}

// GetDiagnostic returns the tenant's stored diagnostic.
func (s *Service) GetDiagnostic(ctx context.Context, tenantID string) (model.Diagnostic, error) {
	if err := s.ready(); err != nil {
		return model.Diagnostic{}, err
	}
	d, err := s.store.GetDiagnostic(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Diagnostic{}, fmt.Errorf("%w: tenant %q", ErrNotFound, tenantID)
	}
	if err != nil {
		return model.Diagnostic{}, fmt.Errorf("get diagnostic: %w", err)
	}
	return d, nil
}

// Recalculate runs the aggregator synchronously on behalf of an administrator.
func (s *Service) Recalculate(ctx context.Context) (model.RecalculationSummary, error) {
	if err := s.ready(); err != nil {
		return model.RecalculationSummary{Success: false, Message: "Error: " + err.Error()}, err
	}
	return s.aggregator.Recalculate(ctx, model.TriggerAdmin)
}

// Benchmark returns the stored snapshot in catalog order.
func (s *Service) Benchmark(ctx context.Context) (BenchmarkView, error) {
	if err := s.ready(); err != nil {
		return BenchmarkView{}, err
	}
	rows, err := s.store.ListDimensionSnapshots(ctx)
	if err != nil {
		return BenchmarkView{}, fmt.Errorf("list snapshot: %w", err)
	}
	byName := make(map[string]model.DimensionSnapshot, len(rows))
	for _, r := range rows {
		byName[r.Dimension] = r
	}

	view := BenchmarkView{Dimensions: make([]DimensionView, 0, len(rows))}
	for _, d := range s.catalog.Dimensions() {
		r, ok := byName[d.Name]
		if !ok {
			continue
		}
		view.Dimensions = append(view.Dimensions, DimensionView{
			Dimension: r.Dimension,
			Title:     d.Title,
			Average:   scoring.Round2(r.Average),
			Min:       scoring.Round2(r.Min),
			Max:       scoring.Round2(r.Max),
			Count:     r.Count,
			UpdatedAt: r.UpdatedAt,
		})
	}

	overall, err := s.store.GetOverallSnapshot(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return BenchmarkView{}, fmt.Errorf("get overall snapshot: %w", err)
	default:
		overall.Average = scoring.Round2(overall.Average)
		overall.Min = scoring.Round2(overall.Min)
		overall.Max = scoring.Round2(overall.Max)
		view.Overall = &overall
	}
	return view, nil
}

// Compare positions the tenant's diagnostic against the snapshot.
func (s *Service) Compare(ctx context.Context, tenantID string) (benchmark.Comparison, error) {
	d, err := s.GetDiagnostic(ctx, tenantID)
	if err != nil {
		return benchmark.Comparison{}, err
	}
	overall, err := s.store.GetOverallSnapshot(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return benchmark.Comparison{}, ErrNoBenchmark
	}
	if err != nil {
		return benchmark.Comparison{}, fmt.Errorf("get overall snapshot: %w", err)
	}
	dims, err := s.store.ListDimensionSnapshots(ctx)
	if err != nil {
		return benchmark.Comparison{}, fmt.Errorf("list snapshot: %w", err)
	}
	return benchmark.Compare(s.catalog, d, dims, overall, s.index.Percentile(d.Score)), nil
}

// PercentileRank returns the share of stored scores strictly below score.
func (s *Service) PercentileRank(score float64) float64 {
	if s.ready() != nil {
		return percentileWhenNoScores
	}
	return s.index.Percentile(score)
}

// ListDiagnostics returns one page of diagnostics, newest first.
// page starts at 1; perPage is clamped to the configured maximum.
func (s *Service) ListDiagnostics(ctx context.Context, page, perPage int) (DiagnosticPage, error) {
	if err := s.ready(); err != nil {
		return DiagnosticPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > s.maxPageSize {
		perPage = s.maxPageSize
	}

	total, err := s.store.CountDiagnostics(ctx)
	if err != nil {
		return DiagnosticPage{}, fmt.Errorf("count diagnostics: %w", err)
	}
	out := DiagnosticPage{
		Items:   []DiagnosticSummary{},
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   (total + perPage - 1) / perPage,
	}
	// An offset that would overflow is past every stored row.
	if page-1 > math.MaxInt/perPage {
		return out, nil
	}

	rows, err := s.store.ListDiagnostics(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return DiagnosticPage{}, fmt.Errorf("list diagnostics: %w", err)
	}
	for _, d := range rows {
		out.Items = append(out.Items, DiagnosticSummary{
			ID:          d.ID,
			TenantID:    d.TenantID,
			Answered:    d.Answered(),
			Score:       scoring.Round2(d.Score),
			Level:       d.Level,
			CompletedAt: d.CompletedAt,
		})
	}
	return out, nil
}

// DeleteDiagnostic removes the tenant's diagnostic. The snapshot keeps its
// values until the next recalculation.
func (s *Service) DeleteDiagnostic(ctx context.Context, tenantID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.writeMu.Lock()
	err := s.store.DeleteDiagnostic(ctx, tenantID)
	if err == nil {
		s.index.Remove(tenantID)
	}
	s.writeMu.Unlock()
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: tenant %q", ErrNotFound, tenantID)
	}
	if err != nil {
		return fmt.Errorf("delete diagnostic: %w", err)
	}
	metrics.RecordDiagnosticDeleted()
	metrics.UpdateTotalDiagnostics(s.index.Len())
	s.logger.Info(ctx, "diagnostic deleted", logger.String("tenant", tenantID))
	return nil
}

// Stats summarises the stored corpus and the recalculation state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.ready(); err != nil {
		return Stats{}, err
	}
	total, err := s.store.CountDiagnostics(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count diagnostics: %w", err)
	}
	completed, err := s.store.CountAnsweredAtLeast(ctx, s.fullItemCount)
	if err != nil {
		return Stats{}, fmt.Errorf("count completed: %w", err)
	}

	out := Stats{
		TotalDiagnostics:     total,
		CompletedDiagnostics: completed,
		PendingTriggers:      s.triggers.Len(ctx),
	}
	if total > 0 {
		out.CompletionRate = scoring.Round1(float64(completed) / float64(total) * 100)
	}
	if last, ok := s.aggregator.LastSummary(); ok {
		out.LastRecalculation = &last
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":                       s.started,
		"driver":                        s.driver,
		"full_questionnaire_item_count": s.fullItemCount,
		"auto_recalculate":              s.autoRecalculate,
		"trigger_queue_size":            s.triggerQueueSize,
	}
	if s.started {
		queueLen := s.triggers.Len(context.Background())
		indexed := s.index.Len()
		stats["queue_length"] = queueLen
		stats["indexed_scores"] = indexed
		metrics.UpdateTriggerQueueSize(queueLen)
		metrics.UpdateTotalDiagnostics(indexed)
	}
	return stats
}
