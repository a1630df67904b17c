package api

import (
	"net/http"

	"github.com/okian/cxdiag/pkg/logger"
)

// BenchmarkHandler serves the snapshot and the caller's comparison.
type BenchmarkHandler struct {
	deps   BenchmarkDependencies
	logger logger.Logger
}

// NewBenchmarkHandler creates a new benchmark handler.
func NewBenchmarkHandler(deps BenchmarkDependencies, log logger.Logger) *BenchmarkHandler {
	return &BenchmarkHandler{deps: deps, logger: log}
}

// HandleGetBenchmark handles GET /api/benchmark requests.
func (h *BenchmarkHandler) HandleGetBenchmark(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_benchmark"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	view, err := h.deps.Benchmark(r.Context())
	if err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetComparison handles GET /api/benchmark/comparison requests.
func (h *BenchmarkHandler) HandleGetComparison(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_comparison"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	tenant, _ := TenantFromContext(r.Context())
	cmp, err := h.deps.Compare(r.Context(), tenant)
	if err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
