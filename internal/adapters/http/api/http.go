// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/cxdiag/internal/app"
	"github.com/okian/cxdiag/internal/domain/benchmark"
	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/pkg/logger"
)

const (
	defaultTenantHeader = "X-Tenant-ID"
	defaultMaxBodyBytes = 1 << 20
)

// DiagnosticDependencies covers the tenant's own diagnostic.
type DiagnosticDependencies interface {
	SaveProgress(ctx context.Context, tenantID string, responses model.ResponseSet) (service.SaveResult, error)
	GetDiagnostic(ctx context.Context, tenantID string) (model.Diagnostic, error)
}

// BenchmarkDependencies covers the snapshot reads.
type BenchmarkDependencies interface {
	Benchmark(ctx context.Context) (service.BenchmarkView, error)
	Compare(ctx context.Context, tenantID string) (benchmark.Comparison, error)
}

// AdminDependencies covers the administrator operations.
type AdminDependencies interface {
	Recalculate(ctx context.Context) (model.RecalculationSummary, error)
	ListDiagnostics(ctx context.Context, page, perPage int) (service.DiagnosticPage, error)
	DeleteDiagnostic(ctx context.Context, tenantID string) error
	Stats(ctx context.Context) (service.Stats, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	DiagnosticDependencies
	BenchmarkDependencies
	AdminDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	diagnosticHandler *DiagnosticHandler
	benchmarkHandler  *BenchmarkHandler
	adminHandler      *AdminHandler

	tenants      TenantResolver
	adminToken   string
	maxBodyBytes int64
	logger       logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		tenants:      HeaderTenantResolver{Header: defaultTenantHeader},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.diagnosticHandler = NewDiagnosticHandler(deps, s.maxBodyBytes, s.logger)
	s.benchmarkHandler = NewBenchmarkHandler(deps, s.logger)
	s.adminHandler = NewAdminHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(RequestIDMiddleware(s.healthHandler.HandleHealth), "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(RequestIDMiddleware(s.statsHandler.HandleStats), "stats"))

	mux.HandleFunc("/api/diagnostic", s.tenantRoute(s.diagnosticHandler.HandleDiagnostic, "diagnostic"))
	mux.HandleFunc("/api/benchmark", s.tenantRoute(s.benchmarkHandler.HandleGetBenchmark, "benchmark"))
	mux.HandleFunc("/api/benchmark/comparison", s.tenantRoute(s.benchmarkHandler.HandleGetComparison, "comparison"))

	mux.HandleFunc("/api/admin/recalculate-benchmark", s.adminRoute(s.adminHandler.HandleRecalculate, "admin_recalculate"))
	mux.HandleFunc("/api/admin/diagnostics", s.adminRoute(s.adminHandler.HandleListDiagnostics, "admin_diagnostics"))
	mux.HandleFunc("/api/admin/diagnostics/", s.adminRoute(s.adminHandler.HandleDeleteDiagnostic, "admin_delete"))
	mux.HandleFunc("/api/admin/stats", s.adminRoute(s.adminHandler.HandleStats, "admin_stats"))
}

func (s *Server) tenantRoute(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(RequestIDMiddleware(TenantMiddleware(s.tenants, h)), endpoint)
}

func (s *Server) adminRoute(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(RequestIDMiddleware(AdminMiddleware(s.adminToken, h)), endpoint)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidTenant),
		errors.Is(err, service.ErrEmptyResponses):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNoBenchmark):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail logs err once and writes the matching error response.
func fail(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Int("status", status), logger.Error(err))
	} else {
		log.Debug(ctx, "request rejected", logger.Int("status", status), logger.Error(err))
	}
	writeError(w, status, code, err)
}
