package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/cxdiag/pkg/logger"
)

const adminDiagnosticsPrefix = "/api/admin/diagnostics/"

// AdminHandler serves the administrator routes.
type AdminHandler struct {
	deps   AdminDependencies
	logger logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, log logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: log}
}

// HandleRecalculate handles POST /api/admin/recalculate-benchmark.
// A successful run answers 200; a no-op or failed run answers 400 with the
// same summary body.
func (h *AdminHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	summary, err := h.deps.Recalculate(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "admin recalculation failed", logger.Error(err))
	}
	if summary.Success {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	writeJSON(w, http.StatusBadRequest, summary)
}

// HandleListDiagnostics handles GET /api/admin/diagnostics?page=&per_page=.
func (h *AdminHandler) HandleListDiagnostics(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_diagnostics"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		fail(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		fail(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.ListDiagnostics(r.Context(), page, perPage)
	if err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDeleteDiagnostic handles DELETE /api/admin/diagnostics/{tenant_id}.
func (h *AdminHandler) HandleDeleteDiagnostic(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_diagnostic"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	tenant := strings.TrimPrefix(r.URL.Path, adminDiagnosticsPrefix)
	if tenant == "" || strings.Contains(tenant, "/") {
		fail(r.Context(), w, h.logger, NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.DeleteDiagnostic(r.Context(), tenant); err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	h.logger.Info(r.Context(), "diagnostic deleted by admin", logger.String("tenant", tenant))
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /api/admin/stats.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats, err := h.deps.Stats(r.Context())
	if err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryInt returns 0 for an absent parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
