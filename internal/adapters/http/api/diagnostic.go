package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/pkg/logger"
)

// saveRequest mirrors the OpenAPI schema for POST /api/diagnostic.
type saveRequest struct {
	Responses model.ResponseSet `json:"responses"`
}

// DiagnosticHandler serves the caller's own diagnostic.
type DiagnosticHandler struct {
	deps         DiagnosticDependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// NewDiagnosticHandler creates a new diagnostic handler.
func NewDiagnosticHandler(deps DiagnosticDependencies, maxBodyBytes int64, log logger.Logger) *DiagnosticHandler {
	return &DiagnosticHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: log}
}

// HandleDiagnostic dispatches GET and POST /api/diagnostic.
func (h *DiagnosticHandler) HandleDiagnostic(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handleSave(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *DiagnosticHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_diagnostic"
	tenant, _ := TenantFromContext(r.Context())

	var req saveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(r.Context(), w, h.logger, WrapKind(op, ErrTooLarge, err))
			return
		}
		fail(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SaveProgress(r.Context(), tenant, req.Responses)
	if err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DiagnosticHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_diagnostic"
	tenant, _ := TenantFromContext(r.Context())

	d, err := h.deps.GetDiagnostic(r.Context(), tenant)
	if err != nil {
		fail(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}
