package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/receipts/internal/domain"
	"github.com/opensource-finance/receipts/internal/processor"
)

// maxBodyBytes caps the size of a submitted receipt.
const maxBodyBytes = 1 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	processor *processor.Processor
	cache     domain.Cache
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(proc *processor.Processor, cache domain.Cache, version string) *Handler {
	return &Handler{
		processor: proc,
		cache:     cache,
		version:   version,
	}
}

// ProcessResponse is the response for POST /receipts/process.
type ProcessResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every 4xx/5xx answer except a points miss.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// NotFoundResponse is the body of a points lookup miss. Its shape is kept
// for clients of the public receipt API.
type NotFoundResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}

// ProcessReceipt handles POST /receipts/process.
func (h *Handler) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}

	id, err := h.processor.Process(r.Context(), body)
	if err != nil {
		h.writeProcessError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{ID: id})
}

func (h *Handler) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: verr.Error(),
			Kind:  string(verr.Kind),
			Field: verr.Field,
		})
		return
	}

	slog.Error("failed to process receipt",
		"request_id", GetRequestID(r.Context()),
		"internal", errors.Is(err, domain.ErrInternal),
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// GetPoints handles GET /receipts/{id}/points.
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.lookup(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, domain.PointsResponse{
		Points:        stored.PointsAwarded,
		PointsAwarded: stored.PointsAwarded,
	})
}

// GetReceipt handles GET /receipts/{id} and returns the full scoring record.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// lookup resolves the {id} URL parameter, writing the error response itself
// when it returns false.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*domain.ProcessedReceipt, bool) {
	id := chi.URLParam(r, "id")
	if !isCanonicalUUID(id) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "id must be a uuid",
			Kind:  string(domain.KindSchemaMismatch),
			Field: "id",
		})
		return nil, false
	}

	stored, err := h.processor.Lookup(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, NotFoundResponse{
			Success: false,
			Message: "Receipt not found",
			Data:    map[string]string{"id": id},
		})
		return nil, false
	}
	if err != nil {
		slog.Error("failed to look up receipt",
			"receipt_id", id,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return nil, false
	}

	return stored, true
}

// isCanonicalUUID accepts only the 36 character hyphenated form.
func isCanonicalUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ListRules returns the active rule set in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	descriptors := h.processor.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": descriptors,
		"count": len(descriptors),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if err := h.processor.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "component", "pipeline", "error", err)
		status = "degraded"
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "component", "cache", "error", err)
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// NotFound answers unknown routes in JSON.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found"})
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
