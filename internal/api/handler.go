// Package api exposes the engine's state over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/automation"
	"github.com/yksanjo/ai-compliance-system/internal/detection"
	apperrors "github.com/yksanjo/ai-compliance-system/internal/errors"
	"github.com/yksanjo/ai-compliance-system/internal/incident"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// ScanRunner triggers a detection pass followed by playbook execution.
type ScanRunner interface {
	RunScan(ctx context.Context) (ScanResult, error)
}

// ScanResult summarizes one scan pass.
type ScanResult struct {
	Violations int `json:"violations"`
	Incidents  int `json:"incidents"`
}

// Handler serves the compliance HTTP API.
type Handler struct {
	violations *detection.Store
	incidents  *incident.Manager
	playbooks  *automation.Engine
	ledger     automation.LedgerStore
	scanner    ScanRunner
	logger     *slog.Logger
	startTime  time.Time
}

// NewHandler creates an API Handler.
func NewHandler(
	violations *detection.Store,
	incidents *incident.Manager,
	playbooks *automation.Engine,
	ledger automation.LedgerStore,
	scanner ScanRunner,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		violations: violations,
		incidents:  incidents,
		playbooks:  playbooks,
		ledger:     ledger,
		scanner:    scanner,
		logger:     logger,
		startTime:  time.Now(),
	}
}

// RegisterRoutes registers all API routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/violations", h.handleListViolations)
	mux.HandleFunc("GET /api/violations/{id}", h.handleGetViolation)
	mux.HandleFunc("POST /api/violations/{id}/status", h.handleViolationStatus)
	mux.HandleFunc("GET /api/incidents", h.handleListIncidents)
	mux.HandleFunc("GET /api/incidents/{id}", h.handleGetIncident)
	mux.HandleFunc("PATCH /api/incidents/{id}", h.handleUpdateIncident)
	mux.HandleFunc("GET /api/playbooks", h.handleListPlaybooks)
	mux.HandleFunc("POST /api/playbooks/{id}/enabled", h.handlePlaybookEnabled)
	mux.HandleFunc("GET /api/ledger", h.handleLedger)
	mux.HandleFunc("POST /api/scan", h.handleScan)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"violations":     h.violations.Count(),
		"incidents":      h.incidents.Count(),
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

func (h *Handler) handleListViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := detection.ListFilter{
		Status:    schema.ViolationStatus(q.Get("status")),
		Severity:  schema.Severity(q.Get("severity")),
		AssetType: schema.AssetType(q.Get("asset_type")),
	}

	violations := h.violations.List(filter)
	respondJSON(w, http.StatusOK, map[string]any{
		"violations": violations,
		"count":      len(violations),
	})
}

func (h *Handler) handleGetViolation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid violation id")
		return
	}

	v, err := h.violations.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// ViolationStatusRequest is the body for POST /api/violations/{id}/status.
type ViolationStatusRequest struct {
	Status schema.ViolationStatus `json:"status"`
}

func (h *Handler) handleViolationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid violation id")
		return
	}

	var req ViolationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := h.violations.SetStatus(id, req.Status); err != nil {
		switch {
		case errors.Is(err, detection.ErrViolationNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, detection.ErrInvalidTransition):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	v, _ := h.violations.Get(id)
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents := h.incidents.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (h *Handler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid incident id")
		return
	}

	inc, err := h.incidents.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

// IncidentUpdateRequest is the body for PATCH /api/incidents/{id}.
type IncidentUpdateRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Status      *schema.IncidentStatus `json:"status,omitempty"`
	Priority    *schema.Priority       `json:"priority,omitempty"`
	Assignee    *string                `json:"assignee,omitempty"`
}

func (h *Handler) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid incident id")
		return
	}

	var req IncidentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	upd := incident.Update{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Assignee:    req.Assignee,
	}

	inc, err := h.incidents.UpdateIncident(id, upd)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

func (h *Handler) handleListPlaybooks(w http.ResponseWriter, r *http.Request) {
	playbooks := h.playbooks.Playbooks()
	respondJSON(w, http.StatusOK, map[string]any{
		"playbooks": playbooks,
		"count":     len(playbooks),
	})
}

// PlaybookEnabledRequest is the body for POST /api/playbooks/{id}/enabled.
type PlaybookEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) handlePlaybookEnabled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req PlaybookEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := h.playbooks.SetEnabled(id, req.Enabled); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	p, _ := h.playbooks.GetPlaybook(id)
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.RunScan(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response. Messages are sanitized so
// storage and broker details never leak to API clients.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   apperrors.SanitizeString(message),
	})
}
