// Package handlers provides HTTP request handlers for the normal form service.
// It decodes and validates request expressions, runs the normal form generator
// against the current terminology snapshot, and maps engine errors to HTTP statuses.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
	"github.com/giygas/snomed-normalform/metrics"
	"github.com/giygas/snomed-normalform/normalform"
)

const (
	longForm  = "long"
	shortForm = "short"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator,
	healthChecker interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// ConceptResponse describes one concept of the served release
type ConceptResponse struct {
	ID         expression.ConceptID         `json:"id"`
	Term       string                       `json:"term"`
	Primitive  bool                         `json:"primitive"`
	SuperTypes []expression.Concept         `json:"supertypes"`
	Definition expression.ConceptDefinition `json:"definition"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	LastUpdate    string         `json:"last_update"`
	DataAgeHours  float64        `json:"data_age_hours"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	NextUpdate    string         `json:"next_update"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Warn("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// LongNormalForm serves POST /v1/normal-forms/long
func (h *HTTPHandlerImpl) LongNormalForm(w http.ResponseWriter, r *http.Request) {
	h.serveNormalForm(w, r, longForm)
}

// ShortNormalForm serves POST /v1/normal-forms/short
func (h *HTTPHandlerImpl) ShortNormalForm(w http.ResponseWriter, r *http.Request) {
	h.serveNormalForm(w, r, shortForm)
}

func (h *HTTPHandlerImpl) serveNormalForm(w http.ResponseWriter, r *http.Request, form string) {
	expr, ok := h.decodeExpression(w, r)
	if !ok {
		return
	}

	// One snapshot for the whole computation
	snapshot := h.dataStore.GetTerminology()
	if snapshot == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Terminology release not loaded yet")
		return
	}

	start := time.Now()
	generator := normalform.NewGenerator(snapshot, snapshot)

	var result expression.Expression
	var err error
	if form == longForm {
		result, err = generator.LongNormalForm(expr)
	} else {
		result, err = generator.ShortNormalForm(expr)
	}
	metrics.ObserveNormalization(form, start)

	if err != nil {
		h.respondWithNormalizationError(w, form, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, result)
}

// decodeExpression reads and validates the request body, answering the request itself on failure
func (h *HTTPHandlerImpl) decodeExpression(w http.ResponseWriter, r *http.Request) (expression.Expression, bool) {
	var expr expression.Expression

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&expr); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.RespondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return expr, false
		}
		logging.Warn("Malformed expression body", "error", err)
		h.RespondWithError(w, http.StatusBadRequest, "Malformed expression: "+err.Error())
		return expr, false
	}
	if decoder.More() {
		h.RespondWithError(w, http.StatusBadRequest, "Request body must hold a single expression")
		return expr, false
	}

	if err := h.validator.ValidateExpression(expr); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return expr, false
	}
	return expr, true
}

// respondWithNormalizationError maps engine errors to HTTP statuses
func (h *HTTPHandlerImpl) respondWithNormalizationError(w http.ResponseWriter, form string, err error) {
	var lookupErr *normalform.LookupError
	var cycleErr *normalform.InconsistentHierarchyError

	switch {
	case errors.As(err, &cycleErr):
		metrics.NormalizationErrors.WithLabelValues(form, "inconsistent_hierarchy").Inc()
		logging.Error("Inconsistent hierarchy in served release", "cycle", cycleErr.Cycle)
		h.RespondWithError(w, http.StatusInternalServerError, "Terminology release has an inconsistent hierarchy")

	case errors.As(err, &lookupErr):
		metrics.NormalizationErrors.WithLabelValues(form, "lookup").Inc()
		h.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, normalform.ErrNoFocusConcept), errors.Is(err, normalform.ErrMissingValue):
		metrics.NormalizationErrors.WithLabelValues(form, "invalid").Inc()
		h.RespondWithError(w, http.StatusBadRequest, err.Error())

	default:
		metrics.NormalizationErrors.WithLabelValues(form, "internal").Inc()
		logging.Error("Normal form computation failed", "form", form, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Normal form computation failed")
	}
}

// FindConcept serves GET /v1/concepts/{conceptId}
func (h *HTTPHandlerImpl) FindConcept(w http.ResponseWriter, r *http.Request) {
	id := expression.ConceptID(chi.URLParam(r, "conceptId"))
	if err := h.validator.ValidateConceptID(id); err != nil {
		logging.Warn("Unusual user input", "conceptId", id)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot := h.dataStore.GetTerminology()
	if snapshot == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Terminology release not loaded yet")
		return
	}

	response, err := describeConcept(snapshot, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrConceptNotFound) {
			h.RespondWithError(w, http.StatusNotFound, "Concept not found")
			return
		}
		logging.Error("Concept lookup failed", "conceptId", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Concept lookup failed")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, response)
}

func describeConcept(t interfaces.Terminology, id expression.ConceptID) (*ConceptResponse, error) {
	concept, err := t.Concept(id)
	if err != nil {
		return nil, err
	}
	primitive, err := t.IsPrimitive(id)
	if err != nil {
		return nil, err
	}
	parentIDs, err := t.SuperTypes(id)
	if err != nil {
		return nil, err
	}
	definition, err := t.StatedAttributes(id)
	if err != nil {
		return nil, err
	}

	parents := make([]expression.Concept, 0, len(parentIDs))
	for _, p := range parentIDs {
		parent, err := t.Concept(p)
		if err != nil {
			return nil, fmt.Errorf("supertype %s: %w", p, err)
		}
		parents = append(parents, parent)
	}

	return &ConceptResponse{
		ID:         concept.ID,
		Term:       concept.Term,
		Primitive:  primitive,
		SuperTypes: parents,
		Definition: expression.CanonicalDefinition(definition),
	}, nil
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()

	lastUpdate := h.dataStore.GetLastUpdated()
	uptime := time.Since(h.dataStore.GetServerStartTime())

	response := HealthResponse{
		Status:        status,
		LastUpdate:    lastUpdate.Format(time.RFC3339),
		DataAgeHours:  time.Since(lastUpdate).Hours(),
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		NextUpdate:    h.healthChecker.CalculateNextUpdate().Format(time.RFC3339),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
