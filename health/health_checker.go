// Package health provides health checking functionality for the normal form service.
package health

import (
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore   interfaces.DataStore
	reloadTimes []time.Duration // offsets from midnight, ascending
}

// NewHealthChecker creates a new health checker with injected dependencies.
// reloadTimes uses the scheduler format, "HH:MM" entries separated by ';'.
func NewHealthChecker(dataStore interfaces.DataStore, reloadTimes string) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore:   dataStore,
		reloadTimes: parseReloadTimes(reloadTimes),
	}
}

// parseReloadTimes ignores malformed entries and falls back to 06:00 and 18:00
func parseReloadTimes(times string) []time.Duration {
	var offsets []time.Duration
	for _, entry := range strings.Split(times, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		t, err := time.Parse("15:04", entry)
		if err != nil {
			logging.Warn("Ignoring invalid reload time", "value", entry, "error", err)
			continue
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	if len(offsets) == 0 {
		return []time.Duration{6 * time.Hour, 18 * time.Hour}
	}
	slices.Sort(offsets)
	return slices.Compact(offsets)
}

// HealthCheck returns HTTP-specific health data
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	// One snapshot for the whole check
	snapshot := h.dataStore.GetTerminology()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := time.Since(lastUpdate)

	concepts, relationships := 0, 0
	if snapshot != nil {
		concepts = snapshot.ConceptCount()
		relationships = snapshot.RelationshipCount()
	}

	switch {
	case concepts == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 25*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"concepts":       concepts,
		"relationships":  relationships,
		"is_updating":    isUpdating,
	}

	if report := h.dataStore.GetDataQualityReport(); report != nil {
		data["data_quality"] = map[string]any{
			"concepts_without_supertypes":         report.ConceptsWithoutSuperTypes,
			"dangling_relationship_targets":       report.DanglingRelationshipTargets,
			"defined_concepts_without_definition": report.DefinedConceptsWithoutDefinition,
		}
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return h.nextUpdateAfter(time.Now())
}

func (h *HealthCheckerImpl) nextUpdateAfter(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, offset := range h.reloadTimes {
		candidate := midnight.Add(offset)
		if now.Before(candidate) {
			return candidate
		}
	}

	// After the last reload of the day, the first one tomorrow
	first := h.reloadTimes[0]
	return midnight.AddDate(0, 0, 1).Add(first)
}
