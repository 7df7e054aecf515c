// Package scheduler provides automated release reloading and staleness monitoring
// for the normal form service. It loads the release at startup, reloads it at fixed
// times of day, and swaps each new snapshot into the data store using dependency injection.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
	"github.com/giygas/snomed-normalform/metrics"
)

// DefaultReloadTimes are the daily reload times used when none are configured
const DefaultReloadTimes = "06:00;18:00"

// A release older than this is reported as stale
const staleAfter = 25 * time.Hour

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles release reloads and health monitoring using dependency injection
type Scheduler struct {
	dataStore   interfaces.DataStore
	loader      interfaces.ReleaseLoader
	validator   interfaces.DataValidator
	reloadTimes string
	scheduler   *gocron.Scheduler
	done        chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// reloadTimes is a gocron At() list such as "06:00;18:00".
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.ReleaseLoader,
	validator interfaces.DataValidator, reloadTimes string) *Scheduler {
	if reloadTimes == "" {
		reloadTimes = DefaultReloadTimes
	}
	return &Scheduler{
		dataStore:   dataStore,
		loader:      loader,
		validator:   validator,
		reloadTimes: reloadTimes,
		scheduler:   gocron.NewScheduler(time.Local),
		done:        make(chan struct{}),
	}
}

// Start performs the initial load, then schedules daily reloads and health monitoring
func (s *Scheduler) Start() error {
	// Initial load
	if err := s.updateData(); err != nil {
		logging.Error("Failed to perform initial release load", "error", err)
		return fmt.Errorf("initial release load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.reloadTimes).Do(func() {
		if err := s.updateData(); err != nil {
			// the previous snapshot keeps being served
			logging.Error("Failed to reload release", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule reloads", "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	s.scheduler.StartAsync()

	// Start health monitoring
	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and the health monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// updateData loads a release, reports its data quality and swaps it in
func (s *Scheduler) updateData() error {
	// Prevent concurrent updates
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reload already in progress, skipping...")
		metrics.ReleaseReloads.WithLabelValues("skipped").Inc()
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting release reload")
	start := time.Now()

	snapshot, err := s.loader.LoadRelease()
	if err != nil {
		metrics.ReleaseReloads.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to load release: %w", err)
	}
	if snapshot == nil || snapshot.ConceptCount() == 0 {
		metrics.ReleaseReloads.WithLabelValues("failed").Inc()
		return fmt.Errorf("loaded release is empty")
	}

	report := s.validator.ReportDataQuality(snapshot)
	logDataQuality(report)

	// Atomic update using injected data store
	s.dataStore.UpdateData(snapshot, report)

	metrics.ReleaseReloads.WithLabelValues("success").Inc()
	metrics.ReleaseConcepts.Set(float64(snapshot.ConceptCount()))

	logging.Info("Release reload completed",
		"duration", time.Since(start).String(),
		"concept_count", snapshot.ConceptCount(),
		"relationship_count", snapshot.RelationshipCount())

	return nil
}

func logDataQuality(report *interfaces.DataQualityReport) {
	if report == nil {
		return
	}
	logging.Info("Data quality report",
		"concepts_without_supertypes", report.ConceptsWithoutSuperTypes,
		"dangling_relationship_targets", report.DanglingRelationshipTargets,
		"defined_concepts_without_definition", report.DefinedConceptsWithoutDefinition,
	)
	if report.DefinedConceptsWithoutDefinition > 0 {
		logging.Debug("Fully defined concepts without defining attributes",
			"ids", report.DefinedConceptsWithoutDefinitionIDs)
	}
}

// startHealthMonitoring warns hourly when the release has not been refreshed
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.checkStaleness()
			}
		}
	}()
}

// checkStaleness reports whether the served release is older than staleAfter
func (s *Scheduler) checkStaleness() bool {
	lastUpdate := s.dataStore.GetLastUpdated()
	if time.Since(lastUpdate) > staleAfter {
		logging.Warn("Release hasn't been updated in over 25 hours", "last_update", lastUpdate)
		return true
	}
	return false
}
