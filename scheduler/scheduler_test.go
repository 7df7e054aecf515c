package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/terminology"
	"github.com/giygas/snomed-normalform/validation"
)

// MockDataStore for testing scheduler
type mockSchedulerDataStore struct {
	terminology interfaces.Terminology
	report      *interfaces.DataQualityReport
	lastUpdated time.Time
	updating    bool
	updateCount int
}

func (m *mockSchedulerDataStore) GetTerminology() interfaces.Terminology {
	return m.terminology
}

func (m *mockSchedulerDataStore) GetLastUpdated() time.Time {
	return m.lastUpdated
}

func (m *mockSchedulerDataStore) IsUpdating() bool {
	return m.updating
}

func (m *mockSchedulerDataStore) UpdateData(t interfaces.Terminology, report *interfaces.DataQualityReport) {
	m.terminology = t
	m.report = report
	m.lastUpdated = time.Now()
	m.updateCount++
}

func (m *mockSchedulerDataStore) BeginUpdate() bool {
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *mockSchedulerDataStore) EndUpdate() {
	m.updating = false
}

func (m *mockSchedulerDataStore) GetServerStartTime() time.Time {
	return time.Now()
}

func (m *mockSchedulerDataStore) GetDataQualityReport() *interfaces.DataQualityReport {
	return m.report
}

// MockLoader for testing scheduler
type mockReleaseLoader struct {
	loadCount  int
	shouldFail bool
	empty      bool
}

func (m *mockReleaseLoader) LoadRelease() (interfaces.Terminology, error) {
	m.loadCount++
	if m.shouldFail {
		return nil, errors.New("release files missing")
	}

	b := terminology.NewBuilder(0)
	if !m.empty {
		b.AddConcept(terminology.ConceptRow{ID: terminology.RootConceptID, DefinitionStatusID: terminology.PrimitiveStatusID})
		b.AddConcept(terminology.ConceptRow{ID: "404684003", DefinitionStatusID: terminology.PrimitiveStatusID})
		b.AddRelationship(terminology.RelationshipRow{
			SourceID: "404684003", DestinationID: terminology.RootConceptID, TypeID: terminology.IsATypeID,
		})
	}
	return b.Build()
}

func newTestScheduler(store interfaces.DataStore, loader interfaces.ReleaseLoader) *Scheduler {
	return NewScheduler(store, loader, validation.NewDataValidator(0), "")
}

func TestScheduler_SuccessfulUpdate(t *testing.T) {
	mockDataStore := &mockSchedulerDataStore{}
	mockLoader := &mockReleaseLoader{}

	scheduler := newTestScheduler(mockDataStore, mockLoader)

	// Test initial data load
	if err := scheduler.Start(); err != nil {
		t.Errorf("Unexpected error during start: %v", err)
	}
	defer scheduler.Stop()

	if mockDataStore.updateCount != 1 {
		t.Errorf("Expected 1 update, got %d", mockDataStore.updateCount)
	}
	if mockLoader.loadCount != 1 {
		t.Errorf("Expected 1 load call, got %d", mockLoader.loadCount)
	}

	if mockDataStore.GetTerminology() == nil || mockDataStore.GetTerminology().ConceptCount() != 2 {
		t.Error("Expected the loaded release to be stored")
	}
	if mockDataStore.GetDataQualityReport() == nil {
		t.Error("Expected a data quality report to be stored with the release")
	}
	if mockDataStore.IsUpdating() {
		t.Error("Update flag should be released after the load")
	}
}

func TestScheduler_LoadFailure(t *testing.T) {
	mockDataStore := &mockSchedulerDataStore{}
	mockLoader := &mockReleaseLoader{shouldFail: true}

	scheduler := newTestScheduler(mockDataStore, mockLoader)

	err := scheduler.Start()
	if err == nil {
		t.Fatal("Expected error during start but got none")
	}

	if mockDataStore.updateCount != 0 {
		t.Errorf("Expected 0 updates due to failure, got %d", mockDataStore.updateCount)
	}
	if mockDataStore.IsUpdating() {
		t.Error("Update flag should be released after a failed load")
	}
}

func TestScheduler_EmptyReleaseRejected(t *testing.T) {
	mockDataStore := &mockSchedulerDataStore{}

	scheduler := newTestScheduler(mockDataStore, &mockReleaseLoader{empty: true})

	if err := scheduler.Start(); err == nil {
		t.Fatal("Expected an empty release to fail the initial load")
	}
	if mockDataStore.updateCount != 0 {
		t.Errorf("Expected 0 updates, got %d", mockDataStore.updateCount)
	}
}

func TestScheduler_FailedReloadKeepsPreviousRelease(t *testing.T) {
	mockDataStore := &mockSchedulerDataStore{}
	mockLoader := &mockReleaseLoader{}

	scheduler := newTestScheduler(mockDataStore, mockLoader)
	if err := scheduler.updateData(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	served := mockDataStore.GetTerminology()

	mockLoader.shouldFail = true
	if err := scheduler.updateData(); err == nil {
		t.Fatal("Expected the reload to fail")
	}

	if mockDataStore.GetTerminology() != served {
		t.Error("A failed reload must keep the previous release")
	}
	if mockDataStore.updateCount != 1 {
		t.Errorf("Expected 1 update, got %d", mockDataStore.updateCount)
	}
}

func TestScheduler_ConcurrentUpdatePrevention(t *testing.T) {
	mockDataStore := &mockSchedulerDataStore{}
	mockLoader := &mockReleaseLoader{}

	scheduler := newTestScheduler(mockDataStore, mockLoader)

	// Simulate an update in progress
	mockDataStore.BeginUpdate()

	// Try to start scheduler (should skip initial update)
	if err := scheduler.Start(); err != nil {
		t.Errorf("Unexpected error during start with concurrent update: %v", err)
	}
	defer scheduler.Stop()

	if mockDataStore.updateCount != 0 {
		t.Errorf("Expected 0 updates due to concurrent update, got %d", mockDataStore.updateCount)
	}
	if mockLoader.loadCount != 0 {
		t.Errorf("Expected no load while another update runs, got %d", mockLoader.loadCount)
	}
}

func TestScheduler_InvalidReloadTimes(t *testing.T) {
	scheduler := NewScheduler(&mockSchedulerDataStore{}, &mockReleaseLoader{}, validation.NewDataValidator(0), "25:99")

	err := scheduler.Start()
	if err == nil {
		t.Fatal("Expected invalid reload times to fail")
	}
	scheduler.Stop()
}

func TestScheduler_DefaultReloadTimes(t *testing.T) {
	scheduler := newTestScheduler(&mockSchedulerDataStore{}, &mockReleaseLoader{})

	if scheduler.reloadTimes != DefaultReloadTimes {
		t.Errorf("Expected %q, got %q", DefaultReloadTimes, scheduler.reloadTimes)
	}
}

func TestScheduler_CheckStaleness(t *testing.T) {
	mockDataStore := &mockSchedulerDataStore{lastUpdated: time.Now().Add(-26 * time.Hour)}
	scheduler := newTestScheduler(mockDataStore, &mockReleaseLoader{})

	if !scheduler.checkStaleness() {
		t.Error("A 26 hour old release should be stale")
	}

	mockDataStore.lastUpdated = time.Now().Add(-time.Hour)
	if scheduler.checkStaleness() {
		t.Error("A one hour old release should not be stale")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := newTestScheduler(&mockSchedulerDataStore{}, &mockReleaseLoader{})
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	scheduler.Stop()
	scheduler.Stop()
}
