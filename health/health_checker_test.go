package health

import (
	"net/http"
	"testing"
	"time"

	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/terminology"
)

// MockHealthDataStore for testing health checker
type MockHealthDataStore struct {
	terminology interfaces.Terminology
	report      *interfaces.DataQualityReport
	lastUpdated time.Time
	isUpdating  bool
}

func (m *MockHealthDataStore) GetTerminology() interfaces.Terminology {
	return m.terminology
}

func (m *MockHealthDataStore) GetLastUpdated() time.Time {
	return m.lastUpdated
}

func (m *MockHealthDataStore) IsUpdating() bool {
	return m.isUpdating
}

func (m *MockHealthDataStore) UpdateData(t interfaces.Terminology, report *interfaces.DataQualityReport) {
	m.terminology = t
	m.report = report
}

func (m *MockHealthDataStore) BeginUpdate() bool {
	return true
}

func (m *MockHealthDataStore) EndUpdate() {}

func (m *MockHealthDataStore) GetServerStartTime() time.Time {
	return time.Now()
}

func (m *MockHealthDataStore) GetDataQualityReport() *interfaces.DataQualityReport {
	return m.report
}

func smallRelease(t *testing.T) interfaces.Terminology {
	t.Helper()

	b := terminology.NewBuilder(0)
	b.AddConcept(terminology.ConceptRow{ID: terminology.RootConceptID, DefinitionStatusID: terminology.PrimitiveStatusID})
	b.AddConcept(terminology.ConceptRow{ID: "404684003", DefinitionStatusID: terminology.PrimitiveStatusID})
	b.AddRelationship(terminology.RelationshipRow{
		SourceID: "404684003", DestinationID: terminology.RootConceptID, TypeID: terminology.IsATypeID,
	})
	snapshot, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build release: %v", err)
	}
	return snapshot
}

func TestNewHealthChecker(t *testing.T) {
	healthChecker := NewHealthChecker(&MockHealthDataStore{}, "")

	if healthChecker == nil {
		t.Fatal("NewHealthChecker returned nil")
	}

	impl, ok := healthChecker.(*HealthCheckerImpl)
	if !ok {
		t.Fatal("NewHealthChecker should return *HealthCheckerImpl")
	}
	if len(impl.reloadTimes) != 2 {
		t.Errorf("Expected the two default reload times, got %v", impl.reloadTimes)
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	mockDataStore := &MockHealthDataStore{
		terminology: smallRelease(t),
		report:      &interfaces.DataQualityReport{DanglingRelationshipTargets: 2},
		lastUpdated: time.Now().Add(-1 * time.Hour),
	}

	status, data, httpStatus := NewHealthChecker(mockDataStore, "").HealthCheck()

	if status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", status)
	}
	if httpStatus != http.StatusOK {
		t.Errorf("Expected 200, got %d", httpStatus)
	}

	if data["concepts"] != 2 {
		t.Errorf("Expected 2 concepts, got %v", data["concepts"])
	}
	if data["relationships"] != 1 {
		t.Errorf("Expected 1 relationship, got %v", data["relationships"])
	}
	if data["is_updating"] != false {
		t.Errorf("Expected is_updating false, got %v", data["is_updating"])
	}
	if _, ok := data["last_update"]; !ok {
		t.Error("Data should contain 'last_update'")
	}

	quality, ok := data["data_quality"].(map[string]any)
	if !ok {
		t.Fatal("Data should contain the data quality summary")
	}
	if quality["dangling_relationship_targets"] != 2 {
		t.Errorf("Expected 2 dangling targets, got %v", quality["dangling_relationship_targets"])
	}
}

func TestHealthCheck_Unhealthy_NoData(t *testing.T) {
	status, data, httpStatus := NewHealthChecker(&MockHealthDataStore{lastUpdated: time.Now()}, "").HealthCheck()

	if status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", status)
	}
	if httpStatus != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", httpStatus)
	}
	if data["concepts"] != 0 {
		t.Errorf("Expected 0 concepts, got %v", data["concepts"])
	}
	if _, ok := data["data_quality"]; ok {
		t.Error("No data quality summary without a report")
	}
}

func TestHealthCheck_AgeThresholds(t *testing.T) {
	tests := []struct {
		name       string
		age        time.Duration
		updating   bool
		status     string
		httpStatus int
	}{
		{"fresh", time.Hour, false, "healthy", http.StatusOK},
		{"just before reload window", 24 * time.Hour, false, "healthy", http.StatusOK},
		{"missed a reload", 26 * time.Hour, false, "degraded", http.StatusServiceUnavailable},
		{"very old", 49 * time.Hour, false, "unhealthy", http.StatusServiceUnavailable},
		{"long running update", 7 * time.Hour, true, "degraded", http.StatusServiceUnavailable},
		{"short running update", time.Hour, true, "healthy", http.StatusOK},
	}

	release := smallRelease(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDataStore := &MockHealthDataStore{
				terminology: release,
				lastUpdated: time.Now().Add(-tt.age),
				isUpdating:  tt.updating,
			}

			status, _, httpStatus := NewHealthChecker(mockDataStore, "").HealthCheck()

			if status != tt.status {
				t.Errorf("Expected status %q, got %q", tt.status, status)
			}
			if httpStatus != tt.httpStatus {
				t.Errorf("Expected %d, got %d", tt.httpStatus, httpStatus)
			}
		})
	}
}

func TestCalculateNextUpdate(t *testing.T) {
	h := NewHealthChecker(&MockHealthDataStore{}, "18:00;06:00").(*HealthCheckerImpl)
	day := func(d, hour, minute int) time.Time {
		return time.Date(2026, time.March, d, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before 6AM", day(10, 3, 0), day(10, 6, 0)},
		{"between 6AM and 6PM", day(10, 12, 30), day(10, 18, 0)},
		{"exactly 6AM", day(10, 6, 0), day(10, 18, 0)},
		{"after 6PM", day(10, 20, 0), day(11, 6, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.nextUpdateAfter(tt.now); !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCalculateNextUpdate_IsInFuture(t *testing.T) {
	next := NewHealthChecker(&MockHealthDataStore{}, "").CalculateNextUpdate()

	if !next.After(time.Now()) {
		t.Errorf("Next update %v should be in the future", next)
	}
	if time.Until(next) > 24*time.Hour {
		t.Errorf("Next update %v should be within a day", next)
	}
}

func TestParseReloadTimes(t *testing.T) {
	tests := []struct {
		times string
		want  []time.Duration
	}{
		{"06:00;18:00", []time.Duration{6 * time.Hour, 18 * time.Hour}},
		{"23:30", []time.Duration{23*time.Hour + 30*time.Minute}},
		{"12:00; 12:00 ;bad", []time.Duration{12 * time.Hour}},
		{"", []time.Duration{6 * time.Hour, 18 * time.Hour}},
		{"nonsense", []time.Duration{6 * time.Hour, 18 * time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.times, func(t *testing.T) {
			got := parseReloadTimes(tt.times)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func BenchmarkHealthCheck(b *testing.B) {
	mockDataStore := &MockHealthDataStore{lastUpdated: time.Now()}
	healthChecker := NewHealthChecker(mockDataStore, "")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		healthChecker.HealthCheck()
	}
}
