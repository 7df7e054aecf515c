// Package data provides thread-safe storage of the current terminology snapshot.
// The snapshot and its data quality report are swapped atomically so that reloads
// never interrupt requests, and each request works against one consistent snapshot.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// release is what a reload replaces in one step
type release struct {
	terminology interfaces.Terminology
	report      *interfaces.DataQualityReport
}

// DataContainer holds the current release behind an atomic pointer for zero-downtime updates
type DataContainer struct {
	current         atomic.Pointer[release]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer without a loaded release
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(&release{})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{}) // Initialize with zero value
	return dc
}

// GetTerminology returns the current snapshot, nil until the first load.
// Callers should fetch it once per request and keep using that value.
func (dc *DataContainer) GetTerminology() interfaces.Terminology {
	if r := dc.current.Load(); r != nil {
		return r.terminology
	}
	return nil
}

// GetDataQualityReport returns the report computed for the current snapshot
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	if r := dc.current.Load(); r != nil {
		return r.report
	}
	return nil
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the snapshot and its report.
// A nil terminology is ignored so a failed load never clears a served snapshot.
func (dc *DataContainer) UpdateData(terminology interfaces.Terminology, report *interfaces.DataQualityReport) {
	if terminology == nil {
		logging.Warn("Ignoring update with nil terminology")
		return
	}

	// Atomic swap (zero downtime replacement)
	dc.current.Store(&release{terminology: terminology, report: report})
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
