// Package interfaces defines core abstractions for the normal form service
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"errors"
	"net/http"
	"time"

	"github.com/giygas/snomed-normalform/expression"
)

// ErrConceptNotFound is returned by browsers for identifiers absent from the terminology
var ErrConceptNotFound = errors.New("concept not found")

// HierarchyBrowser answers is-a queries against one consistent terminology snapshot.
type HierarchyBrowser interface {
	// IsPrimitive reports whether the concept is primitive (not fully defined)
	IsPrimitive(id expression.ConceptID) (bool, error)

	// SuperTypes returns the direct supertypes of the concept
	SuperTypes(id expression.ConceptID) ([]expression.ConceptID, error)

	// AncestorsAndSelf returns the concept and all its transitive supertypes
	AncestorsAndSelf(id expression.ConceptID) (map[expression.ConceptID]struct{}, error)
}

// StatementBrowser returns the raw defining characteristics of a concept.
type StatementBrowser interface {
	StatedAttributes(id expression.ConceptID) (expression.ConceptDefinition, error)
}

// Terminology is a read-only snapshot that serves both browsers plus display lookups.
type Terminology interface {
	HierarchyBrowser
	StatementBrowser

	// Concept returns the concept reference with its preferred term
	Concept(id expression.ConceptID) (expression.Concept, error)
	ConceptCount() int
	RelationshipCount() int

	// ConceptIDs lists every active concept, sorted
	ConceptIDs() []expression.ConceptID

	// DanglingTargets lists relationship targets that are not active concepts
	DanglingTargets() []expression.ConceptID
}

// NormalFormGenerator is the engine entry point exposed to the HTTP layer
type NormalFormGenerator interface {
	LongNormalForm(expr expression.Expression) (expression.Expression, error)
	ShortNormalForm(expr expression.Expression) (expression.Expression, error)
}

// DataQualityReport provides a summary of data quality issues found in a release
type DataQualityReport struct {
	ConceptsWithoutSuperTypes           int
	ConceptsWithoutSuperTypesIDs        []expression.ConceptID
	DanglingRelationshipTargets         int
	DanglingRelationshipTargetIDs       []expression.ConceptID
	DefinedConceptsWithoutDefinition    int
	DefinedConceptsWithoutDefinitionIDs []expression.ConceptID
}

// DataStore defines the contract for terminology storage operations.
// It provides thread-safe access to the current snapshot
// with atomic operations for zero-downtime reloads.
type DataStore interface {
	// GetTerminology returns the current snapshot, nil before the first load
	GetTerminology() Terminology
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time
	GetDataQualityReport() *DataQualityReport

	// Data update methods
	UpdateData(terminology Terminology, report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// ReleaseLoader defines the contract for loading a terminology release from external sources.
type ReleaseLoader interface {
	// LoadRelease downloads (when configured) and parses the release snapshot files
	LoadRelease() (Terminology, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated release reloads and system health checks.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	LongNormalForm(w http.ResponseWriter, r *http.Request)
	ShortNormalForm(w http.ResponseWriter, r *http.Request)
	FindConcept(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns current system health status, details and HTTP status code
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled reload time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
type DataValidator interface {
	// ValidateConceptID checks SCTID syntax, partition and check digit
	ValidateConceptID(id expression.ConceptID) error

	// ValidateExpression checks a request expression before normalization
	ValidateExpression(expr expression.Expression) error

	// ReportDataQuality generates a data quality report for a loaded release
	ReportDataQuality(terminology Terminology) *DataQualityReport
}
