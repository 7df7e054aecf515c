package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/snomed-normalform/data"
	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/health"
	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/terminology"
	"github.com/giygas/snomed-normalform/validation"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

const (
	rootID                 = "138875005"
	clinicalFindingID      = "404684003"
	diseaseID              = "64572001"
	fractureOfFemurID      = "71620000"
	associatedMorphologyID = "116676008"
	findingSiteID          = "363698007"
	fractureID             = "72704001"
	boneOfFemurID          = "71341001"
	// valid identifiers absent from the test release
	bodyStructureID = "123037004"
	cycleAID        = "24028007"
	cycleBID        = "272741003"
)

// TestDataFactory creates consistent test releases across all tests
type TestDataFactory struct {
	builder *terminology.Builder
}

func NewTestDataFactory() *TestDataFactory {
	return &TestDataFactory{builder: terminology.NewBuilder(0)}
}

func (f *TestDataFactory) Concept(id expression.ConceptID, term string, primitive bool, parents ...expression.ConceptID) *TestDataFactory {
	status := terminology.PrimitiveStatusID
	if !primitive {
		status = terminology.FullyDefinedStatusID
	}
	f.builder.AddConcept(terminology.ConceptRow{ID: id, DefinitionStatusID: status})
	f.builder.AddDescription(terminology.DescriptionRow{ConceptID: id, TypeID: terminology.FSNTypeID, Term: term})
	for _, p := range parents {
		f.builder.AddRelationship(terminology.RelationshipRow{SourceID: id, DestinationID: p, TypeID: terminology.IsATypeID})
	}
	return f
}

func (f *TestDataFactory) Attribute(source expression.ConceptID, group int, name, value expression.ConceptID) *TestDataFactory {
	f.builder.AddRelationship(terminology.RelationshipRow{SourceID: source, DestinationID: value, Group: group, TypeID: name})
	return f
}

func (f *TestDataFactory) Build(t *testing.T) *terminology.Snapshot {
	t.Helper()
	snapshot, err := f.builder.Build()
	if err != nil {
		t.Fatalf("Failed to build release: %v", err)
	}
	return snapshot
}

// CreateRelease creates the fracture of femur release used by most tests
func CreateRelease(t *testing.T) *terminology.Snapshot {
	return NewTestDataFactory().
		Concept(rootID, "SNOMED CT Concept (SNOMED RT+CTV3)", true).
		Concept(clinicalFindingID, "Clinical finding (finding)", true, rootID).
		Concept(diseaseID, "Disease (disorder)", true, clinicalFindingID).
		Concept(fractureOfFemurID, "Fracture of femur (disorder)", false, diseaseID).
		Concept(associatedMorphologyID, "Associated morphology (attribute)", true, rootID).
		Concept(findingSiteID, "Finding site (attribute)", true, rootID).
		Concept(fractureID, "Fracture (morphologic abnormality)", true, rootID).
		Concept(boneOfFemurID, "Bone structure of femur (body structure)", true, rootID).
		Attribute(fractureOfFemurID, 1, associatedMorphologyID, fractureID).
		Attribute(fractureOfFemurID, 1, findingSiteID, boneOfFemurID).
		Build(t)
}

// CreateCyclicRelease holds two fully defined concepts defined through each other
func CreateCyclicRelease(t *testing.T) *terminology.Snapshot {
	return NewTestDataFactory().
		Concept(rootID, "SNOMED CT Concept (SNOMED RT+CTV3)", true).
		Concept(diseaseID, "Disease (disorder)", true, rootID).
		Concept(findingSiteID, "Finding site (attribute)", true, rootID).
		Concept(cycleAID, "Cycle A", false, diseaseID).
		Concept(cycleBID, "Cycle B", false, diseaseID).
		Attribute(cycleAID, 0, findingSiteID, cycleBID).
		Attribute(cycleBID, 0, findingSiteID, cycleAID).
		Build(t)
}

// CreateDataContainer creates a data container serving release
func CreateDataContainer(release interfaces.Terminology) *data.DataContainer {
	dc := data.NewDataContainer()
	dc.SetServerStartTime(time.Now().Add(-90 * time.Minute))
	if release != nil {
		dc.UpdateData(release, &interfaces.DataQualityReport{})
	}
	return dc
}

// NewTestHandler wires a handler with the real validator and health checker
func NewTestHandler(dataStore interfaces.DataStore) *HTTPHandlerImpl {
	return NewHTTPHandler(dataStore, validation.NewDataValidator(0), health.NewHealthChecker(dataStore, "")).(*HTTPHandlerImpl)
}

// ============================================================================
// HTTP TEST HELPER
// ============================================================================

// HTTPTestHelper provides utilities for HTTP handler testing
type HTTPTestHelper struct {
	t *testing.T
}

func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	return &HTTPTestHelper{t: t}
}

// ExecuteRequest executes an HTTP handler with given parameters
func (h *HTTPTestHelper) ExecuteRequest(handler http.HandlerFunc, method, path string, body io.Reader, urlParams map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)

	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range urlParams {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// PostExpression posts a JSON body to handler
func (h *HTTPTestHelper) PostExpression(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	return h.ExecuteRequest(handler, http.MethodPost, "/v1/normal-forms", strings.NewReader(body), nil)
}

// AssertJSONResponse asserts that response contains valid JSON with expected status
func (h *HTTPTestHelper) AssertJSONResponse(resp *httptest.ResponseRecorder, expectedStatus int, target any) {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	if resp.Body.Len() == 0 {
		h.t.Fatal("Response body should not be empty")
	}

	if err := json.Unmarshal(resp.Body.Bytes(), target); err != nil {
		h.t.Errorf("Response should be valid JSON, got error: %v", err)
	}
}

// AssertErrorResponse asserts that response contains an error with expected status
func (h *HTTPTestHelper) AssertErrorResponse(resp *httptest.ResponseRecorder, expectedStatus int) map[string]any {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	var errorResp map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &errorResp); err != nil {
		h.t.Fatalf("Error response should be valid JSON, got error: %v", err)
	}

	for _, field := range []string{"error", "message", "code"} {
		if _, ok := errorResp[field]; !ok {
			h.t.Errorf("Error response should have %s field", field)
		}
	}
	if code, ok := errorResp["code"].(float64); ok && int(code) != expectedStatus {
		h.t.Errorf("Expected code %d in body, got %v", expectedStatus, code)
	}
	return errorResp
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
