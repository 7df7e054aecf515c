package normalform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/snomed-normalform/expression"
)

// ErrNoPrimitiveAncestor is wrapped by LookupError when a focus concept has no primitive generalization
var ErrNoPrimitiveAncestor = errors.New("concept has no primitive ancestor")

// ErrNoFocusConcept is returned for expressions without focus concepts
var ErrNoFocusConcept = errors.New("expression has no focus concept")

// ErrMissingValue is returned for attributes without a value
var ErrMissingValue = errors.New("attribute has no value")

// LookupError reports a concept the hierarchy or statement browser could not resolve.
// The whole normalization is aborted.
type LookupError struct {
	ConceptID expression.ConceptID
	Err       error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup of concept %s failed: %v", e.ConceptID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// InconsistentHierarchyError reports a cycle in the fully defined relation.
// Cycle lists the concepts being expanded, the first id repeated at the end.
type InconsistentHierarchyError struct {
	Cycle []expression.ConceptID
}

func (e *InconsistentHierarchyError) Error() string {
	ids := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		ids[i] = string(id)
	}
	return "fully defined concepts form a cycle: " + strings.Join(ids, " -> ")
}

// AmbiguousMergeError is advisory: a group had several mergeable partners and the first one was taken.
// It is logged, never returned.
type AmbiguousMergeError struct {
	Group      expression.Group
	Candidates int
}

func (e *AmbiguousMergeError) Error() string {
	return fmt.Sprintf("group %s has %d mergeable partners, merged greedily with the first", e.Group.Key(), e.Candidates)
}

// lookupError wraps a browser failure unless it already is a LookupError
func lookupError(id expression.ConceptID, err error) error {
	var le *LookupError
	if errors.As(err, &le) {
		return err
	}
	var ie *InconsistentHierarchyError
	if errors.As(err, &ie) {
		return err
	}
	return &LookupError{ConceptID: id, Err: err}
}
