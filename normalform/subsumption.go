// Package normalform reduces post-coordinated expressions to their long and short normal forms.
// It is a multi-pass rewrite driven by subsumption queries against an injected hierarchy:
// focus concepts are replaced by their proximal primitive supertypes, fully defined attribute
// values are expanded, definitions contributed by several sources are merged, and for the
// short form redundant attributes are filtered out.
package normalform

import (
	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
)

// Relation classifies two attribute values
type Relation int

const (
	Disjoint Relation = iota
	Equal
	Subsumes
	SubsumedBy
)

func (r Relation) String() string {
	switch r {
	case Equal:
		return "equal"
	case Subsumes:
		return "subsumes"
	case SubsumedBy:
		return "subsumed-by"
	default:
		return "disjoint"
	}
}

// Inverse swaps the operands of the relation
func (r Relation) Inverse() Relation {
	switch r {
	case Subsumes:
		return SubsumedBy
	case SubsumedBy:
		return Subsumes
	default:
		return r
	}
}

// SubsumptionTester answers subsumption questions through a HierarchyBrowser
type SubsumptionTester struct {
	hierarchy interfaces.HierarchyBrowser
}

// NewSubsumptionTester creates a tester over the given hierarchy
func NewSubsumptionTester(hierarchy interfaces.HierarchyBrowser) *SubsumptionTester {
	return &SubsumptionTester{hierarchy: hierarchy}
}

// Subsumes reports whether a is b or an ancestor of b
func (t *SubsumptionTester) Subsumes(a, b expression.ConceptID) (bool, error) {
	if a == b {
		return true, nil
	}
	ancestors, err := t.hierarchy.AncestorsAndSelf(b)
	if err != nil {
		return false, lookupError(b, err)
	}
	_, ok := ancestors[a]
	return ok, nil
}

// CompareConcepts classifies two concepts
func (t *SubsumptionTester) CompareConcepts(a, b expression.ConceptID) (Relation, error) {
	if a == b {
		return Equal, nil
	}

	ok, err := t.Subsumes(a, b)
	if err != nil {
		return Disjoint, err
	}
	if ok {
		return Subsumes, nil
	}

	ok, err = t.Subsumes(b, a)
	if err != nil {
		return Disjoint, err
	}
	if ok {
		return SubsumedBy, nil
	}
	return Disjoint, nil
}

// Compare classifies v1 against v2.
// Nested expressions are compared through their primary focus concept only.
func (t *SubsumptionTester) Compare(v1, v2 expression.AttributeValue) (Relation, error) {
	switch a := v1.(type) {
	case expression.ConceptValue:
		switch b := v2.(type) {
		case expression.ConceptValue:
			return t.CompareConcepts(a.Concept.ID, b.Concept.ID)
		case expression.ExpressionValue:
			return t.compareConceptToExpression(a.Concept, b.Expression)
		}
	case expression.ExpressionValue:
		switch b := v2.(type) {
		case expression.ConceptValue:
			rel, err := t.compareConceptToExpression(b.Concept, a.Expression)
			return rel.Inverse(), err
		case expression.ExpressionValue:
			return t.compareExpressions(a.Expression, b.Expression)
		}
	}
	return Disjoint, nil
}

// compareConceptToExpression: a refinement of X is subsumed by X and every ancestor of X,
// nothing else can be concluded without decomposing the refinement.
func (t *SubsumptionTester) compareConceptToExpression(c expression.Concept, e expression.Expression) (Relation, error) {
	focus, ok := e.PrimaryFocus()
	if !ok {
		return Disjoint, nil
	}
	if e.Definition.IsEmpty() && len(e.FocusConcepts) == 1 {
		return t.CompareConcepts(c.ID, focus.ID)
	}

	subsumes, err := t.Subsumes(c.ID, focus.ID)
	if err != nil {
		return Disjoint, err
	}
	if subsumes {
		return Subsumes, nil
	}
	return Disjoint, nil
}

func (t *SubsumptionTester) compareExpressions(a, b expression.Expression) (Relation, error) {
	if a.Equal(b) {
		return Equal, nil
	}

	fa, okA := a.PrimaryFocus()
	fb, okB := b.PrimaryFocus()
	if !okA || !okB {
		return Disjoint, nil
	}

	rel, err := t.CompareConcepts(fa.ID, fb.ID)
	if err != nil {
		return Disjoint, err
	}
	// same focus, different refinements
	if rel == Equal {
		return Disjoint, nil
	}
	return rel, nil
}
