package normalform

import (
	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
)

// Generator produces long and short normal forms of expressions.
// Every call allocates its own normalizers, so a Generator can serve concurrent
// requests as long as the browsers are safe for concurrent reads.
type Generator struct {
	hierarchy  interfaces.HierarchyBrowser
	statements interfaces.StatementBrowser
}

// Compile-time check
var _ interfaces.NormalFormGenerator = (*Generator)(nil)

// NewGenerator creates a generator over one consistent terminology snapshot
func NewGenerator(hierarchy interfaces.HierarchyBrowser, statements interfaces.StatementBrowser) *Generator {
	return &Generator{hierarchy: hierarchy, statements: statements}
}

// LongNormalForm returns the fully expanded canonical form of expr
func (g *Generator) LongNormalForm(expr expression.Expression) (expression.Expression, error) {
	_, attributes := newNormalizers(g.hierarchy, g.statements)
	return attributes.longForm(expr)
}

// ShortNormalForm returns the long normal form without redundant attributes and groups.
// When the remaining definition adds nothing to what the primitive supertypes already state,
// only the focus concepts are kept.
func (g *Generator) ShortNormalForm(expr expression.Expression) (expression.Expression, error) {
	focus, attributes := newNormalizers(g.hierarchy, g.statements)

	long, err := attributes.longForm(expr)
	if err != nil {
		return expression.Expression{}, err
	}

	filter := NewRedundancyFilter(focus.tester)
	filtered, err := filter.FilteredConceptDefinition(long.Definition)
	if err != nil {
		return expression.Expression{}, err
	}

	if !filtered.IsEmpty() {
		implied, err := focus.Normalize(long.FocusConcepts)
		if err != nil {
			return expression.Expression{}, err
		}
		baseline, err := filter.FilteredConceptDefinition(implied.MergedConceptDefinition)
		if err != nil {
			return expression.Expression{}, err
		}
		redundant, err := filter.Implies(baseline, filtered)
		if err != nil {
			return expression.Expression{}, err
		}
		if redundant {
			filtered = expression.ConceptDefinition{}
		}
	}

	return expression.Canonical(expression.Expression{
		FocusConcepts: long.FocusConcepts,
		Definition:    filtered,
	}), nil
}
