package normalform

import (
	"slices"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
)

// AttributeNormalizer expands attribute values naming fully defined concepts into the
// normalized expression of that concept. Grouping is preserved, only values change.
//
// Results are memoized per concept for the lifetime of the normalizer, which is one
// normalization call. Concepts currently being expanded are tracked so that a cycle in
// the fully defined relation fails with InconsistentHierarchyError.
type AttributeNormalizer struct {
	hierarchy  interfaces.HierarchyBrowser
	statements interfaces.StatementBrowser
	merger     *ConceptDefinitionMerger
	focus      *FocusConceptNormalizer

	definitions map[expression.ConceptID]expression.ConceptDefinition
	expansions  map[expression.ConceptID]expression.Expression
	inProgress  map[expression.ConceptID]struct{}
	stack       []expression.ConceptID
}

// NewAttributeNormalizer creates an attribute normalizer for a single normalization call
func NewAttributeNormalizer(hierarchy interfaces.HierarchyBrowser, statements interfaces.StatementBrowser) *AttributeNormalizer {
	_, attributes := newNormalizers(hierarchy, statements)
	return attributes
}

// NormalizeAttributes returns a definition holding the given groups and ungrouped attributes
// with every value normalized.
func (n *AttributeNormalizer) NormalizeAttributes(groups []expression.Group, ungrouped []expression.Attribute) (expression.ConceptDefinition, error) {
	out := expression.ConceptDefinition{
		Groups:              make([]expression.Group, 0, len(groups)),
		UngroupedAttributes: make([]expression.Attribute, 0, len(ungrouped)),
	}

	for _, g := range groups {
		if g.IsEmpty() {
			continue
		}
		attrs, err := n.normalizeAll(g.Attributes)
		if err != nil {
			return expression.ConceptDefinition{}, err
		}
		out.Groups = append(out.Groups, expression.Group{Attributes: attrs})
	}

	attrs, err := n.normalizeAll(ungrouped)
	if err != nil {
		return expression.ConceptDefinition{}, err
	}
	out.UngroupedAttributes = attrs

	return out, nil
}

// NormalizeDefinition is NormalizeAttributes over a whole definition
func (n *AttributeNormalizer) NormalizeDefinition(d expression.ConceptDefinition) (expression.ConceptDefinition, error) {
	return n.NormalizeAttributes(d.Groups, d.UngroupedAttributes)
}

func (n *AttributeNormalizer) normalizeAll(attrs []expression.Attribute) ([]expression.Attribute, error) {
	out := make([]expression.Attribute, 0, len(attrs))
	for _, a := range attrs {
		value, err := n.normalizeValue(a.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, expression.NewAttribute(a.Name, value))
	}
	return out, nil
}

func (n *AttributeNormalizer) normalizeValue(v expression.AttributeValue) (expression.AttributeValue, error) {
	switch val := v.(type) {
	case expression.ConceptValue:
		primitive, err := n.hierarchy.IsPrimitive(val.Concept.ID)
		if err != nil {
			return nil, lookupError(val.Concept.ID, err)
		}
		if primitive {
			return val, nil
		}
		expanded, err := n.expandConcept(val.Concept.ID)
		if err != nil {
			return nil, err
		}
		return expression.NewExpressionValue(expanded), nil

	case expression.ExpressionValue:
		nested, err := n.longForm(val.Expression)
		if err != nil {
			return nil, err
		}
		return expression.NewExpressionValue(nested), nil

	default:
		return nil, ErrMissingValue
	}
}

// expandConcept returns the normalized expression standing for a fully defined concept
func (n *AttributeNormalizer) expandConcept(id expression.ConceptID) (expression.Expression, error) {
	if e, ok := n.expansions[id]; ok {
		return e, nil
	}

	result, err := n.focus.Normalize([]expression.Concept{expression.NewConcept(id, "")})
	if err != nil {
		return expression.Expression{}, err
	}

	e := expression.Canonical(expression.Expression{
		FocusConcepts: result.FilteredPrimitiveSupertypes,
		Definition:    result.MergedConceptDefinition,
	})
	n.expansions[id] = e
	return e, nil
}

// conceptDefinition returns the normalized stated definition of a concept
func (n *AttributeNormalizer) conceptDefinition(id expression.ConceptID) (expression.ConceptDefinition, error) {
	if d, ok := n.definitions[id]; ok {
		return d, nil
	}

	if _, expanding := n.inProgress[id]; expanding {
		start := slices.Index(n.stack, id)
		cycle := append(slices.Clone(n.stack[start:]), id)
		logging.Debug("Cycle in fully defined concepts", "cycle", cycle)
		return expression.ConceptDefinition{}, &InconsistentHierarchyError{Cycle: cycle}
	}

	n.inProgress[id] = struct{}{}
	n.stack = append(n.stack, id)
	defer func() {
		delete(n.inProgress, id)
		n.stack = n.stack[:len(n.stack)-1]
	}()

	stated, err := n.statements.StatedAttributes(id)
	if err != nil {
		return expression.ConceptDefinition{}, lookupError(id, err)
	}

	d, err := n.NormalizeDefinition(stated)
	if err != nil {
		return expression.ConceptDefinition{}, err
	}
	n.definitions[id] = d
	return d, nil
}

// longForm normalizes a complete expression: the focus concepts' merged definition and the
// expression's own normalized refinement are merged as two sources.
func (n *AttributeNormalizer) longForm(e expression.Expression) (expression.Expression, error) {
	if len(e.FocusConcepts) == 0 {
		return expression.Expression{}, ErrNoFocusConcept
	}

	focus, err := n.focus.Normalize(e.FocusConcepts)
	if err != nil {
		return expression.Expression{}, err
	}

	refinement, err := n.NormalizeDefinition(e.Definition)
	if err != nil {
		return expression.Expression{}, err
	}

	primary, _ := e.PrimaryFocus()
	merged, err := n.merger.MergeDefinitions([]Source{
		{Concept: primary, Definition: focus.MergedConceptDefinition},
		{Definition: refinement},
	})
	if err != nil {
		return expression.Expression{}, err
	}

	return expression.Canonical(expression.Expression{
		FocusConcepts: focus.FilteredPrimitiveSupertypes,
		Definition:    merged,
	}), nil
}
