package normalform

import (
	"slices"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
)

// FocusNormalizationResult is the primitive generalization of a set of focus concepts
// together with the merged definition those concepts contribute.
type FocusNormalizationResult struct {
	FilteredPrimitiveSupertypes []expression.Concept
	MergedConceptDefinition     expression.ConceptDefinition
}

// conceptDescriber is implemented by browsers that can attach display terms
type conceptDescriber interface {
	Concept(id expression.ConceptID) (expression.Concept, error)
}

// FocusConceptNormalizer replaces focus concepts by their proximal primitive supertypes
type FocusConceptNormalizer struct {
	hierarchy  interfaces.HierarchyBrowser
	tester     *SubsumptionTester
	merger     *ConceptDefinitionMerger
	attributes *AttributeNormalizer
}

// NewFocusConceptNormalizer creates a focus concept normalizer for a single normalization call
func NewFocusConceptNormalizer(hierarchy interfaces.HierarchyBrowser, statements interfaces.StatementBrowser) *FocusConceptNormalizer {
	focus, _ := newNormalizers(hierarchy, statements)
	return focus
}

// newNormalizers wires the mutually recursive focus and attribute normalizers
func newNormalizers(hierarchy interfaces.HierarchyBrowser, statements interfaces.StatementBrowser) (*FocusConceptNormalizer, *AttributeNormalizer) {
	tester := NewSubsumptionTester(hierarchy)
	merger := NewConceptDefinitionMerger(tester)

	attributes := &AttributeNormalizer{
		hierarchy:   hierarchy,
		statements:  statements,
		merger:      merger,
		definitions: make(map[expression.ConceptID]expression.ConceptDefinition),
		expansions:  make(map[expression.ConceptID]expression.Expression),
		inProgress:  make(map[expression.ConceptID]struct{}),
	}
	focus := &FocusConceptNormalizer{
		hierarchy:  hierarchy,
		tester:     tester,
		merger:     merger,
		attributes: attributes,
	}
	attributes.focus = focus

	return focus, attributes
}

// Normalize computes the filtered proximal primitive supertypes of the focus concepts
// and merges the normalized definitions of every focus concept.
func (n *FocusConceptNormalizer) Normalize(focusConcepts []expression.Concept) (FocusNormalizationResult, error) {
	if len(focusConcepts) == 0 {
		return FocusNormalizationResult{}, ErrNoFocusConcept
	}

	ids := make([]expression.ConceptID, 0, len(focusConcepts))
	for _, c := range focusConcepts {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var union []expression.ConceptID
	for _, id := range ids {
		supertypes, err := n.ProximalPrimitiveSupertypes(id)
		if err != nil {
			return FocusNormalizationResult{}, err
		}
		union = append(union, supertypes...)
	}

	filtered, err := n.filterMostSpecific(union)
	if err != nil {
		return FocusNormalizationResult{}, err
	}

	sources := make([]Source, 0, len(ids))
	for _, id := range ids {
		def, err := n.attributes.conceptDefinition(id)
		if err != nil {
			return FocusNormalizationResult{}, err
		}
		sources = append(sources, Source{Concept: n.describe(id), Definition: def})
	}

	merged, err := n.merger.MergeDefinitions(sources)
	if err != nil {
		return FocusNormalizationResult{}, err
	}

	primitives := make([]expression.Concept, len(filtered))
	for i, id := range filtered {
		primitives[i] = n.describe(id)
	}

	return FocusNormalizationResult{
		FilteredPrimitiveSupertypes: primitives,
		MergedConceptDefinition:     merged,
	}, nil
}

// ProximalPrimitiveSupertypes returns the most specific primitive generalizations of id.
// A primitive concept is its own proximal primitive supertype.
func (n *FocusConceptNormalizer) ProximalPrimitiveSupertypes(id expression.ConceptID) ([]expression.ConceptID, error) {
	primitive, err := n.hierarchy.IsPrimitive(id)
	if err != nil {
		return nil, lookupError(id, err)
	}
	if primitive {
		return []expression.ConceptID{id}, nil
	}

	var found []expression.ConceptID
	visited := map[expression.ConceptID]struct{}{id: {}}
	queue := []expression.ConceptID{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		parents, err := n.hierarchy.SuperTypes(current)
		if err != nil {
			return nil, lookupError(current, err)
		}
		for _, parent := range parents {
			if _, seen := visited[parent]; seen {
				continue
			}
			visited[parent] = struct{}{}

			primitive, err := n.hierarchy.IsPrimitive(parent)
			if err != nil {
				return nil, lookupError(parent, err)
			}
			if primitive {
				found = append(found, parent)
				continue
			}
			queue = append(queue, parent)
		}
	}

	if len(found) == 0 {
		return nil, &LookupError{ConceptID: id, Err: ErrNoPrimitiveAncestor}
	}
	return n.filterMostSpecific(found)
}

// filterMostSpecific drops every id that is an ancestor of another id in the set
func (n *FocusConceptNormalizer) filterMostSpecific(ids []expression.ConceptID) ([]expression.ConceptID, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	kept := make([]expression.ConceptID, 0, len(ids))
	for _, a := range ids {
		general := false
		for _, b := range ids {
			if a == b {
				continue
			}
			ok, err := n.tester.Subsumes(a, b)
			if err != nil {
				return nil, err
			}
			if ok {
				general = true
				break
			}
		}
		if !general {
			kept = append(kept, a)
		}
	}
	return kept, nil
}

// describe attaches the preferred term when the browser knows it
func (n *FocusConceptNormalizer) describe(id expression.ConceptID) expression.Concept {
	if d, ok := n.hierarchy.(conceptDescriber); ok {
		if c, err := d.Concept(id); err == nil {
			return c
		}
	}
	return expression.NewConcept(id, "")
}
