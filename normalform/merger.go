package normalform

import "github.com/giygas/snomed-normalform/expression"

// Source is one definition taking part in a merge, labelled with the concept that contributed it.
// A zero Concept labels the refinement written in the expression itself.
type Source struct {
	Concept    expression.Concept
	Definition expression.ConceptDefinition
}

// ConceptDefinitionMerger merges groups, then ungrouped attributes, of several definitions
type ConceptDefinitionMerger struct {
	groups    *GroupMerger
	ungrouped *UngroupedAttributesMerger
}

// NewConceptDefinitionMerger creates a merger sharing one subsumption tester
func NewConceptDefinitionMerger(tester *SubsumptionTester) *ConceptDefinitionMerger {
	return &ConceptDefinitionMerger{
		groups:    NewGroupMerger(tester),
		ungrouped: NewUngroupedAttributesMerger(tester),
	}
}

// MergeDefinitions returns the merged definition of all sources.
// Groups are merged first because the ungrouped pass compares against the final group set.
func (m *ConceptDefinitionMerger) MergeDefinitions(sources []Source) (expression.ConceptDefinition, error) {
	target := expression.ConceptDefinition{
		Groups:              []expression.Group{},
		UngroupedAttributes: []expression.Attribute{},
	}

	if err := m.groups.MergeGroups(sources, &target); err != nil {
		return expression.ConceptDefinition{}, err
	}
	if err := m.ungrouped.MergeUngroupedAttributes(sources, &target); err != nil {
		return expression.ConceptDefinition{}, err
	}
	return target, nil
}
