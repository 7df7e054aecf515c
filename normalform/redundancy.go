package normalform

import "github.com/giygas/snomed-normalform/expression"

// RedundancyFilter removes attributes and groups made redundant by a more specific sibling.
// It is used for the short normal form only and never adds anything to a definition.
type RedundancyFilter struct {
	tester *SubsumptionTester
}

// NewRedundancyFilter creates a redundancy filter
func NewRedundancyFilter(tester *SubsumptionTester) *RedundancyFilter {
	return &RedundancyFilter{tester: tester}
}

// FilteredConceptDefinition returns d without redundant content:
//   - within the ungrouped set and within each group, the more general of two related
//     name-matched attributes (the later one for equal pairs)
//   - groups left empty
//   - groups whose every attribute is implied by another group
//   - ungrouped attributes implied by a group attribute
func (f *RedundancyFilter) FilteredConceptDefinition(d expression.ConceptDefinition) (expression.ConceptDefinition, error) {
	out := expression.ConceptDefinition{
		Groups:              make([]expression.Group, 0, len(d.Groups)),
		UngroupedAttributes: []expression.Attribute{},
	}

	for _, g := range d.Groups {
		attrs, err := f.filterAttributes(g.Attributes)
		if err != nil {
			return expression.ConceptDefinition{}, err
		}
		if len(attrs) > 0 {
			out.Groups = append(out.Groups, expression.Group{Attributes: attrs})
		}
	}

	groups, err := f.filterCoveredGroups(out.Groups)
	if err != nil {
		return expression.ConceptDefinition{}, err
	}
	out.Groups = groups

	ungrouped, err := f.filterAttributes(d.UngroupedAttributes)
	if err != nil {
		return expression.ConceptDefinition{}, err
	}
	for _, u := range ungrouped {
		implied, err := f.impliedByGroups(u, out.Groups)
		if err != nil {
			return expression.ConceptDefinition{}, err
		}
		if !implied {
			out.UngroupedAttributes = append(out.UngroupedAttributes, u)
		}
	}

	return out, nil
}

// Implies reports whether everything d states already follows from by
func (f *RedundancyFilter) Implies(by, d expression.ConceptDefinition) (bool, error) {
	for _, u := range d.UngroupedAttributes {
		ok, err := f.impliedByAttributes(u, by.UngroupedAttributes)
		if err != nil {
			return false, err
		}
		if !ok {
			ok, err = f.impliedByGroups(u, by.Groups)
			if err != nil {
				return false, err
			}
		}
		if !ok {
			return false, nil
		}
	}

	for _, g := range d.Groups {
		ok, err := f.groupImplied(g, by)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (f *RedundancyFilter) filterAttributes(attrs []expression.Attribute) ([]expression.Attribute, error) {
	dropped := make([]bool, len(attrs))

	for i := range attrs {
		for j := i + 1; j < len(attrs); j++ {
			if !attrs[i].NameMatches(attrs[j]) {
				continue
			}
			rel, err := f.tester.Compare(attrs[i].Value, attrs[j].Value)
			if err != nil {
				return nil, err
			}
			switch rel {
			case Equal, SubsumedBy:
				dropped[j] = true
			case Subsumes:
				dropped[i] = true
			}
		}
	}

	kept := make([]expression.Attribute, 0, len(attrs))
	for i, a := range attrs {
		if !dropped[i] {
			kept = append(kept, a)
		}
	}
	return kept, nil
}

func (f *RedundancyFilter) filterCoveredGroups(groups []expression.Group) ([]expression.Group, error) {
	dropped := make([]bool, len(groups))

	for i := range groups {
		for j := range groups {
			if i == j || dropped[j] {
				continue
			}
			jCoversI, err := f.covers(groups[j], groups[i])
			if err != nil {
				return nil, err
			}
			if !jCoversI {
				continue
			}
			// equivalent groups: keep the first
			iCoversJ, err := f.covers(groups[i], groups[j])
			if err != nil {
				return nil, err
			}
			if !iCoversJ || j < i {
				dropped[i] = true
				break
			}
		}
	}

	kept := make([]expression.Group, 0, len(groups))
	for i, g := range groups {
		if !dropped[i] {
			kept = append(kept, g)
		}
	}
	return kept, nil
}

// covers reports whether every attribute of g is implied by an attribute of by
func (f *RedundancyFilter) covers(by, g expression.Group) (bool, error) {
	for _, a := range g.Attributes {
		ok, err := f.impliedByAttributes(a, by.Attributes)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// impliedByAttributes reports whether a name-matched attribute equal to or more specific than a exists
func (f *RedundancyFilter) impliedByAttributes(a expression.Attribute, attrs []expression.Attribute) (bool, error) {
	for _, b := range attrs {
		if !a.NameMatches(b) {
			continue
		}
		rel, err := f.tester.Compare(a.Value, b.Value)
		if err != nil {
			return false, err
		}
		if rel == Equal || rel == Subsumes {
			return true, nil
		}
	}
	return false, nil
}

func (f *RedundancyFilter) impliedByGroups(a expression.Attribute, groups []expression.Group) (bool, error) {
	for _, g := range groups {
		ok, err := f.impliedByAttributes(a, g.Attributes)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// groupImplied: a group is implied by a covering group, or, when it holds a single
// attribute, by an ungrouped attribute
func (f *RedundancyFilter) groupImplied(g expression.Group, by expression.ConceptDefinition) (bool, error) {
	for _, candidate := range by.Groups {
		ok, err := f.covers(candidate, g)
		if err != nil || ok {
			return ok, err
		}
	}
	if len(g.Attributes) == 1 {
		return f.impliedByAttributes(g.Attributes[0], by.UngroupedAttributes)
	}
	return false, nil
}
