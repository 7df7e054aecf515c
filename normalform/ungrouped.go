package normalform

import (
	"slices"

	"github.com/giygas/snomed-normalform/expression"
)

// UngroupedAttributesMerger merges ungrouped attributes across definitions and against the merged groups
type UngroupedAttributesMerger struct {
	tester *SubsumptionTester
}

// NewUngroupedAttributesMerger creates an ungrouped attributes merger
func NewUngroupedAttributesMerger(tester *SubsumptionTester) *UngroupedAttributesMerger {
	return &UngroupedAttributesMerger{tester: tester}
}

type sourcedAttribute struct {
	attr   expression.Attribute
	source int
}

// MergeUngroupedAttributes runs two passes. Pass A compares ungrouped attributes of different
// sources and keeps the more specific of every related name-matched pair. Pass B compares the
// survivors against target's groups: a more general or equal attribute is dropped, a more specific
// one moves into every group holding a more general attribute of the same name.
func (m *UngroupedAttributesMerger) MergeUngroupedAttributes(sources []Source, target *expression.ConceptDefinition) error {
	var all []sourcedAttribute
	for i, src := range sources {
		for _, a := range src.Definition.UngroupedAttributes {
			all = append(all, sourcedAttribute{attr: a, source: i})
		}
	}

	survivors, err := m.mergeAcrossSources(all)
	if err != nil {
		return err
	}

	for _, u := range survivors {
		absorbed, err := m.mergeIntoGroups(u, target)
		if err != nil {
			return err
		}
		if !absorbed {
			target.UngroupedAttributes = append(target.UngroupedAttributes, u)
		}
	}
	return nil
}

// mergeAcrossSources is pass A
func (m *UngroupedAttributesMerger) mergeAcrossSources(all []sourcedAttribute) ([]expression.Attribute, error) {
	dropped := make([]bool, len(all))

	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].source == all[j].source || !all[i].attr.NameMatches(all[j].attr) {
				continue
			}
			rel, err := m.tester.Compare(all[i].attr.Value, all[j].attr.Value)
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

	survivors := make([]expression.Attribute, 0, len(all))
	for i, sa := range all {
		if !dropped[i] {
			survivors = append(survivors, sa.attr)
		}
	}
	return survivors, nil
}

// mergeIntoGroups is pass B for one attribute. It reports whether u is represented by the groups.
func (m *UngroupedAttributesMerger) mergeIntoGroups(u expression.Attribute, target *expression.ConceptDefinition) (bool, error) {
	absorbed := false

	for gi := range target.Groups {
		covered, specializes := false, false

		for _, ga := range target.Groups[gi].Attributes {
			if !u.NameMatches(ga) {
				continue
			}
			rel, err := m.tester.Compare(u.Value, ga.Value)
			if err != nil {
				return false, err
			}
			switch rel {
			case Subsumes, Equal:
				covered = true
			case SubsumedBy:
				specializes = true
			}
		}

		switch {
		case covered:
			absorbed = true
		case specializes:
			attrs := slices.Clip(target.Groups[gi].Attributes)
			target.Groups[gi] = expression.Group{Attributes: append(attrs, u)}
			absorbed = true
		}
	}
	return absorbed, nil
}
