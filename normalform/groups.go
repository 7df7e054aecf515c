package normalform

import (
	"slices"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/logging"
)

// GroupMerger merges role groups contributed by several definitions
type GroupMerger struct {
	tester *SubsumptionTester
}

// NewGroupMerger creates a group merger
func NewGroupMerger(tester *SubsumptionTester) *GroupMerger {
	return &GroupMerger{tester: tester}
}

// IsMergeable reports whether g1 and g2 share at least one attribute name
// and no name-matched pair between them is disjoint.
func (m *GroupMerger) IsMergeable(g1, g2 expression.Group) (bool, error) {
	shared := false
	for _, a := range g1.Attributes {
		for _, b := range g2.Attributes {
			if !a.NameMatches(b) {
				continue
			}
			shared = true
			rel, err := m.tester.Compare(a.Value, b.Value)
			if err != nil {
				return false, err
			}
			if rel == Disjoint {
				return false, nil
			}
		}
	}
	return shared, nil
}

// Merge unions the attributes of two mergeable groups. Only pairs across g1 and g2 are
// compared: an attribute is dropped when the other group holds a more specific name-matched
// attribute, and of an equal pair one copy is kept. Name-matched attributes within one group
// are left alone, so the result does not depend on argument order.
func (m *GroupMerger) Merge(g1, g2 expression.Group) (expression.Group, error) {
	keep1, err := m.survivors(g1, g2)
	if err != nil {
		return expression.Group{}, err
	}
	keep2, err := m.survivors(g2, g1)
	if err != nil {
		return expression.Group{}, err
	}

	result := make([]expression.Attribute, 0, len(g1.Attributes)+len(g2.Attributes))
	for i, a := range g1.Attributes {
		if keep1[i] {
			result = append(result, a)
		}
	}

	for j, b := range g2.Attributes {
		if !keep2[j] {
			continue
		}
		duplicate := false
		for i, a := range g1.Attributes {
			if !keep1[i] || !a.NameMatches(b) {
				continue
			}
			rel, err := m.tester.Compare(a.Value, b.Value)
			if err != nil {
				return expression.Group{}, err
			}
			if rel == Equal {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, b)
		}
	}

	return expression.Group{Attributes: result}, nil
}

// survivors marks the attributes of g that no attribute of other specializes
func (m *GroupMerger) survivors(g, other expression.Group) ([]bool, error) {
	keep := make([]bool, len(g.Attributes))
	for i, a := range g.Attributes {
		keep[i] = true
		for _, b := range other.Attributes {
			if !a.NameMatches(b) {
				continue
			}
			rel, err := m.tester.Compare(a.Value, b.Value)
			if err != nil {
				return nil, err
			}
			if rel == Subsumes {
				keep[i] = false
				break
			}
		}
	}
	return keep, nil
}

// poolEntry is a candidate group and the indexes of the sources it was built from
type poolEntry struct {
	group   expression.Group
	sources []int
}

// MergeGroups pools the groups of every source, merges mergeable pairs until none is left
// and appends the survivors to target. Groups of the same source are never merged together.
// Pairs are taken greedily in source order.
func (m *GroupMerger) MergeGroups(sources []Source, target *expression.ConceptDefinition) error {
	var pool []poolEntry
	for i, src := range sources {
		for _, g := range src.Definition.Groups {
			if g.IsEmpty() {
				continue
			}
			pool = append(pool, poolEntry{group: g.Clone(), sources: []int{i}})
		}
	}

	for {
		i, j, found, err := m.findMergeablePair(pool)
		if err != nil {
			return err
		}
		if !found {
			break
		}

		merged, err := m.Merge(pool[i].group, pool[j].group)
		if err != nil {
			return err
		}
		pool[i] = poolEntry{
			group:   merged,
			sources: append(slices.Clone(pool[i].sources), pool[j].sources...),
		}
		pool = slices.Delete(pool, j, j+1)
	}

	for _, entry := range pool {
		target.Groups = append(target.Groups, entry.group)
	}
	return nil
}

// findMergeablePair returns the first mergeable pair (i < j) from distinct sources
func (m *GroupMerger) findMergeablePair(pool []poolEntry) (int, int, bool, error) {
	for i := range pool {
		first := -1
		candidates := 0

		for j := i + 1; j < len(pool); j++ {
			if sharesSource(pool[i].sources, pool[j].sources) {
				continue
			}
			ok, err := m.IsMergeable(pool[i].group, pool[j].group)
			if err != nil {
				return 0, 0, false, err
			}
			if !ok {
				continue
			}
			candidates++
			if first < 0 {
				first = j
			}
		}

		if first >= 0 {
			if candidates > 1 {
				logging.Debug("Ambiguous group merge resolved greedily",
					"error", &AmbiguousMergeError{Group: pool[i].group, Candidates: candidates})
			}
			return i, first, true, nil
		}
	}
	return 0, 0, false, nil
}

func sharesSource(a, b []int) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
