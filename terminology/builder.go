package terminology

import (
	"cmp"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/giygas/snomed-normalform/expression"
)

// ConceptRow is an active row of the concept file
type ConceptRow struct {
	ID                 expression.ConceptID
	DefinitionStatusID string
}

// DescriptionRow is an active row of the description file
type DescriptionRow struct {
	ConceptID expression.ConceptID
	TypeID    string
	Term      string
}

// RelationshipRow is an active row of the relationship file
type RelationshipRow struct {
	SourceID      expression.ConceptID
	DestinationID expression.ConceptID
	Group         int
	TypeID        expression.ConceptID
}

// Builder assembles a Snapshot. It is not safe for concurrent use.
type Builder struct {
	concepts      map[expression.ConceptID]*conceptRecord
	descriptions  []DescriptionRow
	relationships []RelationshipRow
	cacheSize     int
}

// NewBuilder creates a builder whose snapshot caches up to cacheSize ancestor sets
func NewBuilder(cacheSize int) *Builder {
	if cacheSize <= 0 {
		cacheSize = DefaultAncestorCacheSize
	}
	return &Builder{
		concepts:  make(map[expression.ConceptID]*conceptRecord),
		cacheSize: cacheSize,
	}
}

// AddConcept registers a concept. A later row for the same id replaces the earlier one.
func (b *Builder) AddConcept(row ConceptRow) {
	b.concepts[row.ID] = &conceptRecord{primitive: row.DefinitionStatusID != FullyDefinedStatusID}
}

func (b *Builder) AddDescription(row DescriptionRow) {
	b.descriptions = append(b.descriptions, row)
}

func (b *Builder) AddRelationship(row RelationshipRow) {
	b.relationships = append(b.relationships, row)
}

// Build resolves terms, supertypes and definitions. Relationships pointing at
// unknown concepts are left out and reported by DanglingTargets.
// A builder must not be reused after Build.
func (b *Builder) Build() (*Snapshot, error) {
	cache, err := lru.New[expression.ConceptID, map[expression.ConceptID]struct{}](b.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("init ancestor cache: %w", err)
	}

	for _, d := range b.descriptions {
		c, ok := b.concepts[d.ConceptID]
		if !ok {
			continue
		}
		switch {
		case d.TypeID == FSNTypeID:
			c.term = d.Term
		case c.term == "":
			c.term = d.Term
		}
	}

	dangling := make(map[expression.ConceptID]struct{})
	grouped := make(map[expression.ConceptID]map[int][]expression.Attribute)
	count := 0

	for _, r := range b.relationships {
		source, ok := b.concepts[r.SourceID]
		if !ok {
			dangling[r.SourceID] = struct{}{}
			continue
		}
		if _, ok := b.concepts[r.DestinationID]; !ok {
			dangling[r.DestinationID] = struct{}{}
			continue
		}
		count++

		if r.TypeID == IsATypeID {
			if !slices.Contains(source.parents, r.DestinationID) {
				source.parents = append(source.parents, r.DestinationID)
			}
			continue
		}

		a := expression.NewAttribute(b.concept(r.TypeID), expression.NewConceptValue(b.concept(r.DestinationID)))
		if r.Group == 0 {
			source.definition.UngroupedAttributes = append(source.definition.UngroupedAttributes, a)
			continue
		}
		if grouped[r.SourceID] == nil {
			grouped[r.SourceID] = make(map[int][]expression.Attribute)
		}
		grouped[r.SourceID][r.Group] = append(grouped[r.SourceID][r.Group], a)
	}

	for id, groups := range grouped {
		numbers := make([]int, 0, len(groups))
		for n := range groups {
			numbers = append(numbers, n)
		}
		slices.Sort(numbers)

		c := b.concepts[id]
		for _, n := range numbers {
			c.definition.Groups = append(c.definition.Groups, expression.Group{Attributes: groups[n]})
		}
	}

	ids := make([]expression.ConceptID, 0, len(b.concepts))
	for id := range b.concepts {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)

	danglingIDs := make([]expression.ConceptID, 0, len(dangling))
	for id := range dangling {
		danglingIDs = append(danglingIDs, id)
	}
	slices.SortFunc(danglingIDs, compareIDs)

	return &Snapshot{
		concepts:          b.concepts,
		ids:               ids,
		relationshipCount: count,
		dangling:          danglingIDs,
		ancestors:         cache,
	}, nil
}

func (b *Builder) concept(id expression.ConceptID) expression.Concept {
	if c, ok := b.concepts[id]; ok {
		return expression.NewConcept(id, c.term)
	}
	return expression.NewConcept(id, "")
}

// compareIDs orders identifiers numerically when they are digit strings of different length
func compareIDs(a, b expression.ConceptID) int {
	if len(a) != len(b) {
		return cmp.Compare(len(a), len(b))
	}
	return cmp.Compare(a, b)
}
