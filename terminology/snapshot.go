// Package terminology holds an in-memory snapshot of an RF2 release and serves it
// through the hierarchy and statement browser contracts used by the normal form engine.
// A Snapshot is immutable once built and safe for concurrent reads.
package terminology

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
)

// Concepts with a fixed role in every release
const (
	RootConceptID expression.ConceptID = "138875005"
	IsATypeID     expression.ConceptID = "116680003"
)

// RF2 metadata identifiers
const (
	FullyDefinedStatusID = "900000000000073002"
	PrimitiveStatusID    = "900000000000074008"
	FSNTypeID            = "900000000000003001"
	SynonymTypeID        = "900000000000013009"
)

// DefaultAncestorCacheSize bounds the ancestor cache when no size is configured
const DefaultAncestorCacheSize = 50000

// Compile-time check to ensure Snapshot implements Terminology
var _ interfaces.Terminology = (*Snapshot)(nil)

type conceptRecord struct {
	primitive  bool
	term       string
	parents    []expression.ConceptID
	definition expression.ConceptDefinition
}

// Snapshot is one consistent view of the terminology
type Snapshot struct {
	concepts          map[expression.ConceptID]*conceptRecord
	ids               []expression.ConceptID
	relationshipCount int
	dangling          []expression.ConceptID
	ancestors         *lru.Cache[expression.ConceptID, map[expression.ConceptID]struct{}]
}

func (s *Snapshot) record(id expression.ConceptID) (*conceptRecord, error) {
	c, ok := s.concepts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrConceptNotFound, id)
	}
	return c, nil
}

// IsPrimitive reports whether the concept is primitive
func (s *Snapshot) IsPrimitive(id expression.ConceptID) (bool, error) {
	c, err := s.record(id)
	if err != nil {
		return false, err
	}
	return c.primitive, nil
}

// SuperTypes returns the direct IS A targets of the concept
func (s *Snapshot) SuperTypes(id expression.ConceptID) ([]expression.ConceptID, error) {
	c, err := s.record(id)
	if err != nil {
		return nil, err
	}
	return c.parents, nil
}

// AncestorsAndSelf returns the concept and all its transitive supertypes.
// The returned set is shared through the cache and must not be modified.
func (s *Snapshot) AncestorsAndSelf(id expression.ConceptID) (map[expression.ConceptID]struct{}, error) {
	if set, ok := s.ancestors.Get(id); ok {
		return set, nil
	}
	if _, err := s.record(id); err != nil {
		return nil, err
	}

	set := map[expression.ConceptID]struct{}{id: {}}
	queue := []expression.ConceptID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, parent := range s.concepts[current].parents {
			if _, seen := set[parent]; seen {
				continue
			}
			set[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}

	s.ancestors.Add(id, set)
	return set, nil
}

// StatedAttributes returns a copy of the concept's defining relationships
func (s *Snapshot) StatedAttributes(id expression.ConceptID) (expression.ConceptDefinition, error) {
	c, err := s.record(id)
	if err != nil {
		return expression.ConceptDefinition{}, err
	}
	return c.definition.Clone(), nil
}

// Concept returns the concept with its preferred term
func (s *Snapshot) Concept(id expression.ConceptID) (expression.Concept, error) {
	c, err := s.record(id)
	if err != nil {
		return expression.Concept{}, err
	}
	return expression.NewConcept(id, c.term), nil
}

// Term returns the preferred term, empty for unknown concepts
func (s *Snapshot) Term(id expression.ConceptID) string {
	if c, ok := s.concepts[id]; ok {
		return c.term
	}
	return ""
}

func (s *Snapshot) ConceptCount() int {
	return len(s.concepts)
}

func (s *Snapshot) RelationshipCount() int {
	return s.relationshipCount
}

// ConceptIDs lists every concept id in ascending order
func (s *Snapshot) ConceptIDs() []expression.ConceptID {
	return s.ids
}

// DanglingTargets lists relationship endpoints missing from the concept file
func (s *Snapshot) DanglingTargets() []expression.ConceptID {
	return s.dangling
}
