// Package expression holds the in-memory model of post-coordinated SNOMED CT expressions:
// focus concepts refined by grouped and ungrouped attributes. Every type is a value type;
// transforms build new trees instead of mutating the ones they receive.
package expression

import "fmt"

// ConceptID is an opaque terminology code (an SCTID in practice)
type ConceptID string

// Concept is a reference to a terminology concept with an optional display term
type Concept struct {
	ID   ConceptID `json:"id"`
	Term string    `json:"term,omitempty"`
}

// NewConcept creates a concept reference
func NewConcept(id ConceptID, term string) Concept {
	return Concept{ID: id, Term: term}
}

// IsZero reports whether the concept carries no identifier
func (c Concept) IsZero() bool {
	return c.ID == ""
}

// Equal compares by identifier only, the term is display data
func (c Concept) Equal(other Concept) bool {
	return c.ID == other.ID
}

func (c Concept) String() string {
	if c.Term == "" {
		return string(c.ID)
	}
	return fmt.Sprintf("%s |%s|", c.ID, c.Term)
}
