package expression

import (
	"slices"
	"strings"
)

// Attribute is a name-value refinement
type Attribute struct {
	Name  Concept
	Value AttributeValue
}

// Group is a role group. Attribute order is insertion order.
type Group struct {
	Attributes []Attribute `json:"attributes"`
}

// ConceptDefinition is the refinement content of an expression without its focus concepts
type ConceptDefinition struct {
	Groups              []Group     `json:"groups"`
	UngroupedAttributes []Attribute `json:"ungroupedAttributes"`
}

// Expression is a full compositional grammar expression
type Expression struct {
	FocusConcepts []Concept         `json:"focusConcepts"`
	Definition    ConceptDefinition `json:"definition"`
}

// NewAttribute creates an attribute
func NewAttribute(name Concept, value AttributeValue) Attribute {
	return Attribute{Name: name, Value: value}
}

// ConceptAttribute is a shorthand for an attribute whose name and value are plain concept ids
func ConceptAttribute(name, value ConceptID) Attribute {
	return Attribute{Name: Concept{ID: name}, Value: ConceptValue{Concept: Concept{ID: value}}}
}

// NewGroup creates a group holding a copy of attrs
func NewGroup(attrs ...Attribute) Group {
	return Group{Attributes: slices.Clone(attrs)}
}

// NameMatches reports whether both attributes carry the same name concept
func (a Attribute) NameMatches(other Attribute) bool {
	return a.Name.ID == other.Name.ID
}

// Key is the canonical form of the attribute
func (a Attribute) Key() string {
	if a.Value == nil {
		return string(a.Name.ID) + "="
	}
	return string(a.Name.ID) + "=" + a.Value.Key()
}

// Equal reports structural equality
func (a Attribute) Equal(other Attribute) bool {
	return a.Key() == other.Key()
}

func (a Attribute) String() string {
	return a.Key()
}

// Clone copies the attribute slice so callers can append safely
func (g Group) Clone() Group {
	return Group{Attributes: slices.Clone(g.Attributes)}
}

// IsEmpty reports whether the group holds no attributes
func (g Group) IsEmpty() bool {
	return len(g.Attributes) == 0
}

// Contains reports whether an identical attribute is already present
func (g Group) Contains(a Attribute) bool {
	key := a.Key()
	for _, existing := range g.Attributes {
		if existing.Key() == key {
			return true
		}
	}
	return false
}

// Key is the order-insensitive canonical form of the group
func (g Group) Key() string {
	keys := make([]string, len(g.Attributes))
	for i, a := range g.Attributes {
		keys[i] = a.Key()
	}
	slices.Sort(keys)
	return "{" + strings.Join(keys, ",") + "}"
}

// IsEmpty reports whether the definition has no groups and no ungrouped attributes
func (d ConceptDefinition) IsEmpty() bool {
	return len(d.Groups) == 0 && len(d.UngroupedAttributes) == 0
}

// Clone copies every slice of the definition. Attribute values are immutable and shared.
func (d ConceptDefinition) Clone() ConceptDefinition {
	out := ConceptDefinition{
		UngroupedAttributes: slices.Clone(d.UngroupedAttributes),
	}
	if d.Groups != nil {
		out.Groups = make([]Group, len(d.Groups))
		for i, g := range d.Groups {
			out.Groups[i] = g.Clone()
		}
	}
	return out
}

// AttributeCount counts ungrouped and grouped attributes
func (d ConceptDefinition) AttributeCount() int {
	n := len(d.UngroupedAttributes)
	for _, g := range d.Groups {
		n += len(g.Attributes)
	}
	return n
}

// Key is the canonical form of the definition
func (d ConceptDefinition) Key() string {
	ungrouped := make([]string, len(d.UngroupedAttributes))
	for i, a := range d.UngroupedAttributes {
		ungrouped[i] = a.Key()
	}
	slices.Sort(ungrouped)

	groups := make([]string, len(d.Groups))
	for i, g := range d.Groups {
		groups[i] = g.Key()
	}
	slices.Sort(groups)

	return strings.Join(ungrouped, ",") + "|" + strings.Join(groups, ",")
}

// PrimaryFocus returns the first focus concept
func (e Expression) PrimaryFocus() (Concept, bool) {
	if len(e.FocusConcepts) == 0 {
		return Concept{}, false
	}
	return e.FocusConcepts[0], true
}

// Key is the canonical form of the expression
func (e Expression) Key() string {
	ids := make([]string, len(e.FocusConcepts))
	for i, c := range e.FocusConcepts {
		ids[i] = string(c.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	key := strings.Join(ids, "+")
	if !e.Definition.IsEmpty() {
		key += ":" + e.Definition.Key()
	}
	return key
}

// Equal reports structural equality: same focus concept set and same definition
func (e Expression) Equal(other Expression) bool {
	return e.Key() == other.Key()
}

func (e Expression) String() string {
	return e.Key()
}

// Canonical returns a copy of e with focus concepts sorted and de-duplicated,
// attributes and groups sorted by canonical key, duplicates and empty groups removed.
// Nested expression values are canonicalized as well.
func Canonical(e Expression) Expression {
	focus := slices.Clone(e.FocusConcepts)
	slices.SortStableFunc(focus, func(a, b Concept) int { return strings.Compare(string(a.ID), string(b.ID)) })
	focus = slices.CompactFunc(focus, func(a, b Concept) bool { return a.ID == b.ID })

	return Expression{
		FocusConcepts: focus,
		Definition:    CanonicalDefinition(e.Definition),
	}
}

// CanonicalDefinition orders and de-duplicates a definition
func CanonicalDefinition(d ConceptDefinition) ConceptDefinition {
	out := ConceptDefinition{
		Groups:              make([]Group, 0, len(d.Groups)),
		UngroupedAttributes: canonicalAttributes(d.UngroupedAttributes),
	}

	seen := make(map[string]struct{}, len(d.Groups))
	for _, g := range d.Groups {
		attrs := canonicalAttributes(g.Attributes)
		if len(attrs) == 0 {
			continue
		}
		group := Group{Attributes: attrs}
		key := group.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Groups = append(out.Groups, group)
	}
	slices.SortStableFunc(out.Groups, func(a, b Group) int { return strings.Compare(a.Key(), b.Key()) })

	return out
}

func canonicalAttributes(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		a.Value = canonicalValue(a.Value)
		key := a.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b Attribute) int { return strings.Compare(a.Key(), b.Key()) })
	return out
}
