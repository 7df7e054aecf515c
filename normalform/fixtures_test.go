package normalform

import (
	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
)

const (
	root                   expression.ConceptID = "138875005"
	clinicalFinding        expression.ConceptID = "404684003"
	disease                expression.ConceptID = "64572001"
	fractureOfFemur        expression.ConceptID = "71620000"
	associatedMorphology   expression.ConceptID = "116676008"
	findingSite            expression.ConceptID = "363698007"
	causativeAgent         expression.ConceptID = "246075003"
	severity               expression.ConceptID = "246112005"
	hasDisposition         expression.ConceptID = "726542003"
	morphologicAbnormality expression.ConceptID = "49755003"
	fracture               expression.ConceptID = "72704001"
	boneStructure          expression.ConceptID = "272673000"
	boneOfFemur            expression.ConceptID = "71341001"
	lungStructure          expression.ConceptID = "39607008"
	substance              expression.ConceptID = "105590001"
	severe                 expression.ConceptID = "24484000"
	dustAllergen           expression.ConceptID = "dust-allergen"
	contactAllergen        expression.ConceptID = "contact-allergen"
	allergenDisposition    expression.ConceptID = "allergen-disposition"
	allergenicSubstance    expression.ConceptID = "allergenic-substance"
	severeFinding          expression.ConceptID = "severe-finding"
)

type fakeConcept struct {
	primitive  bool
	parents    []expression.ConceptID
	definition expression.ConceptDefinition
}

// fakeTerminology is an in-memory hierarchy and statement browser
type fakeTerminology struct {
	concepts map[expression.ConceptID]fakeConcept
	lookups  int
}

var (
	_ interfaces.HierarchyBrowser = (*fakeTerminology)(nil)
	_ interfaces.StatementBrowser = (*fakeTerminology)(nil)
)

func newFakeTerminology() *fakeTerminology {
	return &fakeTerminology{concepts: make(map[expression.ConceptID]fakeConcept)}
}

func (f *fakeTerminology) primitive(id expression.ConceptID, parents ...expression.ConceptID) {
	f.concepts[id] = fakeConcept{primitive: true, parents: parents}
}

func (f *fakeTerminology) defined(id expression.ConceptID, def expression.ConceptDefinition, parents ...expression.ConceptID) {
	f.concepts[id] = fakeConcept{parents: parents, definition: def}
}

func (f *fakeTerminology) IsPrimitive(id expression.ConceptID) (bool, error) {
	f.lookups++
	c, ok := f.concepts[id]
	if !ok {
		return false, interfaces.ErrConceptNotFound
	}
	return c.primitive, nil
}

func (f *fakeTerminology) SuperTypes(id expression.ConceptID) ([]expression.ConceptID, error) {
	c, ok := f.concepts[id]
	if !ok {
		return nil, interfaces.ErrConceptNotFound
	}
	return c.parents, nil
}

func (f *fakeTerminology) AncestorsAndSelf(id expression.ConceptID) (map[expression.ConceptID]struct{}, error) {
	if _, ok := f.concepts[id]; !ok {
		return nil, interfaces.ErrConceptNotFound
	}
	result := map[expression.ConceptID]struct{}{id: {}}
	queue := []expression.ConceptID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, p := range f.concepts[current].parents {
			if _, seen := result[p]; !seen {
				result[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	return result, nil
}

func (f *fakeTerminology) StatedAttributes(id expression.ConceptID) (expression.ConceptDefinition, error) {
	c, ok := f.concepts[id]
	if !ok {
		return expression.ConceptDefinition{}, interfaces.ErrConceptNotFound
	}
	return c.definition.Clone(), nil
}

// clinicalTerminology is a small clinical-finding hierarchy:
//
//	root
//	├── clinical finding ── disease ── fracture of femur (defined)
//	│                         └── severe finding (primitive, stated severity=severe)
//	├── morphologic abnormality ── fracture
//	├── bone structure ── bone of femur
//	├── lung structure
//	├── severe
//	├── allergen disposition
//	└── substance ── dust allergen
//	              ├── contact allergen
//	              └── allergenic substance (defined, hasDisposition=allergen disposition)
func clinicalTerminology() *fakeTerminology {
	f := newFakeTerminology()
	f.primitive(root)
	for _, attr := range []expression.ConceptID{associatedMorphology, findingSite, causativeAgent, severity, hasDisposition} {
		f.primitive(attr, root)
	}

	f.primitive(clinicalFinding, root)
	f.primitive(disease, clinicalFinding)
	f.defined(fractureOfFemur, expression.ConceptDefinition{
		Groups: []expression.Group{expression.NewGroup(
			expression.ConceptAttribute(associatedMorphology, fracture),
			expression.ConceptAttribute(findingSite, boneOfFemur),
		)},
	}, disease)

	f.concepts[severeFinding] = fakeConcept{
		primitive: true,
		parents:   []expression.ConceptID{disease},
		definition: expression.ConceptDefinition{
			Groups: []expression.Group{expression.NewGroup(expression.ConceptAttribute(severity, severe))},
		},
	}

	f.primitive(morphologicAbnormality, root)
	f.primitive(fracture, morphologicAbnormality)
	f.primitive(boneStructure, root)
	f.primitive(boneOfFemur, boneStructure)
	f.primitive(lungStructure, root)
	f.primitive(severe, root)
	f.primitive(allergenDisposition, root)

	f.primitive(substance, root)
	f.primitive(dustAllergen, substance)
	f.primitive(contactAllergen, substance)
	f.defined(allergenicSubstance, expression.ConceptDefinition{
		UngroupedAttributes: []expression.Attribute{expression.ConceptAttribute(hasDisposition, allergenDisposition)},
	}, substance)

	return f
}

func concepts(ids ...expression.ConceptID) []expression.Concept {
	out := make([]expression.Concept, len(ids))
	for i, id := range ids {
		out[i] = expression.NewConcept(id, "")
	}
	return out
}

func attr(name, value expression.ConceptID) expression.Attribute {
	return expression.ConceptAttribute(name, value)
}

func group(attrs ...expression.Attribute) expression.Group {
	return expression.NewGroup(attrs...)
}

func sourceOf(groups []expression.Group, ungrouped ...expression.Attribute) Source {
	return Source{Definition: expression.ConceptDefinition{Groups: groups, UngroupedAttributes: ungrouped}}
}

func canonicalKey(d expression.ConceptDefinition) string {
	return expression.CanonicalDefinition(d).Key()
}
