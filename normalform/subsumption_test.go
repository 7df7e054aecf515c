package normalform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
)

func TestCompareConcepts(t *testing.T) {
	tester := NewSubsumptionTester(clinicalTerminology())

	tests := []struct {
		name string
		a, b expression.ConceptID
		want Relation
	}{
		{"same concept", substance, substance, Equal},
		{"parent subsumes child", substance, dustAllergen, Subsumes},
		{"child subsumed by parent", dustAllergen, substance, SubsumedBy},
		{"ancestor subsumes descendant", clinicalFinding, fractureOfFemur, Subsumes},
		{"siblings are disjoint", dustAllergen, contactAllergen, Disjoint},
		{"unrelated branches", lungStructure, severe, Disjoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Compare(expression.NewConceptValue(expression.NewConcept(tt.a, "")),
				expression.NewConceptValue(expression.NewConcept(tt.b, "")))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareExpressions(t *testing.T) {
	tester := NewSubsumptionTester(clinicalTerminology())

	refinedDust := expression.NewExpressionValue(expression.Expression{
		FocusConcepts: concepts(dustAllergen),
		Definition: expression.ConceptDefinition{
			UngroupedAttributes: []expression.Attribute{attr(hasDisposition, allergenDisposition)},
		},
	})
	refinedDustOther := expression.NewExpressionValue(expression.Expression{
		FocusConcepts: concepts(dustAllergen),
		Definition: expression.ConceptDefinition{
			UngroupedAttributes: []expression.Attribute{attr(hasDisposition, severe)},
		},
	})
	bareSubstance := expression.NewExpressionValue(expression.Expression{FocusConcepts: concepts(substance)})
	substanceValue := expression.NewConceptValue(expression.NewConcept(substance, ""))
	contactValue := expression.NewConceptValue(expression.NewConcept(contactAllergen, ""))
	dustValue := expression.NewConceptValue(expression.NewConcept(dustAllergen, ""))

	tests := []struct {
		name   string
		v1, v2 expression.AttributeValue
		want   Relation
	}{
		{"structurally equal expressions", refinedDust, refinedDust, Equal},
		{"same focus different refinement", refinedDust, refinedDustOther, Disjoint},
		{"concept subsumes refined descendant", substanceValue, refinedDust, Subsumes},
		{"refined descendant subsumed by concept", refinedDust, substanceValue, SubsumedBy},
		{"refinement of the concept itself", dustValue, refinedDust, Subsumes},
		{"unrelated concept", contactValue, refinedDust, Disjoint},
		{"unrefined expression compares as its focus", bareSubstance, dustValue, Subsumes},
		{"expression focus relation", bareSubstance, refinedDust, Subsumes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Compare(tt.v1, tt.v2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestCompareUnknownConcept(t *testing.T) {
	tester := NewSubsumptionTester(clinicalTerminology())

	_, err := tester.CompareConcepts(substance, "999999999")
	require.Error(t, err)

	var lookup *LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, expression.ConceptID("999999999"), lookup.ConceptID)
	assert.True(t, errors.Is(err, interfaces.ErrConceptNotFound))
}

func TestRelationInverse(t *testing.T) {
	assert.Equal(t, SubsumedBy, Subsumes.Inverse())
	assert.Equal(t, Subsumes, SubsumedBy.Inverse())
	assert.Equal(t, Equal, Equal.Inverse())
	assert.Equal(t, Disjoint, Disjoint.Inverse())
	assert.Equal(t, "subsumed-by", SubsumedBy.String())
}
