package expression

// AttributeValue is the closed sum of ConceptValue and ExpressionValue.
// Consumers switch on the concrete type; no other implementations exist.
type AttributeValue interface {
	// Key is the canonical form used for equality and ordering
	Key() string
	isAttributeValue()
}

// ConceptValue is an attribute value naming a single concept
type ConceptValue struct {
	Concept Concept
}

// ExpressionValue is a nested refinement used as an attribute value
type ExpressionValue struct {
	Expression Expression
}

// Compile-time checks for the sum type members
var (
	_ AttributeValue = ConceptValue{}
	_ AttributeValue = ExpressionValue{}
)

// NewConceptValue wraps a concept as an attribute value
func NewConceptValue(c Concept) ConceptValue {
	return ConceptValue{Concept: c}
}

// NewExpressionValue wraps a nested expression as an attribute value
func NewExpressionValue(e Expression) ExpressionValue {
	return ExpressionValue{Expression: e}
}

func (v ConceptValue) Key() string { return string(v.Concept.ID) }

func (v ConceptValue) isAttributeValue() {}

func (v ExpressionValue) Key() string { return "(" + v.Expression.Key() + ")" }

func (v ExpressionValue) isAttributeValue() {}

// ValuesEqual reports structural equality of two attribute values
func ValuesEqual(a, b AttributeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// canonicalValue returns the value with any nested expression in canonical order
func canonicalValue(v AttributeValue) AttributeValue {
	switch val := v.(type) {
	case ExpressionValue:
		return ExpressionValue{Expression: Canonical(val.Expression)}
	default:
		return v
	}
}
