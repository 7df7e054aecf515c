package expression

import (
	"encoding/json"
	"errors"
	"fmt"
)

// attributeJSON is the wire shape of an attribute: exactly one of Concept or Expression is set
type attributeJSON struct {
	Name  Concept   `json:"name"`
	Value valueJSON `json:"value"`
}

type valueJSON struct {
	Concept    *Concept    `json:"concept,omitempty"`
	Expression *Expression `json:"expression,omitempty"`
}

var errEmptyValue = errors.New("attribute value must hold a concept or an expression")

// MarshalJSON encodes the value as {"concept":...} or {"expression":...}
func (a Attribute) MarshalJSON() ([]byte, error) {
	out := attributeJSON{Name: a.Name}
	switch v := a.Value.(type) {
	case ConceptValue:
		c := v.Concept
		out.Value.Concept = &c
	case ExpressionValue:
		e := v.Expression
		out.Value.Expression = &e
	case nil:
		return nil, fmt.Errorf("attribute %s: %w", a.Name.ID, errEmptyValue)
	default:
		return nil, fmt.Errorf("attribute %s: unsupported value type %T", a.Name.ID, a.Value)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var in attributeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch {
	case in.Value.Concept != nil && in.Value.Expression != nil:
		return fmt.Errorf("attribute %s: value holds both a concept and an expression", in.Name.ID)
	case in.Value.Concept != nil:
		a.Value = ConceptValue{Concept: *in.Value.Concept}
	case in.Value.Expression != nil:
		a.Value = ExpressionValue{Expression: *in.Value.Expression}
	default:
		return fmt.Errorf("attribute %s: %w", in.Name.ID, errEmptyValue)
	}
	a.Name = in.Name
	return nil
}
