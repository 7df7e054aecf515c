// Package validation provides request and release data validation for the normal form service.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
	"github.com/giygas/snomed-normalform/terminology"
)

// DefaultMaxExpressionDepth bounds nested expression values when none is configured
const DefaultMaxExpressionDepth = 8

// Number of example ids kept per data quality check
const maxReportedIDs = 10

// ErrInvalidExpression wraps every rejection of a request expression
var ErrInvalidExpression = errors.New("invalid expression")

// Verhoeff dihedral group D5 multiplication and position permutation tables
var (
	verhoeffD = [10][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffP = [8][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	maxDepth int
}

// NewDataValidator creates a new data validator. maxDepth bounds nested expression values,
// values <= 0 select DefaultMaxExpressionDepth.
func NewDataValidator(maxDepth int) interfaces.DataValidator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxExpressionDepth
	}
	return &DataValidatorImpl{maxDepth: maxDepth}
}

// ValidateConceptID validates SNOMED CT concept identifiers.
// An SCTID is 6 to 18 digits without leading zero; the second and third
// last digits are the partition and the last digit is a Verhoeff check digit.
func (v *DataValidatorImpl) ValidateConceptID(id expression.ConceptID) error {
	s := string(id)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("concept id cannot be empty")
	}

	if len(s) < 6 || len(s) > 18 {
		return fmt.Errorf("concept id %q should have between 6 and 18 digits", s)
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("concept id %q contains invalid characters. Only numeric characters are allowed", s)
		}
	}

	if s[0] == '0' {
		return fmt.Errorf("concept id %q cannot start with 0", s)
	}

	// 00 short format concept, 10 long format (extension) concept
	partition := s[len(s)-3 : len(s)-1]
	if partition != "00" && partition != "10" {
		return fmt.Errorf("identifier %q is not a concept id (partition %s)", s, partition)
	}

	if !verhoeffValid(s) {
		return fmt.Errorf("concept id %q has an invalid check digit", s)
	}

	return nil
}

// verhoeffValid checks a digit string whose last digit is its Verhoeff check digit
func verhoeffValid(digits string) bool {
	c := 0
	for i := 0; i < len(digits); i++ {
		digit := int(digits[len(digits)-1-i] - '0')
		c = verhoeffD[c][verhoeffP[i%8][digit]]
	}
	return c == 0
}

// ValidateExpression checks the structure of a request expression before normalization
func (v *DataValidatorImpl) ValidateExpression(expr expression.Expression) error {
	if err := v.validateExpression(expr, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}
	return nil
}

func (v *DataValidatorImpl) validateExpression(expr expression.Expression, depth int) error {
	if depth > v.maxDepth {
		return fmt.Errorf("nested expressions exceed maximum depth of %d", v.maxDepth)
	}

	if len(expr.FocusConcepts) == 0 {
		return fmt.Errorf("expression has no focus concept")
	}
	for _, c := range expr.FocusConcepts {
		if err := v.ValidateConceptID(c.ID); err != nil {
			return err
		}
	}

	for i, g := range expr.Definition.Groups {
		if g.IsEmpty() {
			return fmt.Errorf("group %d is empty", i+1)
		}
		if err := v.validateAttributes(g.Attributes, depth); err != nil {
			return fmt.Errorf("group %d: %w", i+1, err)
		}
	}

	return v.validateAttributes(expr.Definition.UngroupedAttributes, depth)
}

func (v *DataValidatorImpl) validateAttributes(attrs []expression.Attribute, depth int) error {
	for _, a := range attrs {
		if a.Name.IsZero() {
			return fmt.Errorf("attribute without name")
		}
		if err := v.ValidateConceptID(a.Name.ID); err != nil {
			return err
		}

		switch value := a.Value.(type) {
		case expression.ConceptValue:
			if err := v.ValidateConceptID(value.Concept.ID); err != nil {
				return err
			}
		case expression.ExpressionValue:
			if err := v.validateExpression(value.Expression, depth+1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("attribute %s has no value", a.Name.ID)
		}
	}
	return nil
}

// ReportDataQuality inspects a loaded release for structural problems.
// Nothing here prevents the release from being served; findings are logged by the caller.
func (v *DataValidatorImpl) ReportDataQuality(t interfaces.Terminology) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		ConceptsWithoutSuperTypesIDs:        []expression.ConceptID{},
		DanglingRelationshipTargetIDs:       []expression.ConceptID{},
		DefinedConceptsWithoutDefinitionIDs: []expression.ConceptID{},
	}
	if t == nil {
		return report
	}

	for _, id := range t.ConceptIDs() {
		// Check 1: every concept except the root needs a supertype
		if id != terminology.RootConceptID {
			parents, err := t.SuperTypes(id)
			if err == nil && len(parents) == 0 {
				report.ConceptsWithoutSuperTypes++
				if len(report.ConceptsWithoutSuperTypesIDs) < maxReportedIDs {
					report.ConceptsWithoutSuperTypesIDs = append(report.ConceptsWithoutSuperTypesIDs, id)
				}
			}
		}

		// Check 2: fully defined concepts should carry defining attributes
		primitive, err := t.IsPrimitive(id)
		if err != nil || primitive {
			continue
		}
		def, err := t.StatedAttributes(id)
		if err == nil && def.IsEmpty() {
			report.DefinedConceptsWithoutDefinition++
			if len(report.DefinedConceptsWithoutDefinitionIDs) < maxReportedIDs {
				report.DefinedConceptsWithoutDefinitionIDs = append(report.DefinedConceptsWithoutDefinitionIDs, id)
			}
		}
	}

	// Check 3: relationships pointing outside the release
	dangling := t.DanglingTargets()
	report.DanglingRelationshipTargets = len(dangling)
	report.DanglingRelationshipTargetIDs = append(report.DanglingRelationshipTargetIDs,
		dangling[:min(len(dangling), maxReportedIDs)]...)

	if report.ConceptsWithoutSuperTypes > 0 || report.DanglingRelationshipTargets > 0 {
		logging.Warn("Hierarchy inconsistencies detected",
			"without_supertypes", report.ConceptsWithoutSuperTypes,
			"dangling_targets", report.DanglingRelationshipTargets,
		)
	}

	return report
}
