// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema declares the output contract for model extractions
// and validates candidate artifacts against it. The contract is data,
// not code: the prompt renderer and the validator both walk the same
// field list, so the model is always corrected against exactly the
// rules it was instructed with.
package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// FieldType classifies the JSON shape a field must carry.
type FieldType string

const (
	TypeBool        FieldType = "bool"
	TypeEnum        FieldType = "enum"
	TypeInt         FieldType = "int"
	TypeText        FieldType = "text"
	TypeStringArray FieldType = "string_array"
	TypeObjectArray FieldType = "object_array"
)

// NotApplicable is the exact literal an inactive conditional field must
// carry. Free-text stand-ins ("N/A", "none") are violations; a single
// spelling keeps the consolidated table filterable.
const NotApplicable = "Not applicable"

// Violation rules, stable identifiers reported alongside each finding.
const (
	RuleMissingRequired     = "missing-required"
	RuleWrongType           = "wrong-type"
	RuleOutOfDomain         = "value-out-of-domain"
	RuleConditionalMismatch = "conditional-mismatch"
)

// Condition gates a conditional field on another field's value.
type Condition struct {
	Field  string
	Equals any
}

// Field is one entry of a Contract.
type Field struct {
	Name string
	Type FieldType

	// Required marks the field unconditionally mandatory.
	Required bool

	// RequiredIf makes the field mandatory when the condition holds.
	// When it does not hold, the field must be NotApplicable (text,
	// enum) or empty (arrays) if present at all.
	RequiredIf *Condition

	// Enum lists the allowed values for TypeEnum fields.
	Enum []string

	// Min and Max bound TypeInt fields inclusively. Both zero means
	// unbounded.
	Min, Max int

	// ObjectKeys lists the string keys each element of a
	// TypeObjectArray field must carry.
	ObjectKeys []string

	// Desc is the field description rendered into the prompt.
	Desc string
}

// Violation is one contract breach found in a candidate artifact.
type Violation struct {
	Field  string
	Rule   string
	Detail string
}

// String renders the violation the way the corrective prompt lists it.
func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Field, v.Detail, v.Rule)
}

// Contract is an ordered list of field rules.
type Contract struct {
	Fields []Field
}

// FieldNames returns the contract's field names in declaration order.
func (c Contract) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks a decoded artifact against the contract and returns
// every violation found, in contract field order. A nil return means
// the artifact conforms. Keys the contract does not declare are
// ignored.
func (c Contract) Validate(obj map[string]any) []Violation {
	var violations []Violation
	for _, f := range c.Fields {
		violations = append(violations, checkField(f, obj)...)
	}
	return violations
}

func checkField(f Field, obj map[string]any) []Violation {
	value, present := obj[f.Name]

	switch {
	case f.RequiredIf != nil:
		if conditionHolds(*f.RequiredIf, obj) {
			if !present {
				return []Violation{{
					Field:  f.Name,
					Rule:   RuleMissingRequired,
					Detail: fmt.Sprintf("required when %s is %v", f.RequiredIf.Field, f.RequiredIf.Equals),
				}}
			}
			return checkValue(f, value)
		}
		if !present {
			return nil
		}
		return checkInactive(f, value)

	case f.Required:
		if !present {
			return []Violation{{Field: f.Name, Rule: RuleMissingRequired, Detail: "field is required"}}
		}
		return checkValue(f, value)

	default:
		if !present {
			return nil
		}
		return checkValue(f, value)
	}
}

// conditionHolds evaluates a gate. A missing or wrongly typed gate
// field counts as not holding; the gate field's own rules report that
// problem separately.
func conditionHolds(cond Condition, obj map[string]any) bool {
	value, ok := obj[cond.Field]
	if !ok {
		return false
	}
	switch want := cond.Equals.(type) {
	case bool:
		got, ok := value.(bool)
		return ok && got == want
	case string:
		got, ok := value.(string)
		return ok && got == want
	default:
		return false
	}
}

// checkInactive validates a conditional field whose gate does not hold.
func checkInactive(f Field, value any) []Violation {
	cond := f.RequiredIf
	switch f.Type {
	case TypeEnum, TypeText:
		if s, ok := value.(string); ok && s == NotApplicable {
			return nil
		}
		return []Violation{{
			Field:  f.Name,
			Rule:   RuleConditionalMismatch,
			Detail: fmt.Sprintf("must be %q when %s is not %v", NotApplicable, cond.Field, cond.Equals),
		}}
	case TypeStringArray, TypeObjectArray:
		if arr, ok := value.([]any); ok && len(arr) == 0 {
			return nil
		}
		return []Violation{{
			Field:  f.Name,
			Rule:   RuleConditionalMismatch,
			Detail: fmt.Sprintf("must be an empty list when %s is not %v", cond.Field, cond.Equals),
		}}
	default:
		return []Violation{{
			Field:  f.Name,
			Rule:   RuleConditionalMismatch,
			Detail: fmt.Sprintf("must be omitted when %s is not %v", cond.Field, cond.Equals),
		}}
	}
}

// checkValue validates an active field's value against its type rules.
func checkValue(f Field, value any) []Violation {
	switch f.Type {
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return []Violation{{Field: f.Name, Rule: RuleWrongType, Detail: "expected true or false"}}
		}

	case TypeEnum:
		s, ok := value.(string)
		if !ok {
			return []Violation{{Field: f.Name, Rule: RuleWrongType, Detail: "expected a string"}}
		}
		if !slices.Contains(f.Enum, s) {
			return []Violation{{
				Field:  f.Name,
				Rule:   RuleOutOfDomain,
				Detail: fmt.Sprintf("%q is not one of: %s", s, strings.Join(f.Enum, ", ")),
			}}
		}

	case TypeInt:
		n, ok := asInt(value)
		if !ok {
			return []Violation{{Field: f.Name, Rule: RuleWrongType, Detail: "expected an integer"}}
		}
		if (f.Min != 0 || f.Max != 0) && (n < f.Min || n > f.Max) {
			return []Violation{{
				Field:  f.Name,
				Rule:   RuleOutOfDomain,
				Detail: fmt.Sprintf("%d is outside %d-%d", n, f.Min, f.Max),
			}}
		}

	case TypeText:
		if _, ok := value.(string); !ok {
			return []Violation{{Field: f.Name, Rule: RuleWrongType, Detail: "expected a string"}}
		}

	case TypeStringArray:
		arr, ok := value.([]any)
		if !ok {
			return []Violation{{Field: f.Name, Rule: RuleWrongType, Detail: "expected a list of strings"}}
		}
		var violations []Violation
		for i, item := range arr {
			if _, ok := item.(string); !ok {
				violations = append(violations, Violation{
					Field:  fmt.Sprintf("%s[%d]", f.Name, i),
					Rule:   RuleWrongType,
					Detail: "expected a string",
				})
			}
		}
		return violations

	case TypeObjectArray:
		arr, ok := value.([]any)
		if !ok {
			return []Violation{{Field: f.Name, Rule: RuleWrongType, Detail: "expected a list of objects"}}
		}
		var violations []Violation
		for i, item := range arr {
			obj, ok := item.(map[string]any)
			if !ok {
				violations = append(violations, Violation{
					Field:  fmt.Sprintf("%s[%d]", f.Name, i),
					Rule:   RuleWrongType,
					Detail: "expected an object",
				})
				continue
			}
			for _, key := range f.ObjectKeys {
				kv, present := obj[key]
				if !present {
					violations = append(violations, Violation{
						Field:  fmt.Sprintf("%s[%d].%s", f.Name, i, key),
						Rule:   RuleMissingRequired,
						Detail: "key is required",
					})
					continue
				}
				if _, ok := kv.(string); !ok {
					violations = append(violations, Violation{
						Field:  fmt.Sprintf("%s[%d].%s", f.Name, i, key),
						Rule:   RuleWrongType,
						Detail: "expected a string",
					})
				}
			}
		}
		return violations
	}
	return nil
}

// asInt accepts the numeric shapes a decoded JSON document can carry.
// Fractional values are not integers.
func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
