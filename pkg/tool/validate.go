package tool

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/llmspell/llmspell/pkg/errs"
)

// ValidateAgainstSchema implements spec.md §4.3's validate_input contract:
// reject missing required parameters, type mismatches, constraint
// violations, returning the first violation found with its field and reason.
// Concrete tools call this from their ValidateInput before doing anything
// domain-specific.
func ValidateAgainstSchema(schema Schema, input Input) error {
	for _, p := range schema.Parameters {
		raw, present := input[p.Name]
		if !present {
			if p.Required {
				return errs.Validation(p.Name, "required parameter is missing")
			}
			continue
		}
		if err := validateOne(p, raw); err != nil {
			return err
		}
	}
	for name := range input {
		if _, known := schema.byName()[name]; !known {
			return errs.Validation(name, "unknown parameter")
		}
	}
	return nil
}

func validateOne(p Parameter, raw json.RawMessage) error {
	switch p.Type {
	case TypeString, TypeEnum:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Validation(p.Name, "expected a string")
		}
		if p.Constraint.MinLength != nil && len(s) < *p.Constraint.MinLength {
			return errs.Validation(p.Name, fmt.Sprintf("must be at least %d characters", *p.Constraint.MinLength))
		}
		if p.Constraint.MaxLength != nil && len(s) > *p.Constraint.MaxLength {
			return errs.Validation(p.Name, fmt.Sprintf("must be at most %d characters", *p.Constraint.MaxLength))
		}
		if p.Constraint.Pattern != "" {
			re, err := regexp.Compile(p.Constraint.Pattern)
			if err != nil {
				return errs.Validation(p.Name, "invalid constraint pattern")
			}
			if !re.MatchString(s) {
				return errs.Validation(p.Name, "does not match required pattern")
			}
		}
		if p.Type == TypeEnum && len(p.Constraint.Enum) > 0 {
			if !containsStr(p.Constraint.Enum, s) {
				return errs.Validation(p.Name, "value is not one of the allowed enum values")
			}
		}
	case TypeNumber, TypeInteger:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return errs.Validation(p.Name, "expected a number")
		}
		if p.Type == TypeInteger && f != float64(int64(f)) {
			return errs.Validation(p.Name, "expected an integer")
		}
		if p.Constraint.MinValue != nil && f < *p.Constraint.MinValue {
			return errs.Validation(p.Name, fmt.Sprintf("must be >= %v", *p.Constraint.MinValue))
		}
		if p.Constraint.MaxValue != nil && f > *p.Constraint.MaxValue {
			return errs.Validation(p.Name, fmt.Sprintf("must be <= %v", *p.Constraint.MaxValue))
		}
	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return errs.Validation(p.Name, "expected a boolean")
		}
	case TypeArray:
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return errs.Validation(p.Name, "expected an array")
		}
		if p.Constraint.MinLength != nil && len(arr) < *p.Constraint.MinLength {
			return errs.Validation(p.Name, fmt.Sprintf("must have at least %d elements", *p.Constraint.MinLength))
		}
		if p.Constraint.MaxLength != nil && len(arr) > *p.Constraint.MaxLength {
			return errs.Validation(p.Name, fmt.Sprintf("must have at most %d elements", *p.Constraint.MaxLength))
		}
		if p.ElementType != "" {
			for _, el := range arr {
				if err := validateOne(Parameter{Name: p.Name, Type: p.ElementType}, el); err != nil {
					return err
				}
			}
		}
	case TypeObject:
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return errs.Validation(p.Name, "expected an object")
		}
	}
	return nil
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ValidateSchemaInvariants checks the structural invariants from spec.md §3:
// a parameter's constraint set is internally consistent, required parameters
// carry no default, and parameter names are unique. Called at registration
// time, not per-request.
func ValidateSchemaInvariants(schema Schema) error {
	seen := make(map[string]bool, len(schema.Parameters))
	for _, p := range schema.Parameters {
		if seen[p.Name] {
			return fmt.Errorf("tool schema: duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Required && p.Default != nil {
			return fmt.Errorf("tool schema: required parameter %q must not declare a default", p.Name)
		}
		if p.Constraint.MinValue != nil && p.Constraint.MaxValue != nil && *p.Constraint.MinValue > *p.Constraint.MaxValue {
			return fmt.Errorf("tool schema: parameter %q has MinValue > MaxValue", p.Name)
		}
		if p.Constraint.MinLength != nil && p.Constraint.MaxLength != nil && *p.Constraint.MinLength > *p.Constraint.MaxLength {
			return fmt.Errorf("tool schema: parameter %q has MinLength > MaxLength", p.Name)
		}
	}
	return nil
}
