// Package policy validates and normalizes the user's blocking policy.
// Each Configuration field has one FieldRule; Validate runs all of them.
package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// timePattern matches a zero-padded 24-hour HH:mm time of day.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// FieldRule checks one top-level field of a raw payload.
type FieldRule struct {
	// Field is the JSON name of the field.
	Field string

	// Required reports a missing (or null) field as a violation.
	Required bool

	// Check validates a present value and returns its normalized form.
	Check func(field string, value any) (any, []domain.ValidationError)

	// Assign stores the normalized value on the configuration.
	Assign func(cfg *domain.Configuration, value any)
}

// TimeOfDayRule requires an HH:mm string.
func TimeOfDayRule(field string, assign func(*domain.Configuration, string)) FieldRule {
	return FieldRule{
		Field:    field,
		Required: true,
		Check: func(field string, value any) (any, []domain.ValidationError) {
			s, ok := value.(string)
			if !ok {
				return nil, violation(field, "must be a string in format HH:mm (e.g., 22:00)")
			}
			if !timePattern.MatchString(s) {
				return nil, violation(field, "must be in format HH:mm (e.g., 22:00)")
			}
			return s, nil
		},
		Assign: func(cfg *domain.Configuration, value any) {
			assign(cfg, value.(string))
		},
	}
}

// NonEmptyListRule requires an array of strings with at least one non-blank entry.
// Entries are trimmed and blank entries dropped, keeping order.
func NonEmptyListRule(field, noun string, assign func(*domain.Configuration, []string)) FieldRule {
	return FieldRule{
		Field:    field,
		Required: true,
		Check: func(field string, value any) (any, []domain.ValidationError) {
			items, ok := asList(value)
			if !ok {
				return nil, violation(field, "must be an array of strings")
			}

			var errs []domain.ValidationError
			out := make([]string, 0, len(items))
			for i, item := range items {
				s, ok := item.(string)
				if !ok {
					errs = append(errs, domain.ValidationError{
						FieldPath: fmt.Sprintf("%s[%d]", field, i),
						Message:   "must be a string",
					})
					continue
				}
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			if len(out) == 0 {
				errs = append(errs, domain.ValidationError{
					FieldPath: field,
					Message:   fmt.Sprintf("at least one %s is required", noun),
				})
			}
			if len(errs) > 0 {
				return nil, errs
			}
			return out, nil
		},
		Assign: func(cfg *domain.Configuration, value any) {
			assign(cfg, value.([]string))
		},
	}
}

// IntRangeRule requires an integer within [lo, hi]. Absent values are allowed unless required.
func IntRangeRule(field string, lo, hi int, required bool, assign func(*domain.Configuration, int)) FieldRule {
	return FieldRule{
		Field:    field,
		Required: required,
		Check: func(field string, value any) (any, []domain.ValidationError) {
			n, isNumber, isInt := asInteger(value)
			if !isNumber {
				return nil, violation(field, "must be an integer")
			}
			if !isInt {
				return nil, violation(field, "must be a whole number")
			}
			if n < float64(lo) || n > float64(hi) {
				return nil, violation(field, fmt.Sprintf("must be between %d and %d", lo, hi))
			}
			return int(n), nil
		},
		Assign: func(cfg *domain.Configuration, value any) {
			assign(cfg, value.(int))
		},
	}
}

// BoolRule requires a JSON boolean.
func BoolRule(field string, assign func(*domain.Configuration, bool)) FieldRule {
	return FieldRule{
		Field:    field,
		Required: true,
		Check: func(field string, value any) (any, []domain.ValidationError) {
			b, ok := value.(bool)
			if !ok {
				return nil, violation(field, "must be a boolean")
			}
			return b, nil
		},
		Assign: func(cfg *domain.Configuration, value any) {
			assign(cfg, value.(bool))
		},
	}
}

func violation(field, message string) []domain.ValidationError {
	return []domain.ValidationError{{FieldPath: field, Message: message}}
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// asInteger reports the numeric value, whether value is a number at all,
// and whether it is integral.
func asInteger(value any) (float64, bool, bool) {
	var f float64
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return float64(i), true, true
		}
		parsed, err := v.Float64()
		if err != nil {
			return 0, false, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		return float64(v), true, true
	case int8:
		return float64(v), true, true
	case int16:
		return float64(v), true, true
	case int32:
		return float64(v), true, true
	case int64:
		return float64(v), true, true
	case uint:
		return float64(v), true, true
	case uint8:
		return float64(v), true, true
	case uint16:
		return float64(v), true, true
	case uint32:
		return float64(v), true, true
	case uint64:
		return float64(v), true, true
	default:
		return 0, false, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	return f, true, f == math.Trunc(f)
}
