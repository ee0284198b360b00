package policy

import (
	"bytes"
	"encoding/json"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// Field names of the persisted Configuration document.
const (
	FieldQuietStart         = "quietStart"
	FieldQuietEnd           = "quietEnd"
	FieldBlockedProcesses   = "blockedProcesses"
	FieldMessages           = "messages"
	FieldScreenshotInterval = "screenshotIntervalMinutes"
	FieldDeterrentEnabled   = "deterrentEnabled"
)

// Screenshot interval bounds in minutes, inclusive.
const (
	MinScreenshotInterval = 1
	MaxScreenshotInterval = 60
)

// Rules returns the rule table in document field order.
func Rules() []FieldRule {
	return []FieldRule{
		TimeOfDayRule(FieldQuietStart, func(c *domain.Configuration, v string) { c.QuietStart = v }),
		TimeOfDayRule(FieldQuietEnd, func(c *domain.Configuration, v string) { c.QuietEnd = v }),
		NonEmptyListRule(FieldBlockedProcesses, "blocked process", func(c *domain.Configuration, v []string) {
			c.BlockedProcesses = v
		}),
		NonEmptyListRule(FieldMessages, "message", func(c *domain.Configuration, v []string) {
			c.Messages = v
		}),
		IntRangeRule(FieldScreenshotInterval, MinScreenshotInterval, MaxScreenshotInterval, false,
			func(c *domain.Configuration, v int) { c.ScreenshotIntervalMinutes = &v }),
		BoolRule(FieldDeterrentEnabled, func(c *domain.Configuration, v bool) { c.DeterrentEnabled = v }),
	}
}

// Validate checks raw against every rule and returns either the normalized
// Configuration or the complete list of violations. Unknown fields are ignored.
func Validate(raw any) (*domain.Configuration, domain.ValidationErrors) {
	obj, ok := toObject(raw)
	if !ok {
		return nil, domain.ValidationErrors{{FieldPath: "", Message: "must be a JSON object"}}
	}

	var errs domain.ValidationErrors
	cfg := &domain.Configuration{}
	for _, rule := range Rules() {
		value, present := obj[rule.Field]
		if !present || value == nil {
			if rule.Required {
				errs = append(errs, domain.ValidationError{FieldPath: rule.Field, Message: "is required"})
			}
			continue
		}

		normalized, violations := rule.Check(rule.Field, value)
		if len(violations) > 0 {
			errs = append(errs, violations...)
			continue
		}
		rule.Assign(cfg, normalized)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// toObject turns any caller-supplied shape into a generic JSON object.
func toObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case string:
		return nil, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	return decodeObject(data)
}

func decodeObject(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	// Trailing garbage after the object is not a valid document.
	if dec.More() {
		return nil, false
	}
	obj, ok := value.(map[string]any)
	return obj, ok
}
