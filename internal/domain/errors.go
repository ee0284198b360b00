package domain

import (
	"fmt"
	"strings"
)

// ValidationError describes one violated field rule.
type ValidationError struct {
	FieldPath string `json:"fieldPath"`
	Message   string `json:"message"`
}

// ValidationErrors is the complete set of violations for one payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v))
	for _, e := range v {
		if e.FieldPath == "" {
			parts = append(parts, e.Message)
			continue
		}
		parts = append(parts, e.FieldPath+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the violated field paths in order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.FieldPath
	}
	return out
}

// StorageError reports a persistence failure other than "file absent".
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CorruptConfigError reports a persisted document that exists but cannot be used.
// Either Cause (parse failure) or Violations (schema failure) is set.
type CorruptConfigError struct {
	Path       string
	Cause      error
	Violations ValidationErrors
}

func (e *CorruptConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration at %s is damaged: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("configuration at %s is damaged: %v", e.Path, e.Violations)
}

func (e *CorruptConfigError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Violations
}
