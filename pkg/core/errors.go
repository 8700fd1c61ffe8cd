package core

import "fmt"

// Validation error codes. Validation failures are always local and
// non-fatal: the offending node or input is skipped and processing
// continues with the remaining data.
const (
	ErrUnknownPreset   = "unknown_preset"
	ErrInvalidField    = "invalid_field"
	ErrUnknownLocation = "unknown_location"
	ErrOutOfRange      = "out_of_range"
	ErrMalformedNode   = "malformed_node"
)

// ValidationError describes a rejected input. Code is one of the Err*
// constants; Field names the offending field or key where that helps.
type ValidationError struct {
	Code   string
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Validationf builds a ValidationError with a formatted detail message.
func Validationf(code, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Detail: fmt.Sprintf(format, args...)}
}
