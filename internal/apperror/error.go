package apperror

import (
	"errors"
	"strings"
)

// Kind tags an error so callers can branch on it without matching concrete types.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindTransient    Kind = "transient"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindStorage      Kind = "storage"
	KindPoolCreation Kind = "pool_creation"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Wrap tags err with kind. The message is what callers outside the core see.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validation builds a validation error listing every offending field.
func Validation(fields ...FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "invalid attendance entry",
		Fields:  fields,
	}
}

// KindOf returns the kind of the outermost tagged error in err's chain.
// Untagged errors are reported as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindStorage
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns the field errors carried by a validation error, if any.
func FieldsOf(err error) []FieldError {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
