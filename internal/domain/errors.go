package domain

import (
	"errors"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when an email is already registered.
	ErrConflict = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown emails, wrong passwords and rejected tokens alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when no user matches the given identifier.
	ErrNotFound = errors.New("user not found")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when no field failed, so callers can build errors incrementally.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Missing builds a validation error for absent required fields.
func Missing(fields ...string) *ValidationError {
	verr := &ValidationError{}
	for _, f := range fields {
		verr.Add(f, "is required")
	}
	return verr
}
