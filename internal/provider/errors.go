package provider

import (
	"errors"
	"fmt"
)

// ValidationError reports contact data that can never be delivered to
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validation failures shared by real and substitute providers
var (
	ErrInvalidEmail = &ValidationError{Field: "email", Reason: "invalid email address"}
	ErrInvalidPhone = &ValidationError{Field: "phone", Reason: "invalid phone number"}
)

// ErrNoResults is returned when the SMS gateway answers with an empty result list
var ErrNoResults = errors.New("no results returned")

// SendError is a failed delivery attempt. Reason is what gets recorded.
type SendError struct {
	Provider  string
	Reason    string
	Transient bool
	Err       error
}

func (e *SendError) Error() string {
	return e.Reason
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// InitError means a real provider could not be constructed. It aborts a dispatch.
type InitError struct {
	Provider string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s provider: %v", e.Provider, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a send failure that might succeed on retry
func IsTransient(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Transient
}
