package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures surfaced to the CLI.
type ErrorType string

const (
	ErrorTypeManifest   ErrorType = "manifest"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeProvider   ErrorType = "provider"
	ErrorTypeAdapter    ErrorType = "adapter"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
)

// AppError is a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewManifestError(path, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeManifest,
		Message: fmt.Sprintf("manifest %s: %s", path, message),
		Context: map[string]interface{}{"path": path},
	}
}

func NewParseError(source string, line int, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeParse,
		Message: fmt.Sprintf("%s:%d: %s", source, line, message),
		Context: map[string]interface{}{"source": source, "line": line},
	}
}

func NewProviderError(provider string, status int, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeProvider,
		Message: fmt.Sprintf("%s request failed (status %d): %s", provider, status, message),
		Context: map[string]interface{}{"provider": provider, "status": status},
	}
}

func NewAdapterError(adapter, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeAdapter,
		Message: fmt.Sprintf("%s adapter: %s", adapter, message),
		Context: map[string]interface{}{"adapter": adapter},
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

func NewConfigError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: message,
	}
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err wraps an AppError of type t.
func IsType(err error, t ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == t
}
