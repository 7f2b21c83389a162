// Package errors provides the error taxonomy for the infer pipeline.
// Configuration problems are fatal and abort a run before any task executes;
// gateway and input errors are recovered per record and reported through the
// output sinks.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are the standard library helpers, re-exported so callers need
// only this package.
var (
	Is = errors.Is
	As = errors.As
)

// Join returns an error that wraps the given errors, discarding nils.
var Join = errors.Join

// Common sentinel errors for the infer system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig indicates a missing or malformed rule set or setting
	ErrConfig = errors.New("configuration error")

	// ErrGateway indicates a failed search backend call
	ErrGateway = errors.New("gateway error")

	// ErrGatewayUnavailable indicates the search backend could not be reached or failed server-side
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrMalformedInput indicates an input record could not be parsed
	ErrMalformedInput = errors.New("malformed input")

	// ErrSinkClosed indicates a write to, or a second close of, a closed sink
	ErrSinkClosed = errors.New("sink closed")

	// ErrAlreadyRun indicates a pipeline was started more than once
	ErrAlreadyRun = errors.New("pipeline already run")
)

// ConfigError represents a configuration error: a missing rule set, an
// unreadable rules file or an invalid rule.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// GatewayError represents a failed search backend call for a single task.
type GatewayError struct {
	Dataset    string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway error for %s (status %d): %s", e.Dataset, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error for %s: %s", e.Dataset, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support. Transport failures (no status) and 5xx
// responses also match ErrGatewayUnavailable.
func (e *GatewayError) Is(target error) bool {
	if target == ErrGateway {
		return true
	}
	if target == ErrGatewayUnavailable {
		return e.StatusCode == 0 || e.StatusCode >= 500
	}
	return false
}

// NewGatewayError creates a new GatewayError
func NewGatewayError(dataset string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Dataset:    dataset,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// MalformedInputError represents an input record that could not be parsed.
type MalformedInputError struct {
	Line    int
	Message string
	Err     error
}

// Error implements the error interface
func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("malformed input: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// NewMalformedInputError creates a new MalformedInputError
func NewMalformedInputError(line int, message string, err error) *MalformedInputError {
	return &MalformedInputError{Line: line, Message: message, Err: err}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "cel"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open", "close", "flush"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsGatewayError checks if an error came from the search backend
func IsGatewayError(err error) bool {
	return errors.Is(err, ErrGateway)
}

// IsGatewayUnavailable checks if the search backend was unreachable or failed server-side
func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// IsMalformedInput checks if an error is an input parse error
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapConfig wraps an error as a ConfigError
func WrapConfig(component string, err error) error {
	if err == nil {
		return nil
	}
	return NewConfigError(component, err.Error(), err)
}

// WrapGateway wraps an error as a GatewayError without an HTTP status
func WrapGateway(dataset string, err error) error {
	if err == nil {
		return nil
	}
	return NewGatewayError(dataset, 0, err.Error(), err)
}
