// Package errors provides the structured error type used across stencil.
//
// Library code returns *StencilError values for contract violations so the
// calling layer can match them with errors.Is against the sentinel values
// declared here, independent of the message text.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeContract   ErrorType = "contract"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeNullArgument      = "ERR_NULL_ARGUMENT"
	ErrCodeIllegalArgument   = "ERR_ILLEGAL_ARGUMENT"
	ErrCodeNotFound          = "ERR_NOT_FOUND"
	ErrCodeDirectoryNotFound = "ERR_DIRECTORY_NOT_FOUND"
	ErrCodeInvalidOperation  = "ERR_INVALID_OPERATION"
	ErrCodeTemplateInvalid   = "ERR_TEMPLATE_INVALID"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// Sentinels for errors.Is matching. Only Type and Code take part in the
// comparison.
var (
	ErrNullArgument      = &StencilError{Type: ErrorTypeContract, Code: ErrCodeNullArgument}
	ErrIllegalArgument   = &StencilError{Type: ErrorTypeContract, Code: ErrCodeIllegalArgument}
	ErrNotFound          = &StencilError{Type: ErrorTypeContract, Code: ErrCodeNotFound}
	ErrDirectoryNotFound = &StencilError{Type: ErrorTypeContract, Code: ErrCodeDirectoryNotFound}
	ErrInvalidOperation  = &StencilError{Type: ErrorTypeContract, Code: ErrCodeInvalidOperation}
)

// StencilError is a structured error type with context.
type StencilError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Path        string
	Recoverable bool
}

// Error implements the error interface.
func (e *StencilError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StencilError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *StencilError) Is(target error) bool {
	var t *StencilError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *StencilError) WithContext(key string, value interface{}) *StencilError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath attaches the path the error refers to.
func (e *StencilError) WithPath(path string) *StencilError {
	e.Path = path

	return e
}

// WithCause records the underlying error.
func (e *StencilError) WithCause(cause error) *StencilError {
	e.Cause = cause

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *StencilError {
	return &StencilError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewTemplateError creates a template parse or execution error.
func NewTemplateError(message string, cause error) *StencilError {
	return &StencilError{
		Type:        ErrorTypeTemplate,
		Code:        ErrCodeTemplateInvalid,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *StencilError {
	return &StencilError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *StencilError {
	return &StencilError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *StencilError {
	return &StencilError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// Contract violations. These are programmer errors of the calling layer and
// are never recovered internally.

// NullArgument reports a missing required argument.
func NullArgument(name string) *StencilError {
	return &StencilError{
		Type:    ErrorTypeContract,
		Code:    ErrCodeNullArgument,
		Message: name + " must not be empty",
	}
}

// IllegalArgument reports an argument with an unacceptable value.
func IllegalArgument(format string, args ...interface{}) *StencilError {
	return &StencilError{
		Type:    ErrorTypeContract,
		Code:    ErrCodeIllegalArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound reports a missing entity.
func NotFound(kind, id string) *StencilError {
	return &StencilError{
		Type:    ErrorTypeContract,
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, id),
	}
}

// DirectoryNotFound reports a missing or unusable output directory.
func DirectoryNotFound(path string) *StencilError {
	return &StencilError{
		Type:    ErrorTypeContract,
		Code:    ErrCodeDirectoryNotFound,
		Message: "directory not found",
		Path:    path,
	}
}

// InvalidOperation reports a call that is not legal in the current state.
func InvalidOperation(format string, args ...interface{}) *StencilError {
	return &StencilError{
		Type:    ErrorTypeContract,
		Code:    ErrCodeInvalidOperation,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *StencilError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsContractError reports whether err is a facade contract violation.
func IsContractError(err error) bool {
	var se *StencilError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeContract
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error reporting for the CLI layer.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *StencilError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch se.Type {
	case ErrorTypeValidation, ErrorTypeTemplate:
		h.logger.Warn(ctx, err, "Validation error occurred",
			"type", se.Type,
			"code", se.Code,
			"path", se.Path)
	case ErrorTypeContract:
		h.logger.Error(ctx, err, "Invalid request",
			"code", se.Code,
			"path", se.Path)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", se.Type,
			"code", se.Code)
	}
}
