package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for propagation logic.
type ErrorClass string

const (
	// ErrorClassArgument indicates a malformed request item.
	// Argument errors are local to one item and never abort a batch.
	ErrorClassArgument ErrorClass = "argument"

	// ErrorClassBackend indicates the hierarchical configuration lookup failed.
	// Fatal for the whole compilation.
	ErrorClassBackend ErrorClass = "backend"

	// ErrorClassCatalog indicates the output catalog rejected a write or a
	// class inclusion. Fatal for the whole compilation.
	ErrorClassCatalog ErrorClass = "catalog"

	// ErrorClassLimit indicates a configured recursion ceiling was hit.
	ErrorClassLimit ErrorClass = "limit"
)

// Error codes.
const (
	ErrCodeInvalidResourceReference = "INVALID_RESOURCE_REFERENCE"
	ErrCodeUnsupportedArgumentType  = "UNSUPPORTED_ARGUMENT_TYPE"
	ErrCodeConfigurationBackend     = "CONFIGURATION_BACKEND_FAILURE"
	ErrCodeCatalogWrite             = "CATALOG_WRITE_FAILURE"
	ErrCodeDepthExceeded            = "DEPTH_EXCEEDED"
)

// Sentinels for errors.Is. Matching compares class and code only.
var (
	ErrInvalidResourceReference = &EngineError{Class: ErrorClassArgument, Code: ErrCodeInvalidResourceReference}
	ErrUnsupportedArgumentType  = &EngineError{Class: ErrorClassArgument, Code: ErrCodeUnsupportedArgumentType}
	ErrConfigurationBackend     = &EngineError{Class: ErrorClassBackend, Code: ErrCodeConfigurationBackend}
	ErrCatalogWrite             = &EngineError{Class: ErrorClassCatalog, Code: ErrCodeCatalogWrite}
	ErrDepthExceeded            = &EngineError{Class: ErrorClassLimit, Code: ErrCodeDepthExceeded}
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for propagation logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the resource reference that caused the error, if known.
	Resource string `json:"resource,omitempty"`

	// Operation is the public operation being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	// Catalog diagnostics are surfaced verbatim.
	if e.Class == ErrorClassCatalog && e.Err != nil {
		return e.Err.Error()
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)", e.Class, msg, e.Resource, e.Operation)
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s)", e.Class, msg, e.Operation)
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s)", e.Class, msg, e.Resource)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewInvalidReferenceError reports a string that does not parse as Type['title'].
func NewInvalidReferenceError(value string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassArgument,
		Code:    ErrCodeInvalidResourceReference,
		Message: fmt.Sprintf("invalid resource reference %q (string)", value),
		Err:     err,
	}
}

// NewUnsupportedArgumentError reports an argument that is neither a string
// nor a typed resource reference.
func NewUnsupportedArgumentError(value interface{}) *EngineError {
	return &EngineError{
		Class:   ErrorClassArgument,
		Code:    ErrCodeUnsupportedArgumentType,
		Message: fmt.Sprintf("unsupported argument %v of type %T: expected a Type['title'] string or a resource reference", value, value),
	}
}

// NewBackendError wraps a configuration backend failure for key.
func NewBackendError(key string, err error) *EngineError {
	return (&EngineError{
		Class:   ErrorClassBackend,
		Code:    ErrCodeConfigurationBackend,
		Message: fmt.Sprintf("configuration lookup for %q failed", key),
		Err:     err,
	}).WithDetail("key", key)
}

// NewCatalogError wraps a rejection from the output catalog.
func NewCatalogError(resource string, err error) *EngineError {
	return &EngineError{
		Class:    ErrorClassCatalog,
		Code:     ErrCodeCatalogWrite,
		Message:  "catalog rejected declaration",
		Resource: resource,
		Err:      err,
	}
}

// NewDepthExceededError reports recursion beyond the configured ceiling.
func NewDepthExceededError(resource string, limit int) *EngineError {
	return (&EngineError{
		Class:    ErrorClassLimit,
		Code:     ErrCodeDepthExceeded,
		Message:  fmt.Sprintf("singleton inclusion exceeded maximum depth %d", limit),
		Resource: resource,
	}).WithDetail("max_depth", limit)
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsInvalidReference returns true if err is an InvalidResourceReference.
func IsInvalidReference(err error) bool {
	return errors.Is(err, ErrInvalidResourceReference)
}

// IsUnsupportedArgument returns true if err is an UnsupportedArgumentType.
func IsUnsupportedArgument(err error) bool {
	return errors.Is(err, ErrUnsupportedArgumentType)
}

// IsBackendFailure returns true if err is a ConfigurationBackendFailure.
func IsBackendFailure(err error) bool {
	return errors.Is(err, ErrConfigurationBackend)
}

// IsCatalogWriteFailure returns true if err is a CatalogWriteFailure.
func IsCatalogWriteFailure(err error) bool {
	return errors.Is(err, ErrCatalogWrite)
}

// IsItemError returns true if the error only affects a single request item.
func IsItemError(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassArgument
	}
	return false
}

// IsFatal returns true if the error must abort the compilation.
// Unclassified errors are fatal.
func IsFatal(err error) bool {
	return err != nil && !IsItemError(err)
}

// ErrorCode extracts the error code, or "" for unclassified errors.
func ErrorCode(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func asEngineError(err error, target **EngineError) bool {
	return errors.As(err, target)
}
