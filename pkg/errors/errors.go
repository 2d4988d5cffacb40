// Package errors provides the recoverable error taxonomy shared by every cloudkit category.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode identifies the situation an error describes.
type ErrorCode string

// Error code constants grouped by situation.
const (
	// Resolution errors
	ErrCodeNoSuchProvider    ErrorCode = "NO_SUCH_PROVIDER"
	ErrCodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"

	// Configuration errors
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIGURATION"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"

	// Storage errors
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"
	ErrCodeTransferFailed ErrorCode = "TRANSFER_FAILED"

	// Operation errors
	ErrCodeSessionTimeout  ErrorCode = "SESSION_TIMEOUT"
	ErrCodeOperationFailed ErrorCode = "OPERATION_FAILED"
	ErrCodeUnknownError    ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory names the functional domain that raised an error.
type ErrorCategory string

const (
	CategoryCore        ErrorCategory = "core"
	CategoryAnalytics   ErrorCategory = "analytics"
	CategoryStorage     ErrorCategory = "storage"
	CategoryPredictions ErrorCategory = "predictions"
	CategoryDataStore   ErrorCategory = "datastore"
)

// Error is an immutable, recoverable error carrying a message, an optional
// recovery suggestion and an optional cause.
type Error struct {
	Code       ErrorCode      `json:"code"`
	Category   ErrorCategory  `json:"category"`
	Message    string         `json:"message"`
	Suggestion string         `json:"recovery_suggestion,omitempty"`
	Cause      error          `json:"-"`
	Operation  string         `json:"operation,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Operation, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code, and on category when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && e.Code != t.Code {
		return false
	}
	if t.Category != "" && e.Category != t.Category {
		return false
	}
	return t.Code != "" || t.Category != ""
}

// RecoverySuggestion returns the explicit suggestion or the default for the code.
func (e *Error) RecoverySuggestion() string {
	if e.Suggestion != "" {
		return e.Suggestion
	}
	if rec, ok := defaultSuggestions[e.Code]; ok {
		return rec
	}
	return DefaultSuggestion
}

// String returns a detailed single-line representation for logging.
func (e *Error) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion=%q", e.Suggestion))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("Error{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *Error) JSON() string {
	payload := struct {
		*Error
		Cause string `json:"cause,omitempty"`
	}{Error: e}
	if e.Cause != nil {
		payload.Cause = e.Cause.Error()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// DetailedDiagnostic returns a multi-line message suitable for display.
func (e *Error) DetailedDiagnostic() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Error: %s", e.Message))
	parts = append(parts, fmt.Sprintf("Code: %s", e.Code))
	parts = append(parts, fmt.Sprintf("Category: %s", e.Category))

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation: %s", e.Operation))
	}

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts = append(parts, "\nDetails:")
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %v", k, e.Details[k]))
		}
	}

	parts = append(parts, "\nRecovery suggestion:")
	parts = append(parts, "  "+e.RecoverySuggestion())

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("\nUnderlying cause: %s", e.Cause.Error()))
	}

	return strings.Join(parts, "\n")
}

// WithSuggestion returns a copy carrying the given recovery suggestion.
func (e *Error) WithSuggestion(suggestion string) *Error {
	c := e.clone()
	c.Suggestion = suggestion
	return c
}

// WithCause returns a copy wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithOperation returns a copy tagged with the failing operation.
func (e *Error) WithOperation(operation string) *Error {
	c := e.clone()
	c.Operation = operation
	return c
}

// WithDetail returns a copy with an extra detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	c := e.clone()
	c.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		c.Details[k] = v
	}
	c.Details[key] = value
	return c
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// New creates an error from a message.
func New(category ErrorCategory, code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Category:  category,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates an error from a formatted message.
func Newf(category ErrorCategory, code ErrorCode, format string, args ...any) *Error {
	return New(category, code, fmt.Sprintf(format, args...))
}

// NewWithSuggestion creates a user-actionable error.
func NewWithSuggestion(category ErrorCategory, code ErrorCode, message, suggestion string) *Error {
	e := New(category, code, message)
	e.Suggestion = suggestion
	return e
}

// Wrap creates an error from a message and an underlying cause.
func Wrap(cause error, category ErrorCategory, code ErrorCode, message string) *Error {
	e := New(category, code, message)
	e.Cause = cause
	return e
}

// FromCause creates an error whose message is taken from the cause.
func FromCause(category ErrorCategory, code ErrorCode, cause error) *Error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	return Wrap(cause, category, code, message)
}

// AsError extracts an *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in the chain, or ErrCodeUnknownError.
func CodeOf(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ErrCodeUnknownError
}

// CategoryOf returns the category of the first *Error in the chain, or CategoryCore.
func CategoryOf(err error) ErrorCategory {
	if e, ok := AsError(err); ok {
		return e.Category
	}
	return CategoryCore
}

// DefaultSuggestion is used when neither the error nor its code carries one.
const DefaultSuggestion = "See the attached error for more details."

var defaultSuggestions = map[ErrorCode]string{
	ErrCodeNoSuchProvider: "Add a plugin for the category before configuring the framework.",
	ErrCodeAlreadyRegistered: "Register only one plugin per category. " +
		"Remove the duplicate plugin before configuring the framework.",
	ErrCodeMissingConfig: "Ensure that the category is enabled and exists in your configuration file.",
	ErrCodeInvalidConfig: "Check your configuration file syntax and required parameters.",
	ErrCodeNotConfigured: "Configure the framework before calling category operations.",
	ErrCodeObjectNotFound: "The requested object does not exist. " +
		"Verify the path and bucket name.",
	ErrCodeBucketNotFound: "The configured bucket does not exist or is not accessible. " +
		"Verify the bucket name and your credentials.",
	ErrCodeAccessDenied: "Credentials lack the permissions this operation needs. " +
		"Check the access policy attached to your identity.",
	ErrCodeTransferFailed: "The transfer did not complete. " +
		"Check network connectivity and try again.",
}
