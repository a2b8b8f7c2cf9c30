// Package apperror provides a structured way to handle application errors
// with specific codes, severity levels, and additional details. It also
// maps error codes onto HTTP status codes for the JSON API.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Record validation
	CodeValidation       ErrorCode = "VALIDATION_FAILED"
	CodeRequired         ErrorCode = "REQUIRED"
	CodeInvalidDate      ErrorCode = "INVALID_DATE"
	CodeFutureDate       ErrorCode = "FUTURE_DATE"
	CodeOldDate          ErrorCode = "OLD_DATE"
	CodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	CodeAmountOutOfRange ErrorCode = "AMOUNT_OUT_OF_RANGE"
	CodeInvalidCost      ErrorCode = "INVALID_COST"
	CodeCostOutOfRange   ErrorCode = "COST_OUT_OF_RANGE"
	CodePriceOutOfRange  ErrorCode = "PRICE_OUT_OF_RANGE"
	CodeInvalidMileage   ErrorCode = "INVALID_MILEAGE"
	CodeMileageTooHigh   ErrorCode = "MILEAGE_TOO_HIGH"
	CodeMileageRegressed ErrorCode = "MILEAGE_REGRESSED"
	CodeDistancePerDay   ErrorCode = "DISTANCE_PER_DAY"
	CodeInvalidStation   ErrorCode = "INVALID_STATION"
	CodeStationTooLong   ErrorCode = "STATION_TOO_LONG"

	// Import
	CodeImportFormat  ErrorCode = "IMPORT_FORMAT"
	CodeImportEmpty   ErrorCode = "IMPORT_EMPTY"
	CodeImportColumns ErrorCode = "IMPORT_COLUMNS"
	CodeImportRow     ErrorCode = "IMPORT_ROW"
	CodeUnsupported   ErrorCode = "UNSUPPORTED_FORMAT"
	CodeExportEmpty   ErrorCode = "EXPORT_EMPTY"

	// General
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeNilInput          ErrorCode = "NIL_INPUT"
	CodeInvalidPagination ErrorCode = "INVALID_PAGINATION"
	CodeUnimplemented     ErrorCode = "UNIMPLEMENTED"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	// SeverityWarning indicates a non-blocking issue the user should double-check.
	SeverityWarning Severity = iota
	// SeverityError indicates a standard error that requires attention.
	SeverityError
	// SeverityCritical indicates a severe error that might require immediate human intervention.
	SeverityCritical
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a custom error type that includes an ErrorCode, message,
// an optional field, additional details, an underlying cause, and a severity level.
type Error struct {
	Code     ErrorCode      // Code is a unique identifier for the type of error.
	Message  string         // Message is a human-readable description of the error.
	Field    string         // Field indicates which input field caused the error, if applicable.
	Details  map[string]any // Details provides additional structured information about the error.
	Cause    error          // Cause is the underlying error that triggered this application error.
	Severity Severity       // Severity indicates the criticality level of the error.
}

// Error implements the error interface, returning a string representation of the error.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, allowing for error chain introspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code onto an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeRequired, CodeInvalidDate, CodeFutureDate, CodeOldDate,
		CodeInvalidAmount, CodeAmountOutOfRange, CodeInvalidCost, CodeCostOutOfRange,
		CodePriceOutOfRange, CodeInvalidMileage, CodeMileageTooHigh, CodeMileageRegressed,
		CodeDistancePerDay, CodeInvalidStation, CodeStationTooLong:
		return http.StatusUnprocessableEntity

	case CodeImportFormat, CodeImportEmpty, CodeImportColumns, CodeImportRow,
		CodeInvalidArgument, CodeNilInput, CodeInvalidPagination, CodeExportEmpty:
		return http.StatusBadRequest

	case CodeUnsupported:
		return http.StatusUnsupportedMediaType

	case CodeNotFound:
		return http.StatusNotFound

	case CodeAlreadyExists:
		return http.StatusConflict

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodePermissionDenied:
		return http.StatusForbidden

	case CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeTimeout:
		return http.StatusGatewayTimeout

	case CodeUnimplemented:
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}

// New creates a new application error with the given code and message.
// The default severity is SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// NewWithField creates a new application error with the given code, message, and field.
func NewWithField(code ErrorCode, message, field string) *Error {
	e := New(code, message)
	e.Field = field
	return e
}

// NewWarning creates a new application error with SeverityWarning.
func NewWarning(code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Severity = SeverityWarning
	return e
}

// Wrap creates a new application error that wraps an existing error,
// providing additional context with a code and message.
func Wrap(cause error, code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithDetails adds a key-value pair to the error's details map and returns the modified error.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithField sets the field associated with the error and returns the modified error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error and returns the modified error.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is checks if the given error is an application error with a matching ErrorCode.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from an error. If the error is not an *Error,
// it returns CodeInternal.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// From returns the *Error in err's chain, or wraps err as an internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "internal error")
}

// IsWarning checks if the given error is an application error with SeverityWarning.
func IsWarning(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// Predefined errors for common scenarios.
var (
	ErrUnauthenticated = New(CodeUnauthenticated, "authentication required")
	ErrRecordNotFound  = New(CodeNotFound, "fuel record not found")
	ErrRateLimited     = New(CodeRateLimited, "rate limit exceeded")
)

// ValidationErrors is a collection of application errors and warnings,
// typically used for aggregating results of multiple validation checks.
type ValidationErrors struct {
	Errors   []*Error // Errors contains all collected errors (SeverityError and SeverityCritical).
	Warnings []*Error // Warnings contains all collected warnings (SeverityWarning).
}

// NewValidationErrors creates and returns a new empty ValidationErrors collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors:   make([]*Error, 0),
		Warnings: make([]*Error, 0),
	}
}

// Add appends an *Error to Errors or Warnings based on its Severity.
func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
	} else {
		v.Errors = append(v.Errors, err)
	}
}

// AddError creates and adds a new application error with SeverityError.
func (v *ValidationErrors) AddError(code ErrorCode, message string) {
	v.Errors = append(v.Errors, New(code, message))
}

// AddWarning creates and adds a new application error with SeverityWarning.
func (v *ValidationErrors) AddWarning(code ErrorCode, message string) {
	v.Warnings = append(v.Warnings, NewWarning(code, message))
}

// AddErrorWithField creates and adds a new application error with a specific field.
func (v *ValidationErrors) AddErrorWithField(code ErrorCode, message, field string) {
	v.Errors = append(v.Errors, NewWithField(code, message, field))
}

// AddWarningWithField creates and adds a warning bound to a field.
func (v *ValidationErrors) AddWarningWithField(code ErrorCode, message, field string) {
	v.Warnings = append(v.Warnings, NewWarning(code, message).WithField(field))
}

// HasErrors returns true if the collection contains any errors (non-warning severity).
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// HasWarnings returns true if the collection contains any warnings.
func (v *ValidationErrors) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// IsValid returns true if the collection contains no errors (warnings do not affect validity).
func (v *ValidationErrors) IsValid() bool {
	return !v.HasErrors()
}

// Merge appends all errors and warnings from other.
func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// ErrorMessages returns the user-facing messages of all collected errors.
func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return messages
}

// WarningMessages returns the user-facing messages of all collected warnings.
func (v *ValidationErrors) WarningMessages() []string {
	messages := make([]string, len(v.Warnings))
	for i, warn := range v.Warnings {
		messages[i] = warn.Message
	}
	return messages
}

// AsError folds a failed validation into a single CodeValidation error.
// Returns nil when the collection is valid.
func (v *ValidationErrors) AsError() *Error {
	if v.IsValid() {
		return nil
	}
	return New(CodeValidation, v.Errors[0].Message).
		WithDetails("errors", v.ErrorMessages()).
		WithDetails("warnings", v.WarningMessages())
}
