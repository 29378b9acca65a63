// Package errors defines the error taxonomy used across the reconciliation
// pipeline.
//
// Three classes of trouble exist, and only two of them are errors:
//
//   - Input errors (fatal): a statement text file or delivery-note workbook
//     could not be obtained or opened. These always abort the run for that
//     document and are never recovered internally.
//   - Normalization errors (recoverable): a due-amount cell or customer
//     reference could not be converted to its typed form. These are surfaced
//     per row alongside successfully loaded rows; the caller decides whether
//     to drop the row or halt.
//   - Parse skips are NOT errors. A statement line that fails every anchor
//     pattern is silently skipped and only counted in diagnostics.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by origin, which also determines the process exit
// code when an error reaches the CLI boundary.
type Category string

const (
	CategoryInput          Category = "input"
	CategoryNormalization  Category = "normalization"
	CategoryValidation     Category = "validation"
	CategoryConfiguration  Category = "configuration"
	CategoryReconciliation Category = "reconciliation"
	CategoryInternal       Category = "internal"
)

// Code identifies a specific failure within a category.
type Code string

const (
	// Input codes
	CodeFileNotFound   Code = "file_not_found"
	CodeFilePermission Code = "file_permission"
	CodeFileUnreadable Code = "file_unreadable"
	CodeSheetNotFound  Code = "sheet_not_found"

	// Normalization codes
	CodeInvalidAmount    Code = "invalid_amount"
	CodeInvalidReference Code = "invalid_reference"
	CodeMissingColumn    Code = "missing_column"
	CodeMissingField     Code = "missing_field"

	// Configuration codes
	CodeInvalidConfig Code = "invalid_config"
	CodeMissingConfig Code = "missing_config"

	// Reconciliation codes
	CodeProcessingError Code = "processing_error"

	// Internal codes
	CodeUnexpectedError Code = "unexpected_error"
)

// Error is the typed error carried through the pipeline. It keeps the
// category and code for policy decisions, a human message, an optional
// remediation suggestion, key/value context, and the original cause with its
// stack trace.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether this error class aborts the run. Only input errors
// are fatal; everything else is reported and the run continues where the
// caller chooses to.
func (e *Error) IsFatal() bool {
	return e.Category == CategoryInput
}

// ExitCode maps the category to a process exit code.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryInput:
		return 2
	case CategoryNormalization, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a remediation hint to the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with a captured stack trace.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap attaches category, code and message to an existing error.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// InputError creates a fatal input-unavailable error for a document path.
func InputError(code Code, path string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("input file not found: %s", path)
		suggestion = "check that the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied reading input file: %s", path)
		suggestion = "check file permissions"
	case CodeSheetNotFound:
		message = fmt.Sprintf("worksheet not found in workbook: %s", path)
		suggestion = "check the configured sheet name against the workbook"
	default:
		message = fmt.Sprintf("input file could not be read: %s", path)
		suggestion = "verify the file is intact and readable"
	}

	result := wrapOrNew(err, CategoryInput, code, message)
	return result.WithSuggestion(suggestion).WithContext("path", path)
}

// NormalizationError creates a recoverable per-row normalization failure.
func NormalizationError(code Code, field string, value interface{}, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("amount in field %q could not be normalized: %v", field, value)
		suggestion = "check the decimal-separator convention configured for this source"
	case CodeInvalidReference:
		message = fmt.Sprintf("reference in field %q is not a valid customer reference: %v", field, value)
		suggestion = "references are short digit strings; check the source column"
	case CodeMissingColumn:
		message = fmt.Sprintf("required column %q is missing from the source", field)
		suggestion = "check the configured column names against the source headers"
	case CodeMissingField:
		message = fmt.Sprintf("required field %q is missing or empty", field)
		suggestion = "provide a value for this field"
	default:
		message = fmt.Sprintf("field %q could not be normalized: %v", field, value)
		suggestion = "check the field value and format"
	}

	result := wrapOrNew(err, CategoryNormalization, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code Code, setting string, value interface{}, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for %q: %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag or config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := wrapOrNew(err, CategoryConfiguration, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates an error for a failed engine operation.
func ReconciliationError(code Code, operation string, err error) *Error {
	message := fmt.Sprintf("reconciliation error during %s", operation)
	result := wrapOrNew(err, CategoryReconciliation, code, message)
	return result.WithContext("operation", operation)
}

// InternalError creates an internal error for bugs and impossible states.
func InternalError(operation string, err error) *Error {
	message := fmt.Sprintf("unexpected error during %s", operation)
	result := wrapOrNew(err, CategoryInternal, CodeUnexpectedError, message)
	return result.
		WithSuggestion("this is likely a bug; please report it with the error details").
		WithContext("operation", operation)
}

func wrapOrNew(err error, category Category, code Code, message string) *Error {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// Summary collects multiple recoverable errors from one run, typically the
// per-row normalization failures of a due-record load.
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	ByCode     map[Code]int     `json:"by_code"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary builds a Summary from a list of errors.
func NewSummary(errs []*Error) *Summary {
	summary := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		ByCode:     make(map[Code]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}
	return summary
}

func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}

	var categories []string
	for category, count := range s.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category.
func (s *Summary) HasCategory(category Category) bool {
	return s.ByCategory[category] > 0
}

// ExitCode returns the highest-priority exit code among the collected errors,
// or 0 when the summary is empty.
func (s *Summary) ExitCode() int {
	if s.Total == 0 {
		return 0
	}
	maxCode := 1
	for _, err := range s.Errors {
		if code := err.ExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// WrapIfNeeded wraps err unless it already is an *Error.
func WrapIfNeeded(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := As(err); ok {
		return typed
	}
	return Wrap(err, category, code, message)
}
