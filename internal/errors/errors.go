// Package errors provides structured error types for the Sketchmill system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryInput    ErrorCategory = "INPUT"
	ErrCategoryParse    ErrorCategory = "PARSE"
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryArchive  ErrorCategory = "ARCHIVE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Input codes
	CodeInputNotFound = "INPUT_NOT_FOUND"
	CodeMissingColumn = "MISSING_COLUMN"
	CodeEmptyInput    = "EMPTY_INPUT"

	// Parse codes
	CodeMalformedRow = "MALFORMED_ROW"

	// Schema codes
	CodeAlreadyFinalized = "ALREADY_FINALIZED"
	CodeNotFinalized     = "NOT_FINALIZED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeWriteFailed    = "WRITE_FAILED"

	// Catalog codes
	CodeCatalogOpenFailed = "CATALOG_OPEN_FAILED"
	CodeRecordFailed      = "RECORD_FAILED"
	CodeRunNotFound       = "RUN_NOT_FOUND"

	// Archive codes
	CodeBuildFailed    = "BUILD_FAILED"
	CodeSidecarInvalid = "SIDECAR_INVALID"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// SketchmillError is the structured error type used throughout the system.
type SketchmillError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SketchmillError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SketchmillError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SketchmillError) Is(target error) bool {
	var t *SketchmillError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SketchmillError.
func New(category ErrorCategory, code, message string) *SketchmillError {
	return &SketchmillError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new SketchmillError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SketchmillError {
	return &SketchmillError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *SketchmillError) WithDetails(details map[string]interface{}) *SketchmillError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *SketchmillError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SketchmillError.
func GetCategory(err error) ErrorCategory {
	var se *SketchmillError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SketchmillError.
func GetCode(err error) string {
	var se *SketchmillError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only storage
// transfers are safe to retry; everything else fails the run.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewInputError(code, message string) *SketchmillError {
	return New(ErrCategoryInput, code, message)
}

func NewParseError(message string, cause error) *SketchmillError {
	return Wrap(ErrCategoryParse, CodeMalformedRow, message, cause)
}

func NewSchemaError(code, message string) *SketchmillError {
	return New(ErrCategorySchema, code, message)
}

func NewStorageError(code, message string, cause error) *SketchmillError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *SketchmillError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewArchiveError(code, message string, cause error) *SketchmillError {
	return Wrap(ErrCategoryArchive, code, message, cause)
}

func NewInternalError(message string, cause error) *SketchmillError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// Is reports whether any error in err's chain matches target. Exported so
// callers need only this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
