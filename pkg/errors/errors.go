// Package errors provides structured error types for the modmarket client.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the admin API, and the library
//   - Machine-readable error codes for programmatic handling
//   - Human-readable messages that can be shown to an operator verbatim
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Install and update failures each have a distinct code so callers can tell
// them apart without string matching:
//
//   - NOT_WRITABLE: the modules directory cannot be written
//   - ALREADY_INSTALLED: the target module folder already exists
//   - NO_COMPATIBLE_VERSION: the catalog has no release for this platform version
//   - DOWNLOAD_FAILED / DOWNLOAD_MISSING: the archive could not be fetched
//   - EXTRACTION_FAILED: the archive could not be unpacked
//   - NETWORK_ERROR / DECODE_ERROR: catalog transport and payload failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeAlreadyInstalled, "module directory for module %s already exists", id)
//	if errors.Is(err, errors.ErrCodeAlreadyInstalled) {
//	    // Handle
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDownloadFailed, origErr, "module download failed")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidModuleID Code = "INVALID_MODULE_ID"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Catalog errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeDecode   Code = "DECODE_ERROR"

	// Install errors
	ErrCodeNotWritable         Code = "NOT_WRITABLE"
	ErrCodeAlreadyInstalled    Code = "ALREADY_INSTALLED"
	ErrCodeNoCompatibleVersion Code = "NO_COMPATIBLE_VERSION"
	ErrCodeScratchDir          Code = "SCRATCH_DIR"
	ErrCodeDownloadFailed      Code = "DOWNLOAD_FAILED"
	ErrCodeDownloadMissing     Code = "DOWNLOAD_MISSING"
	ErrCodeExtractionFailed    Code = "EXTRACTION_FAILED"

	// Registry errors
	ErrCodeModuleNotInstalled Code = "MODULE_NOT_INSTALLED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It checks the outermost *Error in the chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
