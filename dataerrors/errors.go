package dataerrors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the OCR training-data toolkit
 *
 * Design Pattern: Factory Pattern for error creation
 * SOLID Principle: Single Responsibility (each error type has one purpose)
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Argument errors
	ErrorInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// Fetch errors
	ErrorVerificationFailed ErrorCode = "VERIFICATION_FAILED"
	ErrorDownloadFailed     ErrorCode = "DOWNLOAD_FAILED"

	// Parse errors
	ErrorParseFailed ErrorCode = "PARSE_FAILED"
)

// DatasetError represents a structured dataset-toolkit error
type DatasetError struct {
	Code      ErrorCode
	Message   string
	URL       string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *DatasetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DatasetError) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is (or wraps) a DatasetError with the given code
func IsCode(err error, code ErrorCode) bool {
	var de *DatasetError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Factory functions for common errors

func NewInvalidArgumentError(message string) *DatasetError {
	return &DatasetError{
		Code:      ErrorInvalidArgument,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewVerificationError(url, expected, actual string) *DatasetError {
	return &DatasetError{
		Code:      ErrorVerificationFailed,
		Message:   fmt.Sprintf("digest mismatch for %s: expected %s, got %s", url, expected, actual),
		URL:       url,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"expected_sha256": expected,
			"actual_sha256":   actual,
		},
	}
}

func NewDownloadFailedError(url string, cause error) *DatasetError {
	return &DatasetError{
		Code:      ErrorDownloadFailed,
		Message:   fmt.Sprintf("failed to download %s", url),
		URL:       url,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewParseFailedError(source string, cause error) *DatasetError {
	return &DatasetError{
		Code:      ErrorParseFailed,
		Message:   fmt.Sprintf("failed to parse labels from %s", source),
		URL:       source,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}
