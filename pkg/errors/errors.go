// Package errors provides standardized error types for the quill engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes covering the engine's failure taxonomy.
const (
	CodeConnectivity     = "CONNECTIVITY_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeNotReady         = "NOT_READY"
	CodeParseFailed      = "PARSE_FAILED"
	CodePlanInvalid      = "PLAN_INVALID"
	CodeLimitExceeded    = "LIMIT_EXCEEDED"
	CodeExecutionFailed  = "EXECUTION_FAILED"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeCanceled         = "CANCELED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInternal         = "INTERNAL_ERROR"
)

// EngineError represents an engine error with code, message, and optional details.
type EngineError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors.
var (
	ErrDatasetNotFound  = &EngineError{Code: CodeNotFound, Message: "dataset not found"}
	ErrSourceFileGone   = &EngineError{Code: CodeNotFound, Message: "source file not found"}
	ErrNotReady         = &EngineError{Code: CodeNotReady, Message: "dataset not yet loaded"}
	ErrConnectivity     = &EngineError{Code: CodeConnectivity, Message: "remote source unreachable"}
	ErrExecutionTimeout = &EngineError{Code: CodeDeadlineExceeded, Message: "plan execution timeout"}
	ErrLimitExceeded    = &EngineError{Code: CodeLimitExceeded, Message: "plan exceeds resource limits"}
	ErrUnauthorized     = &EngineError{Code: CodeUnauthorized, Message: "unauthorized"}
)

// New creates a new EngineError with the given code and message.
func New(code, message string) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new EngineError with a formatted message.
func Newf(code, format string, args ...interface{}) *EngineError {
	return &EngineError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with an EngineError.
func Wrap(err error, code, message string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsNotReady checks whether an error indicates a dataset that has not loaded yet.
func IsNotReady(err error) bool {
	return GetCode(err) == CodeNotReady
}

// IsPlanInvalid checks whether an error is a plan validation failure.
func IsPlanInvalid(err error) bool {
	return GetCode(err) == CodePlanInvalid
}

// IsConnectivity checks whether an error is a remote transport failure.
func IsConnectivity(err error) bool {
	return GetCode(err) == CodeConnectivity
}

// IsNotFound checks whether an error is a not found error.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Message
	}
	return err.Error()
}
