// Package errors provides the error taxonomy shared by the query layer and its API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeInvalidConnectionConfig = "INVALID_CONNECTION_CONFIG"
	CodeConnectionFailed        = "CONNECTION_FAILED"
	CodeStatementParseFailed    = "STATEMENT_PARSE_FAILED"
	CodeInjectionDetected       = "INJECTION_DETECTED"
	CodeQueryExecutionFailed    = "QUERY_EXECUTION_FAILED"
	CodeExplainFailed           = "EXPLAIN_FAILED"
	CodeTooManyRowsRequested    = "TOO_MANY_ROWS_REQUESTED"
	CodeNotImplemented          = "NOT_IMPLEMENTED"
	CodeNotFound                = "NOT_FOUND"
	CodeCanceled                = "CANCELED"
	CodeDeadlineExceeded        = "DEADLINE_EXCEEDED"
	CodeInternal                = "INTERNAL_ERROR"
)

// QueryError is an error with a stable code, a caller-facing message and an optional cause.
type QueryError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a QueryError with the same code.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *QueryError) WithDetail(key string, value any) *QueryError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidRequest          = &QueryError{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrInvalidConnectionConfig = &QueryError{Code: CodeInvalidConnectionConfig, Message: "invalid connection configuration"}
	ErrConnectionFailed        = &QueryError{Code: CodeConnectionFailed, Message: "database connection failed"}
	ErrStatementParseFailed    = &QueryError{Code: CodeStatementParseFailed, Message: "statement could not be parsed"}
	ErrInjectionDetected       = &QueryError{Code: CodeInjectionDetected, Message: "potential injection detected"}
	ErrQueryExecutionFailed    = &QueryError{Code: CodeQueryExecutionFailed, Message: "query execution failed"}
	ErrExplainFailed           = &QueryError{Code: CodeExplainFailed, Message: "explain failed"}
	ErrTooManyRowsRequested    = &QueryError{Code: CodeTooManyRowsRequested, Message: "too many rows requested"}
	ErrNotImplemented          = &QueryError{Code: CodeNotImplemented, Message: "feature not implemented"}
	ErrNotFound                = &QueryError{Code: CodeNotFound, Message: "not found"}
	ErrCanceled                = &QueryError{Code: CodeCanceled, Message: "query canceled"}
	ErrDeadlineExceeded        = &QueryError{Code: CodeDeadlineExceeded, Message: "query timed out"}
)

// New creates a new QueryError with the given code and message.
func New(code, message string) *QueryError {
	return &QueryError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new QueryError with a formatted message.
func Newf(code, format string, args ...any) *QueryError {
	return &QueryError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a QueryError.
func Wrap(err error, code, message string) *QueryError {
	if err == nil {
		return nil
	}
	return &QueryError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...any) *QueryError {
	if err == nil {
		return nil
	}
	return &QueryError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return CodeInternal
}

// GetMessage extracts the caller-facing message from an error.
func GetMessage(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidRequest, CodeInvalidConnectionConfig, CodeInjectionDetected, CodeTooManyRowsRequested:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotImplemented:
		return http.StatusNotImplemented
	case CodeConnectionFailed:
		return http.StatusBadGateway
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return 499
	case CodeQueryExecutionFailed, CodeExplainFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
