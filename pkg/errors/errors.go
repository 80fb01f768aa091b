package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified failure raised by an external call or an operator input check
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap attaches a type to an underlying error
func Wrap(errorType ErrorType, err error, message string) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// Validation reports bad operator input. Raised before any work starts.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeValidation, Message: fmt.Sprintf(format, args...)}
}

// RateLimited reports a provider throttling response
func RateLimited(message string) *Error {
	return &Error{Type: ErrorTypeRateLimit, Message: message, Code: 429}
}

// Transient reports a network or server failure that may succeed on retry
func Transient(err error, message string) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: message, Err: err}
}

// Fatal reports a failure that must stop the whole run
func Fatal(message string) *Error {
	return &Error{Type: ErrorTypeAuth, Message: message}
}

// FromStatusCode classifies an HTTP status code
func FromStatusCode(code int, message string) *Error {
	var t ErrorType
	switch {
	case code == 429:
		t = ErrorTypeRateLimit
	case code == 401 || code == 403:
		t = ErrorTypeAuth
	case code == 404:
		t = ErrorTypeNotFound
	case code >= 500:
		t = ErrorTypeServerError
	case code >= 400:
		t = ErrorTypeParsing
	default:
		t = ErrorTypeUnknown
	}
	return &Error{Type: t, Message: message, Code: code}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsFatal checks if an error type must abort the run
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeAuth, ErrorTypeConfig, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// Retryable reports whether err is a retryable typed error
func Retryable(err error) bool {
	return IsRetryable(TypeOf(err))
}

// IsFatalError reports whether err aborts the run
func IsFatalError(err error) bool {
	return IsFatal(TypeOf(err))
}

// IsValidation reports whether err is an operator input error
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
