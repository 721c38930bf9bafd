package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different failure conditions a run can report
type ErrorType string

const (
	ErrorTypeContainerNotFound ErrorType = "container_not_found"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeAlreadyRunning    ErrorType = "already_running"
	ErrorTypeNavigationTimeout ErrorType = "navigation_timeout"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// NetworkKind tells apart the three ways a fetch can fail
type NetworkKind string

const (
	KindStatus    NetworkKind = "status"
	KindTransport NetworkKind = "transport"
	KindTimeout   NetworkKind = "timeout"
)

// Error carries a typed failure. Code is the HTTP status for status failures.
type Error struct {
	Type    ErrorType
	Kind    NetworkKind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type)
	if e.Kind != "" {
		msg += "/" + string(e.Kind)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", msg, e.Code, e.Message)
	} else {
		msg = fmt.Sprintf("%s error: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// ContainerNotFound reports a missing precondition node
func ContainerNotFound(selector string) *Error {
	return &Error{Type: ErrorTypeContainerNotFound, Message: fmt.Sprintf("no node matches %q", selector)}
}

// AlreadyRunning reports a rejected re-entrant start
func AlreadyRunning(active string) *Error {
	return &Error{Type: ErrorTypeAlreadyRunning, Message: fmt.Sprintf("%s is already running", active)}
}

// NavigationTimeout reports a detail view that never became ready
func NavigationTimeout(target string, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeNavigationTimeout,
		Message: fmt.Sprintf("%s not ready after %d attempts", target, attempts),
	}
}

// HTTPStatus reports a non-200 response
func HTTPStatus(url string, code int) *Error {
	return &Error{
		Type:    ErrorTypeNetwork,
		Kind:    KindStatus,
		Message: fmt.Sprintf("GET %s", url),
		Code:    code,
	}
}

// Transport reports a connection level failure
func Transport(url string, err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Kind: KindTransport, Message: fmt.Sprintf("GET %s", url), Err: err}
}

// Timeout reports a request that exceeded its budget
func Timeout(url string, err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Kind: KindTimeout, Message: fmt.Sprintf("GET %s", url), Err: err}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is a typed error of type t
func Is(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryableError classifies a concrete error. Client-side status codes are
// not retried even though they are network failures.
func IsRetryableError(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	if e.Type == ErrorTypeNetwork && e.Kind == KindStatus {
		return IsRetryableStatusCode(e.Code)
	}
	return IsRetryable(e.Type)
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
