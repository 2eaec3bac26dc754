// Package kerrors implements the error taxonomy from the error-handling
// design: a small set of typed Kinds that the pipeline maps onto HTTP
// status codes and JSON payloads, modeled on rivaas.dev/errors's Simple
// formatter but narrowed to the fixed kind set the specification names
// rather than that package's open-ended RFC 9457 / JSON:API formats.
package kerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error classes named by the specification.
type Kind int

const (
	// Unexpected is the default kind for errors that do not identify
	// themselves as one of the other kinds; it surfaces as HTTP 500.
	Unexpected Kind = iota
	Validation
	Unauthorized
	NotFound
	Conflict
	PayloadTooLarge
	Timeout
	Configuration
)

// Status returns the HTTP status code the pipeline writes for this kind.
// Configuration has no status of its own and maps to 500 like
// Unexpected — it is only ever returned by constructors and fails them
// outright.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case Timeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not-found"
	case Conflict:
		return "conflict"
	case PayloadTooLarge:
		return "payload-too-large"
	case Timeout:
		return "timeout"
	case Configuration:
		return "configuration"
	default:
		return "unexpected"
	}
}

// Error is a typed error carrying a Kind, a human-readable message, and
// optional opaque Data rendered alongside the error string in the JSON
// payload (see Format).
type Error struct {
	Kind    Kind
	Message string
	Data    any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind that records cause for
// errors.Is/errors.As unwrapping, without exposing it in Data.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithData attaches opaque data to the error and returns it for chaining.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// ValidationErr, UnauthorizedErr, NotFoundErr, ConflictErr,
// PayloadTooLargeErr, TimeoutErr, and ConfigurationErr are convenience
// constructors for the corresponding Kind.
func ValidationErr(format string, args ...any) *Error {
	return Newf(Validation, format, args...)
}

func UnauthorizedErr(format string, args ...any) *Error {
	return Newf(Unauthorized, format, args...)
}

func NotFoundErr(format string, args ...any) *Error {
	return Newf(NotFound, format, args...)
}

func ConflictErr(format string, args ...any) *Error {
	return Newf(Conflict, format, args...)
}

func PayloadTooLargeErr(format string, args ...any) *Error {
	return Newf(PayloadTooLarge, format, args...)
}

func TimeoutErr(format string, args ...any) *Error {
	return Newf(Timeout, format, args...)
}

func ConfigurationErr(format string, args ...any) *Error {
	return Newf(Configuration, format, args...)
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error,
// defaulting to Unexpected otherwise.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return Unexpected
}

// Payload is the JSON-serializable shape written for an error, matching
// the specification's `{"error": <string>, "data": <opaque>?}` /
// `{"error": <string>, "statusCode": <int>}` shapes.
type Payload struct {
	Error      string `json:"error"`
	Data       any    `json:"data,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Format renders err into its HTTP status and JSON payload. Unknown
// (non-*Error) errors render as Unexpected with no data, the message
// replaced by a generic string so internal error text never leaks to
// clients — the same reasoning rivaas.dev/errors's Simple formatter
// documents for unclassified errors.
func Format(err error) (status int, payload Payload) {
	var ke *Error
	if errors.As(err, &ke) {
		if ke.Data != nil {
			return ke.Kind.Status(), Payload{Error: ke.Message, Data: ke.Data}
		}
		return ke.Kind.Status(), Payload{Error: ke.Message, StatusCode: ke.Kind.Status()}
	}
	return http.StatusInternalServerError, Payload{
		Error:      "Internal Server Error",
		StatusCode: http.StatusInternalServerError,
	}
}
