package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Inventory taxonomy.
	CodeNotPlaced              Code = "NOT_PLACED"
	CodeDuplicatePlacement     Code = "DUPLICATE_PLACEMENT"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeMismatch               Code = "MISMATCH"
	CodeExcessQuantity         Code = "EXCESS_QUANTITY"
)

// Metadata describes how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets the structured details reach the client.
	DetailsAllowed bool
	// ExposeMessage replaces PublicMessage with the error's own message.
	ExposeMessage bool
}

// client errors carry their message and, optionally, details to the caller.
func client(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, ExposeMessage: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    client(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:  client(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:     client(http.StatusForbidden, "access denied", false),
	CodeNotFound:      client(http.StatusNotFound, "resource not found", false),
	CodeConflict:      client(http.StatusConflict, "conflict detected", false),
	CodeStateConflict: client(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:   client(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:     client(http.StatusTooManyRequests, "rate limit exceeded", false),

	CodeNotPlaced:              client(http.StatusUnprocessableEntity, "lot is not placed in this warehouse", true),
	CodeDuplicatePlacement:     client(http.StatusConflict, "lot is already placed", true),
	CodeInsufficientStock:      client(http.StatusUnprocessableEntity, "insufficient stock", true),
	CodeInvalidStateTransition: client(http.StatusConflict, "state transition disallowed", true),
	CodeMismatch:               client(http.StatusBadRequest, "product does not match lot", true),
	CodeExcessQuantity:         client(http.StatusBadRequest, "quantity exceeds available amount", true),

	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether a caller may retry the failed operation.
// Untyped errors count as retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
}
