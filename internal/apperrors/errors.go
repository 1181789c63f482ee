package apperrors

import (
	"context"
	"errors"
	"net"
)

// Kind classifies a failure at the service boundary.
type Kind int

const (
	// Internal is an unexpected fault; callers show a generic message.
	Internal Kind = iota
	// Validation failures are detected locally before any remote call and are never retried.
	Validation
	// Rejected means the backend refused the request (auth failure, constraint violation).
	Rejected
	// NotFound covers missing rows and ownership-constrained writes that matched nothing.
	NotFound
	// Transient I/O failures may succeed on a manual retry.
	Transient
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Rejected:
		return "rejected"
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	default:
		return "internal"
	}
}

// Error carries a kind and a user-facing message for an underlying error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to err. A nil err stays nil.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validationf(message string) error {
	return &Error{Kind: Validation, Message: message}
}

func NotFoundf(message string, err error) error {
	return &Error{Kind: NotFound, Message: message, Err: err}
}

func Rejectedf(message string, err error) error {
	return &Error{Kind: Rejected, Message: message, Err: err}
}

// KindOf classifies err. Unclassified network and deadline errors count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a manual retry might succeed.
func Retryable(err error) bool {
	return Is(err, Transient)
}

// UserMessage converts err into text that is safe to show.
// Internal faults never leak their details.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	kind := KindOf(err)
	var appErr *Error
	if kind != Internal && errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}

	switch kind {
	case Transient:
		return "Network problem. Check your connection and try again."
	case NotFound:
		return "Not found."
	case Rejected:
		return "The request was rejected."
	case Validation:
		return "Invalid input."
	default:
		return "Something went wrong. Please try again."
	}
}
