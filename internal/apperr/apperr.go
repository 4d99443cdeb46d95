package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to surface it
// without inspecting messages.
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	Forbidden
	NotFound
	InvalidArgument
	Conflict
	EmptyCart
	InsufficientStock
	PricingFailed
	PaymentFailed
	CommitFailed
	InvalidTransition
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "Unauthenticated"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case InvalidArgument:
		return "InvalidArgument"
	case Conflict:
		return "Conflict"
	case EmptyCart:
		return "EmptyCart"
	case InsufficientStock:
		return "InsufficientStock"
	case PricingFailed:
		return "PricingFailed"
	case PaymentFailed:
		return "PaymentFailed"
	case CommitFailed:
		return "CommitFailed"
	case InvalidTransition:
		return "InvalidTransition"
	default:
		return "Internal"
	}
}

type Error struct {
	Kind    Kind
	Message string

	// PaymentReference and AttemptID are set on PaymentFailed and
	// CommitFailed errors when money may have moved.
	PaymentReference string
	AttemptID        string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// Internal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
