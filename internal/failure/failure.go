// Package failure defines the error kinds a digest run can end with.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Kind string

const (
	KindUnknown     Kind = "unknown"
	KindTransientIO Kind = "transient_io"
	KindParse       Kind = "parse"
	KindDecode      Kind = "decode"
	KindPersistence Kind = "persistence"
	KindDelivery    Kind = "delivery"
)

// Error tags an underlying error with a Kind and the operation that produced it
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind and op. A nil err stays nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Context cancellation and network errors without a tag count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransientIO
	}
	return KindUnknown
}

// IsTransient reports whether err may succeed when retried
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientIO
}

// As returns err as *Error, tagging untyped errors with KindUnknown
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: KindOf(err), Op: "run", Err: err}
}
