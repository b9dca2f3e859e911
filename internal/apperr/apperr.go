// Package apperr defines the error kinds surfaced by filey components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. A Kind is itself an error so callers can write
// errors.Is(err, apperr.NotFound).
type Kind int

const (
	AlreadyRunning Kind = iota + 1
	BindFailure
	PeerUnreachable
	NotFound
	FilesystemError
	CatalogError
	CommandExecutionFailure
)

func (k Kind) String() string {
	switch k {
	case AlreadyRunning:
		return "server already running"
	case BindFailure:
		return "cannot bind listener"
	case PeerUnreachable:
		return "peer unreachable"
	case NotFound:
		return "not found"
	case FilesystemError:
		return "filesystem error"
	case CatalogError:
		return "catalog error"
	case CommandExecutionFailure:
		return "command failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) Error() string { return k.String() }

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// E builds an *Error. err may be nil.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
