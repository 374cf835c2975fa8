package common

import "fmt"

// Kind is one of the error kinds the core distinguishes (§7). Generalizes
// the teacher's SafeError/UnsafeError split (pkg/batch/error.go) into the
// full taxonomy spec §7 names.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindTransientIO
	KindDataCorruption
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindTransientIO:
		return "TransientIO"
	case KindDataCorruption:
		return "DataCorruption"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with the kind the core uses to decide
// retry/dlq/surface-to-caller behavior (§7).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it reports KindTransientIO, the conservative default
// for an error this taxonomy hasn't classified.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	if e == nil {
		return KindTransientIO
	}
	return e.Kind
}

// Retryable reports whether the error kind should be retried in place
// (up to retryMax) before routing to the dead-letter queue (§7).
func Retryable(err error) bool {
	return KindOf(err) == KindTransientIO
}
