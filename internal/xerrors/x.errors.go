package xerrors

import (
	"errors"
)

// Generic
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Store level. Both classify as ErrConflict.
var (
	ErrVersionMismatch = &conflictError{msg: "version mismatch"}
	ErrAlreadyReversed = &conflictError{msg: "entry already reversed"}
)

type conflictError struct {
	msg string
}

func (e *conflictError) Error() string { return e.msg }

func (e *conflictError) Is(target error) bool { return target == ErrConflict }

const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindCanceled   = "canceled"
	KindInternal   = "internal"
)

// Kind returns a stable label for err, used by transport status mapping,
// metric labels and batch failure reasons.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case isCanceled(err):
		return KindCanceled
	default:
		return KindInternal
	}
}
