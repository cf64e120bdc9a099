package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a failure of the attach/load/detach sequence.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindTargetNotFound means no process matches the identifier or its attach
	// endpoint is unreachable.
	KindTargetNotFound
	// KindAttachRejected means the target refused the connection.
	KindAttachRejected
	// KindModuleLoadFailed means the module is missing, malformed or rejected by
	// the target's loader.
	KindModuleLoadFailed
	// KindDetachFailed means the handle could not be released cleanly.
	KindDetachFailed
)

func (k Kind) String() string {
	switch k {
	case KindTargetNotFound:
		return "TargetNotFound"
	case KindAttachRejected:
		return "AttachRejected"
	case KindModuleLoadFailed:
		return "ModuleLoadFailed"
	case KindDetachFailed:
		return "DetachFailed"
	default:
		return "Unknown"
	}
}

// Sentinels for use with errors.Is.
var (
	ErrTargetNotFound   = &Error{Kind: KindTargetNotFound}
	ErrAttachRejected   = &Error{Kind: KindAttachRejected}
	ErrModuleLoadFailed = &Error{Kind: KindModuleLoadFailed}
	ErrDetachFailed     = &Error{Kind: KindDetachFailed}
)

// Error is a tagged attach failure carrying its underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

// New tags err with kind. A nil err yields nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Newf tags a formatted cause with kind. %w verbs are honored.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, ErrTargetNotFound) holds for
// every TargetNotFound error regardless of its cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Ensure tags err with kind unless it already carries one.
func Ensure(kind Kind, err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return New(kind, err)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
