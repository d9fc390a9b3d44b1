package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies automation failures.
type ErrorKind string

const (
	KindWindowNotFound           ErrorKind = "WindowNotFound"
	KindStaleHandle              ErrorKind = "StaleHandle"
	KindInputInjectionFailure    ErrorKind = "InputInjectionFailure"
	KindPopupTimeout             ErrorKind = "PopupTimeout"
	KindStepVerificationFailure  ErrorKind = "StepVerificationFailure"
	KindPhaseVerificationFailure ErrorKind = "PhaseVerificationFailure"
	KindRetryExhausted           ErrorKind = "RetryExhausted"
	KindConfigurationError       ErrorKind = "ConfigurationError"
	KindUnknown                  ErrorKind = "Unknown"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrWindowNotFound           = &Error{Kind: KindWindowNotFound}
	ErrStaleHandle              = &Error{Kind: KindStaleHandle}
	ErrInputInjectionFailure    = &Error{Kind: KindInputInjectionFailure}
	ErrPopupTimeout             = &Error{Kind: KindPopupTimeout}
	ErrStepVerificationFailure  = &Error{Kind: KindStepVerificationFailure}
	ErrPhaseVerificationFailure = &Error{Kind: KindPhaseVerificationFailure}
	ErrRetryExhausted           = &Error{Kind: KindRetryExhausted}
	ErrConfiguration            = &Error{Kind: KindConfigurationError}
)

// Error is a classified automation error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WrapError classifies err under kind. A nil err yields nil.
func WrapError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
