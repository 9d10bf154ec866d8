package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig     Kind = "config"
	KindDomain     Kind = "domain"
	KindTransport  Kind = "transport"
	KindPlatform   Kind = "platform"
	KindBootstrap  Kind = "bootstrap"
	KindStorage    Kind = "storage"
	KindValidation Kind = "validation"
	KindImage      Kind = "image"
	KindVision     Kind = "vision"
	KindDrugInfo   Kind = "druginfo"
	KindRecovery   Kind = "recovery"
	KindSynthesis  Kind = "synthesis"
	KindTimeout    Kind = "timeout"
	KindUnknown    Kind = "unknown"
)

// Error is the typed error carried across package boundaries. Code holds the
// failure code (for example "invalid_format") used to pick user-facing
// messages; it may be empty.
type Error struct {
	Kind    Kind
	Op      string
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCode attaches a failure code and returns the same error.
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}
	e.Code = code
	return e
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// CodeOf returns the first non-empty failure code found in the chain.
func CodeOf(err error) string {
	for err != nil {
		var target *Error
		if !errors.As(err, &target) {
			return ""
		}
		if target.Code != "" {
			return target.Code
		}
		err = target.Cause
	}
	return ""
}

// MessageOf returns the message of the first typed error, or err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) {
		return target.Message
	}
	return err.Error()
}
