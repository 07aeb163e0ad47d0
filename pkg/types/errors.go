// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a conversion failure.
type ErrorKind string

const (
	KindInput             ErrorKind = "InputError"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindCorruptInput      ErrorKind = "CorruptInput"
	KindNetwork           ErrorKind = "NetworkError"
	KindPlugin            ErrorKind = "PluginError"
	KindBusy              ErrorKind = "Busy"
	KindUnknown           ErrorKind = "Unknown"
)

// Kinds lists every ErrorKind in declaration order.
var Kinds = []ErrorKind{
	KindInput,
	KindUnsupportedFormat,
	KindCorruptInput,
	KindNetwork,
	KindPlugin,
	KindBusy,
	KindUnknown,
}

// Valid reports whether k is one of the enumerated kinds.
func (k ErrorKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ConversionError is a classified failure. Two ConversionErrors match under
// errors.Is when their kinds are equal.
type ConversionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewError returns a ConversionError of the given kind.
func NewError(kind ErrorKind, message string, cause error) *ConversionError {
	return &ConversionError{Kind: kind, Message: message, Cause: cause}
}

// Errorf returns a ConversionError with a formatted message. A %w verb in
// format also records the wrapped error as the cause.
func Errorf(kind ErrorKind, format string, args ...any) *ConversionError {
	err := fmt.Errorf(format, args...)
	return &ConversionError{Kind: kind, Message: err.Error(), Cause: errors.Unwrap(err)}
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

func (e *ConversionError) Is(target error) bool {
	t, ok := target.(*ConversionError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first ConversionError in err's chain, or
// KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
