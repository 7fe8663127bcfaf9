package settings

import (
	"errors"
	"fmt"
	"reflect"
)

// Errors returned by settings operations.
var (
	// ErrStoreNotFound indicates the backing document is absent or unreadable.
	ErrStoreNotFound = errors.New("settings store not found")

	// ErrSaveFailed indicates the backing document could not be persisted.
	ErrSaveFailed = errors.New("settings store save failed")

	// ErrNotStruct indicates the target is not a non-nil struct pointer.
	ErrNotStruct = errors.New("target must be a non-nil struct pointer")

	// ErrUnhandledType indicates no conversion strategy exists for a type.
	ErrUnhandledType = errors.New("no conversion strategy for type")

	// ErrSequenceValue reports that a value is sequence-classified and must
	// be expanded and converted element-wise by the caller.
	ErrSequenceValue = errors.New("sequence value requires element-wise conversion")

	// ErrNotWatchable indicates the provider's store has no watchable file.
	ErrNotWatchable = errors.New("only file-backed providers can be watched")
)

// CoercionError describes a failed string-to-value conversion.
type CoercionError struct {
	// Text is the persisted string form that failed to convert.
	Text string
	// Type is the target type of the conversion.
	Type reflect.Type
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %v", e.Text, e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

func coercionErr(text string, t reflect.Type, err error) error {
	return &CoercionError{Text: text, Type: t, Err: err}
}

func fmtErrNotStruct(target any) error {
	return fmt.Errorf("%w, got %T", ErrNotStruct, target)
}
