package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrRemoteAPI        = errors.New("remote api error")
	ErrMissingReference = errors.New("missing reference")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrEmptyCurve       = errors.New("curve has no samples")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrValueNotFound    = errors.New("value not found")
	ErrIndexOutOfRange  = errors.New("column index out of range")
	ErrUnknownField     = errors.New("unknown field")
)

// RemoteAPIError reports a non-2xx response from the remote store.
type RemoteAPIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote api %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Is matches ErrRemoteAPI.
func (e *RemoteAPIError) Is(target error) bool { return target == ErrRemoteAPI }

// MissingReferenceError is returned when a reference names an identity absent
// from its table. From names the referring record when known.
type MissingReferenceError struct {
	Table Table
	ID    Identity
	From  string
}

func (e MissingReferenceError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("%s references missing %s %d", e.From, e.Table, e.ID)
	}
	return fmt.Sprintf("%s %d not found", e.Table, e.ID)
}

// Is matches ErrMissingReference.
func (e MissingReferenceError) Is(target error) bool { return target == ErrMissingReference }

// InvalidPeriodError is returned when a curve cannot be resampled to Period.
type InvalidPeriodError struct {
	Period int
}

func (e InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %d: must be positive", e.Period)
}

// Is matches ErrInvalidPeriod.
func (e InvalidPeriodError) Is(target error) bool { return target == ErrInvalidPeriod }

// MalformedRecordError is returned when a decoded row cannot be read as its typed record.
type MalformedRecordError struct {
	Table  Table
	ID     Identity
	Field  string
	Reason string
	Err    error
}

func (e MalformedRecordError) Error() string {
	msg := fmt.Sprintf("%s %d: field %q: %s", e.Table, e.ID, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrMalformedRecord.
func (e MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// Unwrap exposes the underlying cause, if any.
func (e MalformedRecordError) Unwrap() error { return e.Err }

// ValueNotFoundError is returned when a cell value is absent from the addressed row segment.
type ValueNotFoundError struct {
	Value any
	Row   []any
}

func (e ValueNotFoundError) Error() string {
	return fmt.Sprintf("value %v not found in row %v", e.Value, e.Row)
}

// Is matches ErrValueNotFound.
func (e ValueNotFoundError) Is(target error) bool { return target == ErrValueNotFound }

// IndexOutOfRangeError is returned for column indices outside A..Z.
type IndexOutOfRangeError struct {
	Index int
}

func (e IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("column index %d out of range [0,25]", e.Index)
}

// Is matches ErrIndexOutOfRange.
func (e IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// UnknownFieldError is returned by local edits naming a field inputs do not have.
type UnknownFieldError struct {
	Field string
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown input field %q", e.Field)
}

// Is matches ErrUnknownField.
func (e UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }
