package codec

import (
	"errors"
	"fmt"
)

// MalformedRecordError wrong field count, non-numeric value or invalid JSON
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return "malformed record: " + e.Reason
}

// UnsupportedRecordTypeError structurally valid record with an unknown type code
type UnsupportedRecordTypeError struct {
	Code string
}

func (e *UnsupportedRecordTypeError) Error() string {
	return fmt.Sprintf("unsupported record type: %q", e.Code)
}

func malformed(format string, args ...interface{}) error {
	return &MalformedRecordError{Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is a MalformedRecordError
func IsMalformed(err error) bool {
	var target *MalformedRecordError
	return errors.As(err, &target)
}

// IsUnsupportedType reports whether err is an UnsupportedRecordTypeError
func IsUnsupportedType(err error) bool {
	var target *UnsupportedRecordTypeError
	return errors.As(err, &target)
}
