// Package att holds the error conditions every characteristic of the
// provisioning service can answer with. The numeric values follow the ATT
// error code space so they can be handed to any transport binding.
package att

import "fmt"

// Error is an ATT error code.
type Error uint8

const (
	// ErrInvalidOffset is returned when a read starts past the end of a value.
	ErrInvalidOffset Error = 0x07

	// ErrNotAuthorized is returned when a gated operation is attempted
	// without a valid authorization.
	ErrNotAuthorized Error = 0x08

	// ErrInvalidLength is returned when a write does not fit the value.
	ErrInvalidLength Error = 0x0D

	// ErrInvalidValue is returned for enum writes the client may not make.
	ErrInvalidValue Error = 0x13

	// ErrInvalidTransition is returned for state changes the state machine
	// does not allow from its current state.
	ErrInvalidTransition Error = 0x80

	// ErrExternalOperationFailed is returned when wpa_supplicant refused a
	// command or could not be reached.
	ErrExternalOperationFailed Error = 0x81
)

var names = map[Error]string{
	ErrInvalidOffset:           "invalid offset",
	ErrNotAuthorized:           "not authorized",
	ErrInvalidLength:           "invalid value length",
	ErrInvalidValue:            "value not allowed",
	ErrInvalidTransition:       "invalid state transition",
	ErrExternalOperationFailed: "external operation failed",
}

func (e Error) Error() string {
	if name, ok := names[e]; ok {
		return name
	}

	return fmt.Sprintf("att error 0x%02X", uint8(e))
}

// Code returns the error code carried by err, or 0 when err does not wrap
// an att.Error.
func Code(err error) Error {
	for err != nil {
		if e, ok := err.(Error); ok {
			return e
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}

		err = u.Unwrap()
	}

	return 0
}
