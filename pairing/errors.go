package pairing

import (
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wifiprovd/att"
)

const (
	errFailed             = "org.bluez.Error.Failed"
	errInvalidOffset      = "org.bluez.Error.InvalidOffset"
	errInvalidValueLength = "org.bluez.Error.InvalidValueLength"
	errNotAuthorized      = "org.bluez.Error.NotAuthorized"
	errNotSupported       = "org.bluez.Error.NotSupported"
)

// dbusError maps err to the BlueZ error that turns into the matching ATT
// error on the air. A nil err maps to nil.
func dbusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}

	var name string

	switch att.Code(err) {
	case att.ErrInvalidOffset:
		name = errInvalidOffset
	case att.ErrInvalidLength:
		name = errInvalidValueLength
	case att.ErrNotAuthorized:
		name = errNotAuthorized
	case att.ErrInvalidValue, att.ErrInvalidTransition:
		name = errNotSupported
	default:
		name = errFailed
	}

	return dbus.NewError(name, []interface{}{err.Error()})
}
