package pairing

import "github.com/godbus/dbus/v5"

// request holds the options BlueZ passes along with reads and writes.
type request struct {
	offset int
	mtu    int
	device dbus.ObjectPath
}

func parseOptions(options map[string]dbus.Variant) request {
	return request{
		offset: intOption(options, "offset"),
		mtu:    intOption(options, "mtu"),
		device: pathOption(options, "device"),
	}
}

func intOption(options map[string]dbus.Variant, key string) int {
	v, ok := options[key]
	if !ok {
		return 0
	}

	switch n := v.Value().(type) {
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case int32:
		return int(n)
	case uint64:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func pathOption(options map[string]dbus.Variant, key string) dbus.ObjectPath {
	v, ok := options[key]
	if !ok {
		return ""
	}

	path, _ := v.Value().(dbus.ObjectPath)

	return path
}
