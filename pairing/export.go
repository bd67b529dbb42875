package pairing

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const objectManagerIface = "org.freedesktop.DBus.ObjectManager"

// objectManager answers BlueZ's GetManagedObjects for the application.
type objectManager struct {
	app *gattApp
}

func (m objectManager) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	return m.app.managedObjects(), nil
}

// characteristic1 implements org.bluez.GattCharacteristic1.
type characteristic1 struct {
	c *gattCharacteristic
}

func (d characteristic1) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	c := d.c
	r := parseOptions(options)

	if c.read == nil {
		return nil, dbus.NewError(errNotSupported, []interface{}{"read not supported"})
	}

	value, err := c.read(r.offset, r.mtu)
	if err != nil {
		c.log.Warnf("Could not read %v at %d for %v: %v", c.name(), r.offset, r.device, err)
		return nil, dbusError(err)
	}

	c.log.Debugf("Read %d bytes of %v at %d for %v", len(value), c.name(), r.offset, r.device)

	return value, nil
}

func (d characteristic1) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	c := d.c
	r := parseOptions(options)

	if c.write == nil {
		return dbus.NewError(errNotSupported, []interface{}{"write not supported"})
	}

	err := c.write(r.offset, value)
	if err != nil {
		c.log.Warnf("Could not write %d bytes of %v at %d for %v: %v", len(value), c.name(), r.offset, r.device, err)
		return dbusError(err)
	}

	c.log.Debugf("Wrote %d bytes of %v at %d for %v", len(value), c.name(), r.offset, r.device)

	return nil
}

func (d characteristic1) StartNotify() *dbus.Error {
	c := d.c

	if c.subscribe == nil {
		return dbus.NewError(errNotSupported, []interface{}{"notify not supported"})
	}

	c.log.Infof("Client subscribed to %v", c.name())
	c.subscribe(c)

	return nil
}

func (d characteristic1) StopNotify() *dbus.Error {
	c := d.c

	if c.unsubscribe == nil {
		return dbus.NewError(errNotSupported, []interface{}{"notify not supported"})
	}

	c.log.Infof("Client unsubscribed from %v", c.name())
	c.unsubscribe()

	return nil
}

// descriptor1 implements org.bluez.GattDescriptor1.
type descriptor1 struct {
	d *gattDescriptor
}

func (d descriptor1) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	value, err := d.d.readValue(parseOptions(options))
	if err != nil {
		return nil, dbusError(err)
	}

	return value, nil
}

// export publishes every object of the application on conn.
func (a *gattApp) export(conn *dbus.Conn) error {
	err := exportObject(conn, a.path, objectManagerIface, objectManager{app: a}, nil)
	if err != nil {
		return err
	}

	for _, s := range a.services {
		err = exportObject(conn, s.path, gattServiceIface, nil, s.props())
		if err != nil {
			return err
		}

		for _, c := range s.characteristics {
			err = exportObject(conn, c.path, gattCharacteristicIface, characteristic1{c: c}, c.props())
			if err != nil {
				return err
			}

			c.setConn(conn)

			for _, d := range c.descriptors {
				err = exportObject(conn, d.path, gattDescriptorIface, descriptor1{d: d}, d.props())
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// unexport removes every object of the application from conn.
func (a *gattApp) unexport(conn *dbus.Conn) {
	unexportObject(conn, a.path, objectManagerIface)

	for _, s := range a.services {
		unexportObject(conn, s.path, gattServiceIface)

		for _, c := range s.characteristics {
			c.setConn(nil)
			unexportObject(conn, c.path, gattCharacteristicIface)

			for _, d := range c.descriptors {
				unexportObject(conn, d.path, gattDescriptorIface)
			}
		}
	}
}

// exportObject exports v as iface at path, together with the properties
// and an introspection description. A nil v exports properties only.
func exportObject(conn *dbus.Conn, path dbus.ObjectPath, iface string, v interface{}, props prop.Map) error {
	node := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
		},
	}

	var methods []introspect.Method

	if v != nil {
		err := conn.Export(v, path, iface)
		if err != nil {
			return errors.Errorf("could not export %v on %v: %v", iface, path, err)
		}

		methods = introspect.Methods(v)
	}

	var properties []introspect.Property

	if props != nil {
		p, err := prop.Export(conn, path, props)
		if err != nil {
			return errors.Errorf("could not export properties of %v: %v", path, err)
		}

		node.Interfaces = append(node.Interfaces, prop.IntrospectData)
		properties = p.Introspection(iface)
	}

	node.Interfaces = append(node.Interfaces, introspect.Interface{
		Name:       iface,
		Methods:    methods,
		Properties: properties,
	})

	err := conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return errors.Errorf("could not export introspection of %v: %v", path, err)
	}

	return nil
}

func unexportObject(conn *dbus.Conn, path dbus.ObjectPath, iface string) {
	_ = conn.Export(nil, path, iface)
	_ = conn.Export(nil, path, "org.freedesktop.DBus.Properties")
	_ = conn.Export(nil, path, "org.freedesktop.DBus.Introspectable")
}
