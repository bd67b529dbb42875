// Convenient methods for populating Gatt services,
// characteristics and descriptors

package pairing

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/google/uuid"
	"github.com/the-lightning-land/wifiprovd/chunk"
	"github.com/the-lightning-land/wifiprovd/notify"
)

const (
	gattServiceIface        = "org.bluez.GattService1"
	gattCharacteristicIface = "org.bluez.GattCharacteristic1"
	gattDescriptorIface     = "org.bluez.GattDescriptor1"
)

const (
	flagRead   = "read"
	flagWrite  = "write"
	flagNotify = "notify"
)

type HandleRead = func(offset int, mtu int) ([]byte, error)
type HandleWrite = func(offset int, value []byte) error
type HandleSubscribe = func(n notify.Notifier)
type HandleUnsubscribe = func()

type gattApp struct {
	path     dbus.ObjectPath
	log      Logger
	err      error
	services []*gattService
}

type gattService struct {
	*gattApp
	path            dbus.ObjectPath
	uuid            uuid.UUID
	characteristics []*gattCharacteristic
}

type gattCharacteristic struct {
	*gattService
	path        dbus.ObjectPath
	uuid        uuid.UUID
	description string
	read        HandleRead
	write       HandleWrite
	subscribe   HandleSubscribe
	unsubscribe HandleUnsubscribe
	descriptors []*gattDescriptor

	mu   sync.Mutex
	conn *dbus.Conn
}

type gattDescriptor struct {
	characteristic *gattCharacteristic
	path           dbus.ObjectPath
	uuid           uuid.UUID
	value          []byte
}

// check gattCharacteristic compliance to its interface during compile time
var _ notify.Notifier = (*gattCharacteristic)(nil)

func GattApp(objectPath string, logger Logger) *gattApp {
	a := &gattApp{
		path: dbus.ObjectPath(objectPath),
		log:  logger,
	}

	if a.log == nil {
		a.log = noopLogger{}
	}

	if !a.path.IsValid() {
		a.err = errors.Errorf("invalid object path %v", objectPath)
	}

	return a
}

// Build returns the populated application or the first error that
// occurred while populating it.
func (a *gattApp) Build() (*gattApp, error) {
	if a.err != nil {
		return nil, a.err
	}

	return a, nil
}

func (a *gattApp) Service(id uuid.UUID) *gattService {
	s := &gattService{
		gattApp: a,
		path:    dbus.ObjectPath(fmt.Sprintf("%v/service%d", a.path, len(a.services))),
		uuid:    id,
	}

	if a.err != nil {
		return s
	}

	if id == uuid.Nil {
		a.err = errors.New("service uuid must not be nil")
		return s
	}

	a.services = append(a.services, s)

	return s
}

func (s *gattService) Characteristic(id uuid.UUID, read HandleRead, write HandleWrite) *gattCharacteristic {
	c := &gattCharacteristic{
		gattService: s,
		path:        dbus.ObjectPath(fmt.Sprintf("%v/char%d", s.path, len(s.characteristics))),
		uuid:        id,
		read:        read,
		write:       write,
	}

	if s.err != nil {
		return c
	}

	if read == nil && write == nil {
		s.err = errors.Errorf("characteristic %v is neither readable nor writable", id)
		return c
	}

	s.characteristics = append(s.characteristics, c)

	return c
}

// Notifying lets clients subscribe to value notifications.
func (c *gattCharacteristic) Notifying(subscribe HandleSubscribe, unsubscribe HandleUnsubscribe) *gattCharacteristic {
	c.subscribe = subscribe
	c.unsubscribe = unsubscribe

	return c
}

func (c *gattCharacteristic) UserDescriptionDescriptor(value string) *gattCharacteristic {
	c.description = value
	return c.descriptor(UserDescriptionUUID, []byte(value))
}

func (c *gattCharacteristic) descriptor(id uuid.UUID, value []byte) *gattCharacteristic {
	if c.err != nil {
		return c
	}

	c.descriptors = append(c.descriptors, &gattDescriptor{
		characteristic: c,
		path:           dbus.ObjectPath(fmt.Sprintf("%v/desc%d", c.path, len(c.descriptors))),
		uuid:           id,
		value:          value,
	})

	return c
}

func (c *gattCharacteristic) flags() []string {
	var flags []string

	if c.read != nil {
		flags = append(flags, flagRead)
	}

	if c.write != nil {
		flags = append(flags, flagWrite)
	}

	if c.subscribe != nil {
		flags = append(flags, flagNotify)
	}

	return flags
}

func (c *gattCharacteristic) name() string {
	if c.description != "" {
		return c.description
	}

	return c.uuid.String()
}

// Notify emits value as a change of the characteristic value, which BlueZ
// forwards to the subscribed client.
func (c *gattCharacteristic) Notify(value []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.Errorf("%v is not exported", c.path)
	}

	err := conn.Emit(c.path, "org.freedesktop.DBus.Properties.PropertiesChanged",
		gattCharacteristicIface,
		map[string]dbus.Variant{"Value": dbus.MakeVariant(value)},
		[]string{},
	)
	if err != nil {
		return errors.Errorf("could not emit value of %v: %v", c.name(), err)
	}

	return nil
}

func (c *gattCharacteristic) setConn(conn *dbus.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
}

func (s *gattService) props() prop.Map {
	var paths []dbus.ObjectPath
	for _, c := range s.characteristics {
		paths = append(paths, c.path)
	}

	return prop.Map{
		gattServiceIface: {
			"UUID":            {Value: s.uuid.String()},
			"Primary":         {Value: true},
			"Characteristics": {Value: paths},
		},
	}
}

func (c *gattCharacteristic) props() prop.Map {
	paths := []dbus.ObjectPath{}
	for _, d := range c.descriptors {
		paths = append(paths, d.path)
	}

	return prop.Map{
		gattCharacteristicIface: {
			"UUID":        {Value: c.uuid.String()},
			"Service":     {Value: c.gattService.path},
			"Flags":       {Value: c.flags()},
			"Descriptors": {Value: paths},
		},
	}
}

func (d *gattDescriptor) props() prop.Map {
	return prop.Map{
		gattDescriptorIface: {
			"UUID":           {Value: d.uuid.String()},
			"Characteristic": {Value: d.characteristic.path},
			"Flags":          {Value: []string{flagRead}},
		},
	}
}

// managedObjects returns every object of the application with its
// properties, the way ObjectManager reports them.
func (a *gattApp) managedObjects() map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)

	for _, s := range a.services {
		objects[s.path] = variants(s.props())

		for _, c := range s.characteristics {
			objects[c.path] = variants(c.props())

			for _, d := range c.descriptors {
				objects[d.path] = variants(d.props())
			}
		}
	}

	return objects
}

func (a *gattApp) characteristic(path dbus.ObjectPath) *gattCharacteristic {
	for _, s := range a.services {
		for _, c := range s.characteristics {
			if c.path == path {
				return c
			}
		}
	}

	return nil
}

// uuids returns the uuids of all services.
func (a *gattApp) uuids() []string {
	var ids []string
	for _, s := range a.services {
		ids = append(ids, s.uuid.String())
	}

	sort.Strings(ids)

	return ids
}

func variants(m prop.Map) map[string]map[string]dbus.Variant {
	out := make(map[string]map[string]dbus.Variant, len(m))

	for iface, props := range m {
		out[iface] = make(map[string]dbus.Variant, len(props))
		for name, p := range props {
			out[iface][name] = dbus.MakeVariant(p.Value)
		}
	}

	return out
}

func (d *gattDescriptor) readValue(r request) ([]byte, error) {
	return chunk.Slice(d.value, r.offset, r.mtu)
}
