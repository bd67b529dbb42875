package pairing

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wifiprovd/notify"
)

const (
	bluezBus                = "org.bluez"
	adapterIface            = "org.bluez.Adapter1"
	gattManagerIface        = "org.bluez.GattManager1"
	advertisingManagerIface = "org.bluez.LEAdvertisingManager1"

	// Where to expose the application
	objectPath        = "/land/lightning/wifiprovd"
	advertisementPath = objectPath + "/advertisement0"

	retryInterval = time.Second
)

// Authorization is the authorization service as seen by clients.
type Authorization interface {
	WriteCommitment(offset int, value []byte) error
}

// Connection is the connection service as seen by clients.
type Connection interface {
	ReadState(offset int, mtu int) ([]byte, error)
	WriteState(offset int, value []byte) error
	SubscribeState(n notify.Notifier)
	UnsubscribeState()
	ReadSSID(offset int, mtu int) ([]byte, error)
	WriteSSID(offset int, value []byte) error
	WritePSK(offset int, value []byte) error
}

// Scan is the scan service as seen by clients.
type Scan interface {
	ReadStatus(offset int, mtu int) ([]byte, error)
	WriteStatus(offset int, value []byte) error
	SubscribeStatus(n notify.Notifier)
	UnsubscribeStatus()
	ReadSelect(offset int, mtu int) ([]byte, error)
	WriteSelect(offset int, value []byte) error
	ReadResult(offset int, mtu int) ([]byte, error)
}

type Config struct {
	// Adapter is the name of the bluetooth adapter (ex. hci0). The first
	// adapter found is used when empty.
	Adapter   string
	LocalName string

	Authorization Authorization
	Connection    Connection
	Scan          Scan

	Logger Logger
}

// Controller publishes the provisioning services through BlueZ.
type Controller struct {
	log       Logger
	adapterId string
	adapter   dbus.ObjectPath
	app       *gattApp
	adv       *advertisement
	conn      *dbus.Conn
	dial      func() (*dbus.Conn, error)
	retry     time.Duration
}

func NewController(config *Config) (*Controller, error) {
	controller := &Controller{
		dial:  func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() },
		retry: retryInterval,
	}

	if config.Logger != nil {
		controller.log = config.Logger
	} else {
		controller.log = noopLogger{}
	}

	if config.Authorization == nil || config.Connection == nil || config.Scan == nil {
		return nil, errors.New("authorization, connection and scan services are required")
	}

	// Assign the device adapter id (ex. hci0)
	controller.adapterId = config.Adapter

	var err error

	controller.app, err = newGattApp(config, controller.log)
	if err != nil {
		return nil, errors.Errorf("could not create app: %v", err)
	}

	localName := config.LocalName
	if localName == "" {
		localName = DefaultLocalName
	}

	controller.adv = &advertisement{
		path:      advertisementPath,
		localName: localName,
		uuids:     []string{ScanServiceUUID.String()},
		log:       controller.log,
	}

	return controller, nil
}

func newGattApp(config *Config, logger Logger) (*gattApp, error) {
	app := GattApp(objectPath, logger)

	scan := app.Service(ScanServiceUUID)
	scan.Characteristic(ScanStatusUUID, config.Scan.ReadStatus, config.Scan.WriteStatus).
		Notifying(config.Scan.SubscribeStatus, config.Scan.UnsubscribeStatus).
		UserDescriptionDescriptor("Scan Status")
	scan.Characteristic(ScanSelectUUID, config.Scan.ReadSelect, config.Scan.WriteSelect).
		UserDescriptionDescriptor("Scan Result Page")
	scan.Characteristic(ScanResultUUID, config.Scan.ReadResult, nil).
		UserDescriptionDescriptor("Scan Result")

	connection := app.Service(ConnectionServiceUUID)
	connection.Characteristic(ConnectionStateUUID, config.Connection.ReadState, config.Connection.WriteState).
		Notifying(config.Connection.SubscribeState, config.Connection.UnsubscribeState).
		UserDescriptionDescriptor("Connection State")
	connection.Characteristic(ConnectionSSIDUUID, config.Connection.ReadSSID, config.Connection.WriteSSID).
		UserDescriptionDescriptor("Wi-Fi SSID")
	connection.Characteristic(ConnectionPSKUUID, nil, config.Connection.WritePSK).
		UserDescriptionDescriptor("Wi-Fi PSK")

	authorization := app.Service(AuthorizationServiceUUID)
	authorization.Characteristic(CommitmentUUID, nil, config.Authorization.WriteCommitment).
		UserDescriptionDescriptor("Commitment")

	return app.Build()
}

// Start registers the application and the advertisement with BlueZ. It
// waits for the system bus and the adapter to become available, retrying
// every second until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	var err error

	for {
		err = c.connect()
		if err == nil {
			break
		}

		c.log.Warnf("Bluetooth adapter not ready, retrying: %v", err)

		select {
		case <-ctx.Done():
			c.disconnect()
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}

	conn := c.conn

	c.log.Infof("Using bluetooth adapter %v", c.adapter)

	err = c.app.export(conn)
	if err != nil {
		c.disconnect()
		return errors.Errorf("could not export app: %v", err)
	}

	err = c.adv.export(conn)
	if err != nil {
		c.disconnect()
		return errors.Errorf("could not export advertisement: %v", err)
	}

	adapter := conn.Object(bluezBus, c.adapter)

	call := adapter.CallWithContext(ctx, gattManagerIface+".RegisterApplication", 0, c.app.path, map[string]dbus.Variant{})
	if call.Err != nil {
		c.disconnect()
		return errors.Errorf("register failed: %v", call.Err)
	}

	call = adapter.CallWithContext(ctx, advertisingManagerIface+".RegisterAdvertisement", 0, c.adv.path, map[string]dbus.Variant{})
	if call.Err != nil {
		_ = adapter.Call(gattManagerIface+".UnregisterApplication", 0, c.app.path).Err
		c.disconnect()
		return errors.Errorf("failed to advertise: %v", call.Err)
	}

	c.log.Infof("Advertising as %v", c.adv.localName)

	return nil
}

func (c *Controller) Stop() error {
	if c.conn == nil {
		return nil
	}

	defer func() {
		c.app.unexport(c.conn)
		c.adv.unexport(c.conn)
		_ = c.conn.Close()
		c.conn = nil
	}()

	adapter := c.conn.Object(bluezBus, c.adapter)

	call := adapter.Call(advertisingManagerIface+".UnregisterAdvertisement", 0, c.adv.path)
	if call.Err != nil {
		return errors.Errorf("could not stop advertising: %v", call.Err)
	}

	call = adapter.Call(gattManagerIface+".UnregisterApplication", 0, c.app.path)
	if call.Err != nil {
		return errors.Errorf("unregister failed: %v", call.Err)
	}

	return nil
}

// connect dials the system bus unless already connected and prepares the
// adapter.
func (c *Controller) connect() error {
	if c.conn == nil {
		conn, err := c.dial()
		if err != nil {
			return errors.Errorf("could not connect to system bus: %v", err)
		}

		c.conn = conn
	}

	adapter, err := c.prepareAdapter()
	if err != nil {
		return err
	}

	c.adapter = adapter

	return nil
}

func (c *Controller) disconnect() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// prepareAdapter looks up the adapter and powers it on.
func (c *Controller) prepareAdapter() (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

	call := c.conn.Object(bluezBus, "/").Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if call.Err != nil {
		return "", errors.Errorf("could not list bluez objects: %v", call.Err)
	}

	err := call.Store(&objects)
	if err != nil {
		return "", errors.Errorf("could not read bluez objects: %v", err)
	}

	path, err := selectAdapter(objects, c.adapterId)
	if err != nil {
		return "", err
	}

	if powered, ok := objects[path][adapterIface]["Powered"].Value().(bool); ok && powered {
		return path, nil
	}

	c.log.Infof("Powering on %v", path)

	err = c.conn.Object(bluezBus, path).SetProperty(adapterIface+".Powered", dbus.MakeVariant(true))
	if err != nil {
		return "", errors.Errorf("could not power on %v: %v", path, err)
	}

	return path, nil
}

// selectAdapter returns the adapter named name, or the first adapter
// supporting GATT applications and advertisements when name is empty.
func selectAdapter(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant, name string) (dbus.ObjectPath, error) {
	var candidates []string

	for path, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; !ok {
			continue
		}

		if _, ok := ifaces[gattManagerIface]; !ok {
			continue
		}

		if _, ok := ifaces[advertisingManagerIface]; !ok {
			continue
		}

		candidates = append(candidates, string(path))
	}

	sort.Strings(candidates)

	for _, candidate := range candidates {
		if name == "" || strings.TrimPrefix(candidate, "/org/bluez/") == name {
			return dbus.ObjectPath(candidate), nil
		}
	}

	if name != "" {
		return "", errors.Errorf("adapter %v not found", name)
	}

	return "", errors.New("no bluetooth adapter found")
}
