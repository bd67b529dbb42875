package pairing

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const advertisementIface = "org.bluez.LEAdvertisement1"

const (
	// manufacturerID is the company id reserved for testing, the data
	// lets clients tell provisioning beacons apart from other devices.
	manufacturerID = 0xffff

	DefaultLocalName = "omnectWifiConfig"
)

var manufacturerData = []byte("_cp_")

type advertisement struct {
	path      dbus.ObjectPath
	localName string
	uuids     []string
	log       Logger
}

func (a *advertisement) props() prop.Map {
	return prop.Map{
		advertisementIface: {
			"Type":         {Value: "peripheral"},
			"ServiceUUIDs": {Value: a.uuids},
			"ManufacturerData": {Value: map[uint16]dbus.Variant{
				manufacturerID: dbus.MakeVariant(manufacturerData),
			}},
			"LocalName":    {Value: a.localName},
			"Discoverable": {Value: true},
		},
	}
}

// advertisement1 implements org.bluez.LEAdvertisement1.
type advertisement1 struct {
	a *advertisement
}

// Release is called by BlueZ when it drops the advertisement.
func (d advertisement1) Release() *dbus.Error {
	d.a.log.Infof("Advertisement %v released", d.a.path)
	return nil
}

func (a *advertisement) export(conn *dbus.Conn) error {
	return exportObject(conn, a.path, advertisementIface, advertisement1{a: a}, a.props())
}

func (a *advertisement) unexport(conn *dbus.Conn) {
	unexportObject(conn, a.path, advertisementIface)
}
