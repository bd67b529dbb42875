package pairing

import "github.com/google/uuid"

// Services and characteristics share a common suffix and count up in their
// first groups.
var (
	ScanServiceUUID          = uuid.MustParse("d69a37ee-1d8a-4329-bd24-25db4af3c863")
	ConnectionServiceUUID    = uuid.MustParse("d69a37ee-1d8a-4329-bd24-25db4af3c864")
	AuthorizationServiceUUID = uuid.MustParse("d69a37ee-1d8a-4329-bd24-25db4af3c865")

	ScanStatusUUID = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa0")
	ScanSelectUUID = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa1")
	ScanResultUUID = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa2")

	ConnectionStateUUID = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa3")
	ConnectionSSIDUUID  = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa4")
	ConnectionPSKUUID   = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa5")

	CommitmentUUID = uuid.MustParse("811ce666-22e0-4a6d-a50f-0c78e076faa6")
)

// shortUUID expands a 16 bit SIG assigned number.
func shortUUID(n uint16) uuid.UUID {
	u := uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")
	u[2] = byte(n >> 8)
	u[3] = byte(n)

	return u
}

// UserDescriptionUUID is the Characteristic User Description descriptor.
var UserDescriptionUUID = shortUUID(0x2901)
