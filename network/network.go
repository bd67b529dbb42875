package network

// UnknownIP is reported while the interface has no address.
const UnknownIP = "<unknown>"

type Status struct {
	LinkUp bool
	IP     string
}

// Connected reports whether the link is up and an address was assigned.
func (s *Status) Connected() bool {
	return s.LinkUp && s.IP != "" && s.IP != UnknownIP
}

// Network is a wifi backend bound to a single interface.
type Network interface {
	Start() error
	Stop() error

	// Connect replaces the configured network with ssid and the raw 32 byte
	// pre-shared key psk and starts associating.
	Connect(ssid []byte, psk []byte) error
	Disconnect() error
	Status() (*Status, error)

	// Scan triggers a scan and returns the raw scan results, one access
	// point per line in wpa_supplicant's tab separated format.
	Scan() (string, error)
}
