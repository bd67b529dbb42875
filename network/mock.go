package network

import (
	"sync"

	"github.com/go-errors/errors"
)

// check MockNetworks compliance to its interface during compile time
var _ Network = (*MockNetwork)(nil)

// MockScanResults is what MockNetwork reports for every scan.
const MockScanResults = "bssid / frequency / signal level / flags / ssid\n" +
	"02:00:00:00:00:01\t2412\t-42\t[WPA2-PSK-CCMP][ESS]\tmock-home\n" +
	"02:00:00:00:00:02\t2437\t-67\t[WPA2-PSK-CCMP][WPS][ESS]\tmock-office\n" +
	"02:00:00:00:00:03\t5180\t-80\t[ESS]\t\n"

// MockNetwork is an in memory network for running without wpa_supplicant.
// A connection completes on the second status poll after Connect.
type MockNetwork struct {
	mu     sync.Mutex
	log    Logger
	ssid   []byte
	polls  int
	linkUp bool
}

func NewMockNetwork(config *Config) *MockNetwork {
	net := &MockNetwork{}

	if config.Logger != nil {
		net.log = config.Logger
	} else {
		net.log = noopLogger{}
	}

	return net
}

func (n *MockNetwork) Start() error {
	n.log.Infof("Using mock network")
	return nil
}

func (n *MockNetwork) Stop() error {
	return nil
}

func (n *MockNetwork) Connect(ssid []byte, psk []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(ssid) == 0 {
		return errors.New("ssid must not be empty")
	}

	n.log.Infof("Mock connecting to %q", ssid)

	n.ssid = append([]byte(nil), ssid...)
	n.polls = 0
	n.linkUp = false

	return nil
}

func (n *MockNetwork) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.ssid = nil
	n.linkUp = false

	return nil
}

func (n *MockNetwork) Status() (*Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ssid != nil && !n.linkUp {
		n.polls++
		n.linkUp = n.polls >= 2
	}

	if !n.linkUp {
		return &Status{IP: UnknownIP}, nil
	}

	return &Status{LinkUp: true, IP: "192.168.4.2"}, nil
}

func (n *MockNetwork) Scan() (string, error) {
	return MockScanResults, nil
}
