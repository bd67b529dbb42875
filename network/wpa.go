package network

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/network/wpa"
)

// DefaultScanDelay is how long wpa_supplicant is given to collect results
// after a scan was triggered.
const DefaultScanDelay = 3 * time.Second

// check WpaNetworks compliance to its interface during compile time
var _ Network = (*WpaNetwork)(nil)

type Config struct {
	Interface string
	CtrlDir   string
	Timeout   time.Duration
	ScanDelay time.Duration
	Logger    Logger
}

// WpaNetwork drives wpa_supplicant through its control socket. Every
// operation opens its own connection so a restarted wpa_supplicant is
// picked up transparently.
type WpaNetwork struct {
	log       Logger
	ifname    string
	ctrlDir   string
	timeout   time.Duration
	scanDelay time.Duration
	sleep     func(time.Duration)
}

func NewWpaNetwork(config *Config) *WpaNetwork {
	net := &WpaNetwork{
		ifname:    config.Interface,
		ctrlDir:   config.CtrlDir,
		timeout:   config.Timeout,
		scanDelay: config.ScanDelay,
		sleep:     time.Sleep,
	}

	if net.scanDelay <= 0 {
		net.scanDelay = DefaultScanDelay
	}

	if config.Logger != nil {
		net.log = config.Logger
	} else {
		net.log = noopLogger{}
	}

	return net
}

func (n *WpaNetwork) dial() (*wpa.Client, error) {
	client, err := wpa.Dial(&wpa.Config{
		CtrlDir:   n.ctrlDir,
		Interface: n.ifname,
		Timeout:   n.timeout,
	})
	if err != nil {
		return nil, errors.Errorf("could not open wpa_supplicant control socket: %v", err)
	}

	return client, nil
}

// Start checks that wpa_supplicant answers on the interface.
func (n *WpaNetwork) Start() error {
	client, err := n.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Request("PING")
	if err != nil {
		return errors.Errorf("could not ping wpa_supplicant: %v", err)
	}

	if strings.TrimSpace(reply) != "PONG" {
		return errors.Errorf("unexpected ping reply %q", reply)
	}

	n.log.Infof("Using wpa_supplicant on %v", n.ifname)

	return nil
}

func (n *WpaNetwork) Stop() error {
	return nil
}

func (n *WpaNetwork) Connect(ssid []byte, psk []byte) error {
	if len(psk) != 32 {
		return errors.Errorf("psk must be 32 bytes, got %d", len(psk))
	}

	client, err := n.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	_, err = client.Command("DISCONNECT")
	if err != nil {
		return err
	}

	_, err = client.Command("REMOVE_NETWORK 0")
	if err != nil {
		n.log.Debugf("Could not remove network 0, none configured before: %v", err)
	}

	reply, err := client.Command("ADD_NETWORK")
	if err != nil {
		return err
	}

	if id := strings.TrimSpace(reply); id != "0" {
		return errors.Errorf("added network has id %v instead of 0", id)
	}

	commands := []string{
		"SET_NETWORK 0 ssid " + ssidArgument(ssid),
		"SET_NETWORK 0 psk " + hex.EncodeToString(psk),
		"SELECT_NETWORK 0",
		"SAVE_CONFIG",
		"RECONFIGURE",
		"RECONNECT",
	}

	for _, cmd := range commands {
		_, err = client.Command(cmd)
		if err != nil {
			return err
		}
	}

	n.log.Infof("Configured network %q on %v", ssid, n.ifname)

	return nil
}

func (n *WpaNetwork) Disconnect() error {
	client, err := n.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	_, err = client.Command("DISCONNECT")
	if err != nil {
		return err
	}

	return nil
}

func (n *WpaNetwork) Status() (*Status, error) {
	client, err := n.dial()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	reply, err := client.Command("STATUS")
	if err != nil {
		return nil, err
	}

	fields := wpa.ParseStatus(reply)

	n.log.Debugf("wpa_supplicant is %v on %v", fields["wpa_state"], n.ifname)

	if fields["wpa_state"] == "INTERFACE_DISABLED" {
		n.log.Warnf("Interface %v is disabled", n.ifname)
	}

	status := &Status{
		LinkUp: fields["wpa_state"] == "COMPLETED",
		IP:     UnknownIP,
	}

	if ip, ok := fields["ip_address"]; ok && ip != "" {
		status.IP = ip
	}

	return status, nil
}

func (n *WpaNetwork) Scan() (string, error) {
	client, err := n.dial()
	if err != nil {
		return "", err
	}
	defer client.Close()

	_, err = client.Command("SCAN")
	if err != nil {
		return "", err
	}

	n.sleep(n.scanDelay)

	reply, err := client.Command("SCAN_RESULTS")
	if err != nil {
		return "", err
	}

	return reply, nil
}

// ssidArgument quotes printable ssids and hex encodes all others, which
// wpa_supplicant accepts as well.
func ssidArgument(ssid []byte) string {
	if utf8.Valid(ssid) && !strings.ContainsAny(string(ssid), "\"\\") {
		printable := true
		for _, r := range string(ssid) {
			if r < ' ' || r == 0x7f {
				printable = false
				break
			}
		}

		if printable {
			return fmt.Sprintf("\"%s\"", ssid)
		}
	}

	return hex.EncodeToString(ssid)
}
