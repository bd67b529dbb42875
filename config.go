package main

import (
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/the-lightning-land/wifiprovd/api"
	"github.com/the-lightning-land/wifiprovd/network"
	"github.com/the-lightning-land/wifiprovd/network/wpa"
	"github.com/the-lightning-land/wifiprovd/pairing"
)

const (
	defaultInterface = "wlan0"
	defaultDataDir   = "/var/lib/wifiprovd"
	defaultNet       = "wpa"
)

type bleConfig struct {
	LocalName string `long:"localname" env:"SCAN_SERVICE_BEACON" description:"Local name in the bluetooth advertisement"`
}

type wpaConfig struct {
	CtrlDir   string        `long:"ctrldir" description:"Directory of the wpa_supplicant control sockets"`
	Timeout   time.Duration `long:"timeout" description:"Timeout of a single wpa_supplicant request"`
	ScanDelay time.Duration `long:"scandelay" description:"Time given to wpa_supplicant to collect scan results"`
}

type apiConfig struct {
	Listen   string `long:"listen" description:"Address of the local diagnostics api, disabled when empty"`
	MaxConns int    `long:"maxconns" description:"Maximum number of concurrent api connections"`
}

type config struct {
	ShowVersion bool   `short:"v" long:"version" description:"Display version information and exit"`
	Debug       bool   `long:"debug" description:"Start in debug mode"`
	ConfigFile  string `long:"configfile" description:"Path to an INI configuration file"`

	Interface string `short:"i" long:"interface" description:"Wireless interface to provision"`
	BleSecret string `short:"b" long:"ble-secret" env:"BLE_SECRET" description:"Shared secret clients have to prove to be authorized"`
	Adapter   string `long:"adapter" description:"Bluetooth adapter to use (ex. hci0), the first one found when empty"`
	Net       string `long:"net" description:"Networking backend" choice:"wpa" choice:"mock"`
	DataDir   string `long:"datadir" description:"Directory of the event journal, disabled when empty"`

	PrintCommitment bool   `long:"print-commitment" description:"Print the commitment clients have to write for the secret and exit"`
	DerivePSK       bool   `long:"derive-psk" description:"Print the psk for --ssid and --passphrase and exit"`
	SSID            string `long:"ssid" description:"SSID used by --derive-psk"`
	Passphrase      string `long:"passphrase" description:"Passphrase used by --derive-psk"`

	Ble *bleConfig `group:"Bluetooth" namespace:"ble"`
	Wpa *wpaConfig `group:"wpa_supplicant" namespace:"wpa"`
	Api *apiConfig `group:"API" namespace:"api"`
}

func defaultConfig() config {
	return config{
		Interface: defaultInterface,
		Net:       defaultNet,
		DataDir:   defaultDataDir,
		Ble: &bleConfig{
			LocalName: pairing.DefaultLocalName,
		},
		Wpa: &wpaConfig{
			CtrlDir:   wpa.DefaultCtrlDir,
			Timeout:   wpa.DefaultTimeout,
			ScanDelay: network.DefaultScanDelay,
		},
		Api: &apiConfig{
			MaxConns: api.DefaultMaxConns,
		},
	}
}

// loadConfig parses args, then the config file they name if any, and args
// once more so flags win over the file.
func loadConfig(args []string) (*config, error) {
	preCfg := defaultConfig()

	_, err := flags.NewParser(&preCfg, flags.Default).ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if preCfg.ShowVersion || preCfg.ConfigFile == "" {
		return &preCfg, preCfg.validate()
	}

	cfg := defaultConfig()
	parser := flags.NewParser(&cfg, flags.Default)

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	return &cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.ShowVersion {
		return nil
	}

	if c.DerivePSK {
		if c.SSID == "" || c.Passphrase == "" {
			return &flags.Error{
				Type:    flags.ErrRequired,
				Message: "--derive-psk needs --ssid and --passphrase",
			}
		}

		return nil
	}

	if c.BleSecret == "" {
		return &flags.Error{
			Type:    flags.ErrRequired,
			Message: "the required flag `-b, --ble-secret' was not specified",
		}
	}

	return nil
}
