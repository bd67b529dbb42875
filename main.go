package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/wifiprovd/api"
	"github.com/the-lightning-land/wifiprovd/authorize"
	"github.com/the-lightning-land/wifiprovd/connect"
	"github.com/the-lightning-land/wifiprovd/network"
	"github.com/the-lightning-land/wifiprovd/pairing"
	"github.com/the-lightning-land/wifiprovd/provdb"
	"github.com/the-lightning-land/wifiprovd/provisioner"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// wifiprovdMain is the true entry point for wifiprovd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func wifiprovdMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig(os.Args[1:])
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.DerivePSK {
		fmt.Println(hex.EncodeToString(connect.DerivePSK(cfg.Passphrase, []byte(cfg.SSID))))
		return nil
	}

	if cfg.PrintCommitment {
		commitment := authorize.Digest([]byte(cfg.BleSecret))
		fmt.Println(hex.EncodeToString(commitment[:]))
		return nil
	}

	// The network backend all connection and scan requests end up in
	var n network.Network

	switch cfg.Net {
	case "wpa":
		n = network.NewWpaNetwork(&network.Config{
			Interface: cfg.Interface,
			CtrlDir:   cfg.Wpa.CtrlDir,
			Timeout:   cfg.Wpa.Timeout,
			ScanDelay: cfg.Wpa.ScanDelay,
			Logger:    log.New().WithField("system", "network"),
		})

		log.Infof("Created wpa_supplicant network on %v.", cfg.Interface)
	case "mock":
		n = network.NewMockNetwork(&network.Config{
			Logger: log.New().WithField("system", "network"),
		})

		log.Info("Created a mock network.")
	default:
		return errors.Errorf("Unknown networking type %v", cfg.Net)
	}

	err = n.Start()
	if err != nil {
		return errors.Errorf("Could not start network: %v", err)
	}

	defer func() {
		err := n.Stop()
		if err != nil {
			log.Errorf("Could not properly shut down network: %v", err)
		} else {
			log.Info("Stopped network.")
		}
	}()

	// The journal of all state changes, optional
	var journal provisioner.Journal

	if cfg.DataDir != "" {
		db, err := provdb.Open(cfg.DataDir)
		if err != nil {
			return errors.Errorf("Could not open journal: %v", err)
		}

		log.Infof("Opened journal in %v", cfg.DataDir)

		defer func() {
			err := db.Close()
			if err != nil {
				log.Errorf("Could not close journal: %v", err)
			} else {
				log.Info("Closed journal.")
			}
		}()

		journal = db
	}

	var a provisioner.Api

	if cfg.Api.Listen != "" {
		a = api.New(&api.Config{
			MaxConns: cfg.Api.MaxConns,
			Log:      log.New().WithField("system", "api"),
		})

		log.Infof("Created API")
	}

	// central controller for everything the daemon provisions
	p, err := provisioner.NewProvisioner(&provisioner.Config{
		Secret:    []byte(cfg.BleSecret),
		Network:   n,
		Journal:   journal,
		Api:       a,
		ApiListen: cfg.Api.Listen,
		Logger:    log.New().WithField("system", "provisioner"),
	})
	if err != nil {
		return errors.Errorf("Could not create provisioner: %v", err)
	}

	log.Infof("Created provisioner.")

	// create subsystem responsible for pairing
	pairingController, err := pairing.NewController(&pairing.Config{
		Adapter:       cfg.Adapter,
		LocalName:     cfg.Ble.LocalName,
		Authorization: p.Guard,
		Connection:    p.Connection,
		Scan:          p.Scan,
		Logger:        log.New().WithField("system", "pairing"),
	})
	if err != nil {
		return errors.Errorf("Could not create pairing controller: %v", err)
	}

	log.Infof("Created pairing controller.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping provisioner...")
		cancel()
		p.Shutdown()
	}()

	done := make(chan error, 1)
	go func() {
		err := p.Run()
		if err != nil {
			cancel()
		}

		done <- err
	}()

	err = pairingController.Start(ctx)
	if errors.Is(err, context.Canceled) {
		err = <-done
		if err != nil {
			return errors.Errorf("Failed running provisioner: %v", err)
		}

		return nil
	} else if err != nil {
		p.Shutdown()
		<-done
		return errors.Errorf("Could not start pairing controller: %v", err)
	}

	log.Infof("Started pairing controller.")

	defer func() {
		err := pairingController.Stop()
		if err != nil {
			log.Errorf("Could not properly shut down pairing controller: %v", err)
		}

		log.Infof("Stopped pairing controller.")
	}()

	_, err = daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warnf("Could not notify systemd: %v", err)
	}

	// blocks until the provisioner is shut down
	err = <-done
	if err != nil {
		return errors.Errorf("Failed running provisioner: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := wifiprovdMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running wifiprovd.")
		}
		os.Exit(1)
	}
}
