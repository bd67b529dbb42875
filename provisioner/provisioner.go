// Package provisioner owns the authorization, connection and scan services
// and drives them with a one second scheduler.
package provisioner

import (
	"net"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/authorize"
	"github.com/the-lightning-land/wifiprovd/connect"
	"github.com/the-lightning-land/wifiprovd/network"
	"github.com/the-lightning-land/wifiprovd/provdb"
	"github.com/the-lightning-land/wifiprovd/scan"
)

const (
	tickInterval = time.Second

	// pending journal events, changes beyond this are dropped
	eventBacklog = 64
)

// Journal records the state changes of the services.
type Journal interface {
	Append(e *provdb.Event) error
	List(limit int) ([]*provdb.Event, error)
}

// Api is the local diagnostics api served while the provisioner runs.
type Api interface {
	SetProvisioner(p *Provisioner)
	Serve(l net.Listener) error
}

type Config struct {
	Secret  []byte
	Network network.Network

	// Journal is optional, state changes are only logged without it.
	Journal Journal

	// Api is optional and only served when ApiListen is set.
	Api       Api
	ApiListen string

	Logger Logger
}

// Status is a snapshot of all services.
type Status struct {
	Authorized bool   `json:"authorized"`
	Remaining  int    `json:"remaining"`
	Connection string `json:"connection"`
	Scan       string `json:"scan"`
	Pages      int    `json:"pages"`
}

type Provisioner struct {
	log          Logger
	journal      Journal
	api          Api
	apiListen    string
	mu           sync.Mutex
	apiListeners []net.Listener
	tick         time.Duration
	events       chan *provdb.Event
	done         chan struct{}
	shutdown     sync.Once

	Guard      *authorize.Guard
	Connection *connect.Service
	Scan       *scan.Service
}

func NewProvisioner(config *Config) (*Provisioner, error) {
	p := &Provisioner{
		journal:   config.Journal,
		api:       config.Api,
		apiListen: config.ApiListen,
		tick:      tickInterval,
		events:    make(chan *provdb.Event, eventBacklog),
		done:      make(chan struct{}),
	}

	if config.Logger != nil {
		p.log = config.Logger
	} else {
		p.log = noopLogger{}
	}

	if config.Network == nil {
		return nil, errors.New("network is required")
	}

	var err error

	p.Guard, err = authorize.NewGuard(&authorize.Config{
		Secret:   config.Secret,
		Logger:   p.log,
		OnChange: p.authorizationChanged,
	})
	if err != nil {
		return nil, errors.Errorf("could not create authorization: %v", err)
	}

	p.Connection, err = connect.NewService(&connect.Config{
		Network:    config.Network,
		Authorizer: p.Guard,
		Logger:     p.log,
		OnChange: func(from connect.State, to connect.State) {
			p.record(provdb.KindConnection, from.String(), to.String())
		},
	})
	if err != nil {
		return nil, errors.Errorf("could not create connection service: %v", err)
	}

	p.Scan, err = scan.NewService(&scan.Config{
		Scanner:    config.Network,
		Authorizer: p.Guard,
		Logger:     p.log,
		OnChange: func(from scan.State, to scan.State) {
			p.record(provdb.KindScan, from.String(), to.String())
		},
	})
	if err != nil {
		return nil, errors.Errorf("could not create scan service: %v", err)
	}

	if p.api != nil {
		p.api.SetProvisioner(p)
	}

	return p, nil
}

func (p *Provisioner) authorizationChanged(change authorize.Change) {
	p.record(provdb.KindAuthorization, "", change.String())
}

// record queues an event for the journal. It is called with a service
// locked, so it never blocks.
func (p *Provisioner) record(kind provdb.Kind, from string, to string) {
	p.log.Debugf("%v changed from %v to %v", kind, from, to)

	select {
	case p.events <- &provdb.Event{Time: time.Now(), Kind: kind, From: from, To: to}:
	default:
		p.log.Warnf("Event backlog full, dropping %v change to %v", kind, to)
	}
}

func (p *Provisioner) Run() error {
	p.log.Infof("Starting provisioner")

	if p.api != nil && p.apiListen != "" {
		err := p.serveApi()
		if err != nil {
			return errors.Errorf("could not serve api: %v", err)
		}
	}

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !p.Guard.Tick() {
				p.log.Debugf("Authorization busy, skipping tick")
			}

			if !p.Connection.Tick() {
				p.log.Debugf("Connection busy, skipping tick")
			}
		case e := <-p.events:
			p.append(e)
		case <-p.done:
			p.flush()
			p.log.Infof("Provisioner stopped")
			return nil
		}
	}
}

func (p *Provisioner) serveApi() error {
	lis, err := net.Listen("tcp", p.apiListen)
	if err != nil {
		return err
	}

	p.log.Infof("Listening for api requests on %v", lis.Addr())

	p.mu.Lock()
	p.apiListeners = append(p.apiListeners, lis)
	p.mu.Unlock()

	go func() {
		err := p.api.Serve(lis)
		if err != nil {
			select {
			case <-p.done:
			default:
				p.log.Errorf("Could not serve api: %v", err)
			}
		}
	}()

	return nil
}

func (p *Provisioner) flush() {
	for {
		select {
		case e := <-p.events:
			p.append(e)
		default:
			return
		}
	}
}

func (p *Provisioner) append(e *provdb.Event) {
	if p.journal == nil {
		return
	}

	err := p.journal.Append(e)
	if err != nil {
		p.log.Errorf("Could not store %v event: %v", e.Kind, err)
	}
}

// Shutdown stops Run and closes the api listeners. It is safe to call more
// than once.
func (p *Provisioner) Shutdown() {
	p.shutdown.Do(func() {
		close(p.done)

		p.mu.Lock()
		defer p.mu.Unlock()

		for _, lis := range p.apiListeners {
			err := lis.Close()
			if err != nil {
				p.log.Errorf("Could not close listener: %v", err)
			}
		}
	})
}

func (p *Provisioner) Status() *Status {
	return &Status{
		Authorized: p.Guard.IsAuthorized(),
		Remaining:  int(p.Guard.Remaining() / time.Second),
		Connection: p.Connection.State().String(),
		Scan:       p.Scan.State().String(),
		Pages:      p.Scan.Pages(),
	}
}

// Events returns up to limit journal entries, newest first.
func (p *Provisioner) Events(limit int) ([]*provdb.Event, error) {
	if p.journal == nil {
		return []*provdb.Event{}, nil
	}

	return p.journal.List(limit)
}
