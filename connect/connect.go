// Package connect implements the connection service. An authorized client
// writes the ssid and the pre-shared key of a network and then asks the
// daemon to connect to it through the state characteristic.
package connect

import (
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/att"
	"github.com/the-lightning-land/wifiprovd/authorize"
	"github.com/the-lightning-land/wifiprovd/chunk"
	"github.com/the-lightning-land/wifiprovd/network"
	"github.com/the-lightning-land/wifiprovd/notify"
)

// MaxSSIDSize is the longest ssid 802.11 allows.
const MaxSSIDSize = 32

// Network is the part of the wifi backend the connection service drives.
type Network interface {
	Connect(ssid []byte, psk []byte) error
	Disconnect() error
	Status() (*network.Status, error)
}

type Config struct {
	Network    Network
	Authorizer authorize.Authorizer
	Logger     Logger

	// OnChange is called with every state change. It runs with the service
	// locked and must not call back into it.
	OnChange func(from State, to State)
}

type Service struct {
	mu       sync.Mutex
	log      Logger
	net      Network
	auth     authorize.Authorizer
	state    State
	ssid     *chunk.Buffer
	psk      *chunk.Buffer
	notifier *notify.Channel
	onChange func(State, State)
}

func NewService(config *Config) (*Service, error) {
	if config.Network == nil {
		return nil, errors.New("network is required")
	}

	if config.Authorizer == nil {
		return nil, errors.New("authorizer is required")
	}

	s := &Service{
		net:      config.Network,
		auth:     config.Authorizer,
		state:    Idle,
		ssid:     chunk.NewVariable(MaxSSIDSize),
		psk:      chunk.NewFixed(PSKSize),
		onChange: config.OnChange,
	}

	if config.Logger != nil {
		s.log = config.Logger
	} else {
		s.log = noopLogger{}
	}

	s.notifier = notify.NewChannel("state", s.log)

	return s, nil
}

// State returns the current connection state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Service) authorized(op string) error {
	if !s.auth.IsAuthorized() {
		s.log.Warnf("Rejected unauthorized %v", op)
		return errors.Errorf("%v: %w", op, att.ErrNotAuthorized)
	}

	return nil
}

func (s *Service) ReadState(offset int, mtu int) ([]byte, error) {
	if err := s.authorized("state read"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return chunk.Slice([]byte{byte(s.state)}, offset, mtu)
}

// WriteState runs the transition the client asks for. The network is
// driven with the service locked, so concurrent writes wait for it.
func (s *Service) WriteState(offset int, value []byte) error {
	if err := s.authorized("state write"); err != nil {
		return err
	}

	if offset != 0 || len(value) != 1 {
		return errors.Errorf("state write of %d bytes at %d: %w", len(value), offset, att.ErrInvalidLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requested := State(value[0])

	action, err := Transition(s.state, requested)
	if err != nil {
		s.log.Warnf("Rejected state write: %v", err)
		return err
	}

	s.log.Infof("Client requested %v while %v", action, s.state)

	switch action {
	case ActionConnect:
		ssid := s.ssid.Bytes()

		s.log.Infof("Connecting to %q with psk %v", ssid, mask(s.psk.Len()))

		err = s.net.Connect(ssid, s.psk.Bytes())
		if err != nil {
			s.log.Errorf("Could not connect: %v", err)
			s.setState(Failed)
			return errors.Errorf("connect: %v: %w", err, att.ErrExternalOperationFailed)
		}

		s.setState(Connecting)
	case ActionDisconnect:
		err = s.net.Disconnect()
		if err != nil {
			s.log.Errorf("Could not disconnect: %v", err)
			s.setState(Failed)
			return errors.Errorf("disconnect: %v: %w", err, att.ErrExternalOperationFailed)
		}

		s.setState(Idle)
	}

	return nil
}

// SubscribeState registers the receiver of state notifications.
func (s *Service) SubscribeState(n notify.Notifier) {
	s.notifier.Subscribe(n)
}

func (s *Service) UnsubscribeState() {
	s.notifier.Unsubscribe()
}

func (s *Service) ReadSSID(offset int, mtu int) ([]byte, error) {
	if err := s.authorized("ssid read"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ssid.Read(offset, mtu)
}

func (s *Service) WriteSSID(offset int, value []byte) error {
	if err := s.authorized("ssid write"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ssid.Write(offset, value)
	if err != nil {
		return errors.Errorf("could not write ssid: %w", err)
	}

	s.log.Debugf("Ssid is now %q", s.ssid.Bytes())

	return nil
}

func (s *Service) WritePSK(offset int, value []byte) error {
	if err := s.authorized("psk write"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.psk.Write(offset, value)
	if err != nil {
		return errors.Errorf("could not write psk: %w", err)
	}

	s.log.Debugf("Psk write of %v at %d", mask(len(value)), offset)

	return nil
}

// Tick polls the network while connecting and settles the state once the
// link is up with an address, or fails it when the status is unavailable.
// Tick returns false without doing anything when the service is busy.
func (s *Service) Tick() bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	if s.state != Connecting {
		return true
	}

	status, err := s.net.Status()
	if err != nil {
		s.log.Errorf("Could not get network status: %v", err)
		s.setState(Failed)
		return true
	}

	if status.Connected() {
		s.log.Infof("Connected with ip %v", status.IP)
		s.setState(Connected)
	}

	return true
}

// setState must be called with the mutex held.
func (s *Service) setState(state State) {
	from := s.state
	s.state = state

	if from != state && s.onChange != nil {
		s.onChange(from, state)
	}

	s.notifier.Push([]byte{byte(state)})
}

func mask(n int) string {
	return strings.Repeat("*", n)
}
