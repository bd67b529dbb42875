// Package scan implements the scan service. A client starts a scan through
// the status characteristic, then pages through the JSON encoded access
// points by writing a page index to select and reading result.
package scan

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/att"
	"github.com/the-lightning-land/wifiprovd/authorize"
	"github.com/the-lightning-land/wifiprovd/chunk"
	"github.com/the-lightning-land/wifiprovd/notify"
	"github.com/the-lightning-land/wifiprovd/scanresult"
)

const (
	// PageSize is the size of a result page.
	PageSize = 100

	// MaxPages bounds the page count so it fits the select characteristic.
	MaxPages = 255
)

// Scanner runs a blocking scan and returns wpa_supplicant's raw scan
// results.
type Scanner interface {
	Scan() (string, error)
}

type Config struct {
	Scanner    Scanner
	Authorizer authorize.Authorizer
	Logger     Logger

	// OnChange is called with every state change. It runs with the service
	// locked and must not call back into it.
	OnChange func(from State, to State)
}

type Service struct {
	mu        sync.Mutex
	log       Logger
	scanner   Scanner
	auth      authorize.Authorizer
	state     State
	results   []byte
	pageCount uint8
	pageIndex uint8
	page      *chunk.Buffer
	notifier  *notify.Channel
	onChange  func(State, State)
}

func NewService(config *Config) (*Service, error) {
	if config.Scanner == nil {
		return nil, errors.New("scanner is required")
	}

	if config.Authorizer == nil {
		return nil, errors.New("authorizer is required")
	}

	s := &Service{
		scanner:  config.Scanner,
		auth:     config.Authorizer,
		state:    Idle,
		page:     chunk.NewVariable(PageSize),
		onChange: config.OnChange,
	}

	if config.Logger != nil {
		s.log = config.Logger
	} else {
		s.log = noopLogger{}
	}

	s.notifier = notify.NewChannel("scan status", s.log)
	s.discard()

	return s, nil
}

// State returns the current scan state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Pages returns the number of result pages of the last scan.
func (s *Service) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int(s.pageCount)
}

func (s *Service) authorized(op string) error {
	if !s.auth.IsAuthorized() {
		s.log.Warnf("Rejected unauthorized %v", op)
		return errors.Errorf("%v: %w", op, att.ErrNotAuthorized)
	}

	return nil
}

func (s *Service) ReadStatus(offset int, mtu int) ([]byte, error) {
	if err := s.authorized("status read"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return chunk.Slice([]byte{byte(s.state)}, offset, mtu)
}

// WriteStatus starts a scan or discards the results. A scan holds the
// service for its whole duration and the write returns once its outcome
// is known.
func (s *Service) WriteStatus(offset int, value []byte) error {
	if err := s.authorized("status write"); err != nil {
		return err
	}

	if offset != 0 || len(value) != 1 {
		return errors.Errorf("status write of %d bytes at %d: %w", len(value), offset, att.ErrInvalidLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	action, err := Transition(s.state, State(value[0]))
	if err != nil {
		s.log.Warnf("Rejected status write: %v", err)
		return err
	}

	switch action {
	case ActionScan:
		s.setState(Scanning)
		s.scan()
		s.notifier.Push([]byte{byte(s.state)})
	case ActionDiscard:
		s.log.Debugf("Discarding scan results")
		s.discard()
		s.setState(Idle)
	}

	return nil
}

// scan must be called with the mutex held. It runs on the goroutine of the
// incoming D-Bus call; the scheduler never takes the scan lock.
func (s *Service) scan() {
	s.log.Infof("Starting scan")

	text, err := s.scanner.Scan()
	if err != nil {
		s.log.Errorf("Could not scan: %v", err)
		s.setState(Error)
		return
	}

	aps := scanresult.Parse(text)
	encoded := []byte(scanresult.Encode(aps))

	pages := (len(encoded) + PageSize - 1) / PageSize
	if pages >= MaxPages {
		s.log.Errorf("Scan found too many access points, %d pages", pages)
		s.setState(Error)
		return
	}

	s.log.Infof("Scan found %d access points in %d pages", len(aps), pages)

	s.results = encoded
	s.pageCount = uint8(pages)
	s.pageIndex = uint8(pages)
	s.setState(Finished)
}

// discard must be called with the mutex held.
func (s *Service) discard() {
	s.results = make([]byte, PageSize)
	s.pageCount = 0
	s.pageIndex = 0
	_ = s.page.Set(make([]byte, PageSize))
}

// SubscribeStatus registers the receiver of status notifications.
func (s *Service) SubscribeStatus(n notify.Notifier) {
	s.notifier.Subscribe(n)
}

func (s *Service) UnsubscribeStatus() {
	s.notifier.Unsubscribe()
}

// ReadSelect returns the selected page index. Right after a scan it holds
// the page count.
func (s *Service) ReadSelect(offset int, mtu int) ([]byte, error) {
	if err := s.authorized("select read"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return chunk.Slice([]byte{s.pageIndex}, offset, mtu)
}

// WriteSelect selects the page result reads return.
func (s *Service) WriteSelect(offset int, value []byte) error {
	if err := s.authorized("select write"); err != nil {
		return err
	}

	if offset != 0 || len(value) != 1 {
		return errors.Errorf("select write of %d bytes at %d: %w", len(value), offset, att.ErrInvalidLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := value[0]
	if index >= s.pageCount {
		s.log.Warnf("Rejected page %d of %d", index, s.pageCount)
		return errors.Errorf("page %d of %d: %w", index, s.pageCount, att.ErrInvalidTransition)
	}

	start := int(index) * PageSize
	end := start + PageSize
	if end > len(s.results) {
		end = len(s.results)
	}

	err := s.page.Set(s.results[start:end])
	if err != nil {
		return errors.Errorf("could not select page: %w", err)
	}

	s.pageIndex = index

	return nil
}

func (s *Service) ReadResult(offset int, mtu int) ([]byte, error) {
	if err := s.authorized("result read"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.page.Read(offset, mtu)
}

// setState must be called with the mutex held.
func (s *Service) setState(state State) {
	from := s.state
	s.state = state

	if from != state && s.onChange != nil {
		s.onChange(from, state)
	}
}
