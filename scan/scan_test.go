package scan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/wifiprovd/att"
)

type fakeAuthorizer struct {
	authorized bool
}

func (a *fakeAuthorizer) IsAuthorized() bool {
	return a.authorized
}

type fakeScanner struct {
	mu    sync.Mutex
	text  string
	err   error
	scans int
}

func (s *fakeScanner) Scan() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans++

	return s.text, s.err
}

type recorder struct {
	values [][]byte
}

func (r *recorder) Notify(value []byte) error {
	r.values = append(r.values, value)
	return nil
}

// scanText renders one scan result line per ssid.
func scanText(ssids ...string) string {
	var b strings.Builder

	b.WriteString("bssid / frequency / signal level / flags / ssid\n")
	for _, ssid := range ssids {
		fmt.Fprintf(&b, "01:02:03:04:05:06\t2412\t-40\t[WPA2-PSK-CCMP][ESS]\t%s\n", ssid)
	}

	return b.String()
}

func newTestService(t *testing.T, scanner *fakeScanner) (*Service, *fakeAuthorizer, *recorder) {
	t.Helper()

	auth := &fakeAuthorizer{authorized: true}

	s, err := NewService(&Config{
		Scanner:    scanner,
		Authorizer: auth,
	})
	require.NoError(t, err)

	rec := &recorder{}
	s.SubscribeStatus(rec)

	return s, auth, rec
}

func readAll(t *testing.T, s *Service) []byte {
	t.Helper()

	count, err := s.ReadSelect(0, 0)
	require.NoError(t, err)

	var all []byte
	for i := byte(0); i < count[0]; i++ {
		require.NoError(t, s.WriteSelect(0, []byte{i}))

		page, err := s.ReadResult(0, 0)
		require.NoError(t, err)
		all = append(all, page...)
	}

	return all
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from      State
		requested State
		action    Action
		wantErr   error
	}{
		{Idle, Scanning, ActionScan, nil},
		{Scanning, Scanning, 0, att.ErrInvalidTransition},
		{Finished, Scanning, 0, att.ErrInvalidTransition},
		{Error, Scanning, 0, att.ErrInvalidTransition},
		{Idle, Idle, ActionDiscard, nil},
		{Finished, Idle, ActionDiscard, nil},
		{Error, Idle, ActionDiscard, nil},
		{Idle, Finished, 0, att.ErrInvalidValue},
		{Idle, Error, 0, att.ErrInvalidValue},
		{Finished, State(9), 0, att.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.requested.String(), func(t *testing.T) {
			action, err := Transition(tt.from, tt.requested)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestInitialState(t *testing.T) {
	s, _, _ := newTestService(t, &fakeScanner{})

	status, err := s.ReadStatus(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(Idle)}, status)

	index, err := s.ReadSelect(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, index)

	page, err := s.ReadResult(0, 0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, PageSize), page)

	assert.True(t, errors.Is(s.WriteSelect(0, []byte{0}), att.ErrInvalidTransition))
}

func TestScanPages(t *testing.T) {
	ssids := []string{
		strings.Repeat("a", 20),
		strings.Repeat("b", 20),
		strings.Repeat("c", 20),
	}
	scanner := &fakeScanner{text: scanText(ssids...)}
	s, _, rec := newTestService(t, scanner)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))

	assert.Equal(t, Finished, s.State())
	assert.Equal(t, 3, s.Pages())
	assert.Equal(t, [][]byte{{byte(Finished)}}, rec.values)

	// the index reads as the page count right after the scan
	index, err := s.ReadSelect(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, index)

	var sizes []int
	var all []byte
	for i := byte(0); i < 3; i++ {
		require.NoError(t, s.WriteSelect(0, []byte{i}))

		index, err := s.ReadSelect(0, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{i}, index)

		page, err := s.ReadResult(0, 0)
		require.NoError(t, err)
		sizes = append(sizes, len(page))
		all = append(all, page...)
	}

	assert.Equal(t, []int{100, 100, 50}, sizes)
	assert.Len(t, all, 250)

	var records []map[string]string
	require.NoError(t, json.Unmarshal(all, &records))
	require.Len(t, records, 3)
	assert.Equal(t, ssids[2], records[2]["ssid"])

	err = s.WriteSelect(0, []byte{3})
	assert.True(t, errors.Is(err, att.ErrInvalidTransition))

	// the rejected select keeps the previous page
	index, err = s.ReadSelect(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, index)
}

func TestResultChunkedRead(t *testing.T) {
	scanner := &fakeScanner{text: scanText("home")}
	s, _, _ := newTestService(t, scanner)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))
	require.NoError(t, s.WriteSelect(0, []byte{0}))

	whole, err := s.ReadResult(0, 0)
	require.NoError(t, err)

	var chunked []byte
	for offset := 0; offset < len(whole); offset += 20 {
		part, err := s.ReadResult(offset, 20)
		require.NoError(t, err)
		chunked = append(chunked, part...)
	}

	assert.Equal(t, whole, chunked)

	_, err = s.ReadResult(len(whole)+1, 20)
	assert.True(t, errors.Is(err, att.ErrInvalidOffset))
}

func TestScanFailure(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("FAIL")}
	s, _, rec := newTestService(t, scanner)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))

	assert.Equal(t, Error, s.State())
	assert.Equal(t, 0, s.Pages())
	assert.Equal(t, [][]byte{{byte(Error)}}, rec.values)
}

func TestTooManyPages(t *testing.T) {
	ssids := make([]string, 400)
	for i := range ssids {
		ssids[i] = strings.Repeat("x", 32)
	}

	scanner := &fakeScanner{text: scanText(ssids...)}
	s, _, rec := newTestService(t, scanner)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))

	assert.Equal(t, Error, s.State())
	assert.Equal(t, 0, s.Pages())
	assert.Equal(t, [][]byte{{byte(Error)}}, rec.values)
}

func TestScanRequiresDiscard(t *testing.T) {
	scanner := &fakeScanner{text: scanText("home")}
	s, _, rec := newTestService(t, scanner)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))

	err := s.WriteStatus(0, []byte{byte(Scanning)})
	assert.True(t, errors.Is(err, att.ErrInvalidTransition))
	assert.Equal(t, 1, scanner.scans)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Idle)}))

	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 0, s.Pages())

	index, err := s.ReadSelect(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, index)

	page, err := s.ReadResult(0, 0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, PageSize), page)

	assert.True(t, errors.Is(s.WriteSelect(0, []byte{0}), att.ErrInvalidTransition))

	// discarding is not notified
	assert.Len(t, rec.values, 1)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))
	assert.Equal(t, 2, scanner.scans)
	assert.Equal(t, Finished, s.State())
}

func TestEmptyScan(t *testing.T) {
	s, _, _ := newTestService(t, &fakeScanner{text: ""})

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))

	assert.Equal(t, Finished, s.State())
	assert.Equal(t, "[]", string(readAll(t, s)))
}

func TestInvalidWrites(t *testing.T) {
	s, _, _ := newTestService(t, &fakeScanner{})

	assert.True(t, errors.Is(s.WriteStatus(0, nil), att.ErrInvalidLength))
	assert.True(t, errors.Is(s.WriteStatus(0, []byte{1, 0}), att.ErrInvalidLength))
	assert.True(t, errors.Is(s.WriteStatus(0, []byte{byte(Finished)}), att.ErrInvalidValue))
	assert.True(t, errors.Is(s.WriteSelect(0, []byte{0, 0}), att.ErrInvalidLength))
}

func TestUnauthorized(t *testing.T) {
	scanner := &fakeScanner{}
	s, auth, _ := newTestService(t, scanner)
	auth.authorized = false

	assert.True(t, errors.Is(s.WriteStatus(0, []byte{byte(Scanning)}), att.ErrNotAuthorized))
	assert.True(t, errors.Is(s.WriteSelect(0, []byte{0}), att.ErrNotAuthorized))

	_, err := s.ReadStatus(0, 0)
	assert.True(t, errors.Is(err, att.ErrNotAuthorized))

	_, err = s.ReadSelect(0, 0)
	assert.True(t, errors.Is(err, att.ErrNotAuthorized))

	_, err = s.ReadResult(0, 0)
	assert.True(t, errors.Is(err, att.ErrNotAuthorized))

	assert.Equal(t, 0, scanner.scans)
}

func TestOnChange(t *testing.T) {
	var changes []State

	s, err := NewService(&Config{
		Scanner:    &fakeScanner{text: scanText("home")},
		Authorizer: &fakeAuthorizer{authorized: true},
		OnChange: func(from State, to State) {
			changes = append(changes, to)
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.WriteStatus(0, []byte{byte(Scanning)}))
	require.NoError(t, s.WriteStatus(0, []byte{byte(Idle)}))

	assert.Equal(t, []State{Scanning, Finished, Idle}, changes)
}
