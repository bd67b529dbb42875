// Package authorize implements the authorization service. A client proves
// possession of the shared secret by writing its SHA3-256 digest to the
// commitment characteristic, which grants access to the other services for
// a limited time.
package authorize

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/chunk"
	"golang.org/x/crypto/sha3"
)

const (
	// CommitmentSize is the size of the commitment value, a SHA3-256 digest.
	CommitmentSize = 32

	// Timeout is how long a matching commitment keeps the client authorized.
	Timeout = 300 * time.Second

	tickInterval = time.Second
)

// Authorizer is the read only view other services get of the guard.
type Authorizer interface {
	IsAuthorized() bool
}

// check Guard compliance to its interface during compile time
var _ Authorizer = (*Guard)(nil)

type Config struct {
	// Secret is the shared secret whose digest the client has to write.
	Secret []byte

	Logger Logger

	// OnChange is called whenever the authorization changes. It runs with
	// the guard locked and must not call back into it.
	OnChange func(change Change)
}

// Change is a transition of the authorization.
type Change uint8

const (
	Granted Change = iota + 1
	Revoked
	Expired
)

func (c Change) String() string {
	switch c {
	case Granted:
		return "granted"
	case Revoked:
		return "revoked"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Guard holds the commitment written by the client and the remaining
// authorization time.
type Guard struct {
	mu         sync.Mutex
	log        Logger
	commitment *chunk.Buffer
	expected   [CommitmentSize]byte
	remaining  time.Duration
	onChange   func(Change)
}

// Digest returns the commitment a client has to write for secret.
func Digest(secret []byte) [CommitmentSize]byte {
	return sha3.Sum256(secret)
}

func NewGuard(config *Config) (*Guard, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("secret must not be empty")
	}

	guard := &Guard{
		commitment: chunk.NewFixed(CommitmentSize),
		expected:   Digest(config.Secret),
		onChange:   config.OnChange,
	}

	if config.Logger != nil {
		guard.log = config.Logger
	} else {
		guard.log = noopLogger{}
	}

	return guard, nil
}

// WriteCommitment splices value into the commitment at offset and
// re-evaluates the authorization against the full commitment.
func (g *Guard) WriteCommitment(offset int, value []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.log.Debugf("Commitment write of %d bytes at offset %d", len(value), offset)

	err := g.commitment.Write(offset, value)
	if err != nil {
		g.log.Errorf("Commitment write rejected: %v", err)
		return errors.Errorf("could not write commitment: %w", err)
	}

	// A client limited to short writes produces mismatches until its last
	// chunk lands, so the commitment is left as is on mismatch.
	if subtle.ConstantTimeCompare(g.commitment.Bytes(), g.expected[:]) == 1 {
		g.log.Infof("Authorization granted for %v.", Timeout)
		g.setRemaining(Timeout, Granted)
	} else {
		g.log.Warnf("Commitment does not match, not authorized.")
		g.setRemaining(0, Revoked)
	}

	return nil
}

// IsAuthorized reports whether a matching commitment was written within
// the authorization timeout.
func (g *Guard) IsAuthorized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.remaining > 0
}

// Remaining returns the time left until the authorization expires.
func (g *Guard) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.remaining
}

// Tick counts the authorization down by one second. When it runs out the
// commitment is cleared, so the client has to write it again in full.
// Tick returns false without doing anything when the guard is busy.
func (g *Guard) Tick() bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()

	if g.remaining <= 0 {
		return true
	}

	remaining := g.remaining - tickInterval
	if remaining <= 0 {
		g.log.Infof("Authorization expired.")
		g.commitment.Reset()
		remaining = 0
	}

	g.setRemaining(remaining, Expired)

	return true
}

// setRemaining must be called with the mutex held.
func (g *Guard) setRemaining(remaining time.Duration, change Change) {
	was := g.remaining > 0
	g.remaining = remaining

	if is := remaining > 0; is != was && g.onChange != nil {
		g.onChange(change)
	}
}
