package authorize

import (
	"bytes"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/wifiprovd/att"
)

const secret = "some-random-id"

func newTestGuard(t *testing.T) (*Guard, *[]Change) {
	t.Helper()

	var changes []Change
	g, err := NewGuard(&Config{
		Secret:   []byte(secret),
		OnChange: func(change Change) { changes = append(changes, change) },
	})
	require.NoError(t, err)

	return g, &changes
}

func TestNewGuardRequiresSecret(t *testing.T) {
	_, err := NewGuard(&Config{})
	assert.Error(t, err)
}

func TestDigestIsSHA3(t *testing.T) {
	// sha3-256 of the empty string
	d := Digest(nil)
	assert.Equal(t, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", hex.EncodeToString(d[:]))
}

func TestMatchingCommitmentAuthorizes(t *testing.T) {
	g, changes := newTestGuard(t)
	digest := Digest([]byte(secret))

	assert.False(t, g.IsAuthorized())

	require.NoError(t, g.WriteCommitment(0, digest[:]))

	assert.True(t, g.IsAuthorized())
	assert.Equal(t, Timeout, g.Remaining())
	assert.Equal(t, []Change{Granted}, *changes)
}

func TestWrongCommitmentRevokes(t *testing.T) {
	g, changes := newTestGuard(t)
	digest := Digest([]byte(secret))
	require.NoError(t, g.WriteCommitment(0, digest[:]))

	require.NoError(t, g.WriteCommitment(0, bytes.Repeat([]byte{0x42}, CommitmentSize)))

	assert.False(t, g.IsAuthorized())
	assert.Equal(t, time.Duration(0), g.Remaining())
	assert.Equal(t, []Change{Granted, Revoked}, *changes)
}

func TestChunkedCommitment(t *testing.T) {
	g, _ := newTestGuard(t)
	digest := Digest([]byte(secret))

	for offset := 0; offset < CommitmentSize; offset += 20 {
		end := offset + 20
		if end > CommitmentSize {
			end = CommitmentSize
		}

		require.NoError(t, g.WriteCommitment(offset, digest[offset:end]))

		if end < CommitmentSize {
			assert.False(t, g.IsAuthorized(), "partial commitment must not authorize")
		}
	}

	assert.True(t, g.IsAuthorized())
}

func TestCommitmentTooLong(t *testing.T) {
	g, _ := newTestGuard(t)
	digest := Digest([]byte(secret))
	require.NoError(t, g.WriteCommitment(0, digest[:]))

	err := g.WriteCommitment(1, digest[:])
	assert.True(t, errors.Is(err, att.ErrInvalidLength))

	// the rejected write neither changes the buffer nor the authorization
	assert.True(t, g.IsAuthorized())
	assert.Equal(t, digest[:], g.commitment.Bytes())
}

func TestExpiry(t *testing.T) {
	g, changes := newTestGuard(t)
	digest := Digest([]byte(secret))
	require.NoError(t, g.WriteCommitment(0, digest[:]))

	for i := 0; i < 299; i++ {
		require.True(t, g.Tick())
	}

	assert.True(t, g.IsAuthorized())
	assert.Equal(t, time.Second, g.Remaining())
	assert.Equal(t, digest[:], g.commitment.Bytes())

	require.True(t, g.Tick())

	assert.False(t, g.IsAuthorized())
	assert.Equal(t, make([]byte, CommitmentSize), g.commitment.Bytes())
	assert.Equal(t, []Change{Granted, Expired}, *changes)

	// ticking while unauthorized changes nothing
	require.True(t, g.Tick())
	assert.Equal(t, time.Duration(0), g.Remaining())
}

func TestTickSkipsWhenBusy(t *testing.T) {
	g, _ := newTestGuard(t)
	digest := Digest([]byte(secret))
	require.NoError(t, g.WriteCommitment(0, digest[:]))

	g.mu.Lock()
	assert.False(t, g.Tick())
	g.mu.Unlock()

	assert.Equal(t, Timeout, g.Remaining())
}

func TestConcurrentAccess(t *testing.T) {
	g, _ := newTestGuard(t)
	digest := Digest([]byte(secret))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = g.WriteCommitment(0, digest[:])
				g.Tick()
				g.IsAuthorized()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, g.WriteCommitment(0, digest[:]))
	assert.True(t, g.IsAuthorized())
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "granted", Granted.String())
	assert.Equal(t, "revoked", Revoked.String())
	assert.Equal(t, "expired", Expired.String())
	assert.Equal(t, "unknown", Change(0).String())
}
