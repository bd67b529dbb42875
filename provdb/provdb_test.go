package provdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestAppendAndList(t *testing.T) {
	db := openTestDB(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	db.now = func() time.Time { return now }

	require.NoError(t, db.Append(&Event{Kind: KindAuthorization, To: "granted"}))
	require.NoError(t, db.Append(&Event{Kind: KindConnection, From: "idle", To: "connecting"}))
	require.NoError(t, db.Append(&Event{Kind: KindScan, From: "idle", To: "scanning"}))

	events, err := db.List(0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, KindScan, events[0].Kind)
	assert.Equal(t, "scanning", events[0].To)

	assert.Equal(t, uint64(1), events[2].Seq)
	assert.Equal(t, KindAuthorization, events[2].Kind)
	assert.Empty(t, events[2].From)
	assert.True(t, now.Equal(events[2].Time), "time keeps nanoseconds")

	limited, err := db.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, uint64(2), limited[1].Seq)
}

func TestListEmpty(t *testing.T) {
	db := openTestDB(t)

	events, err := db.List(10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	db.keep = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Append(&Event{Kind: KindScan, To: "idle"}))
	}

	events, err := db.List(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(5), events[0].Seq)
	assert.Equal(t, uint64(3), events[2].Seq)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.Append(&Event{Kind: KindConnection, To: "connected"}))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Append(&Event{Kind: KindConnection, To: "idle"}))

	events, err := db.List(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), events[0].Seq)
	assert.Equal(t, "connected", events[1].To)
}
