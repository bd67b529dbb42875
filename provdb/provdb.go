// Package provdb keeps a journal of provisioning events in a bbolt
// database. Credentials never end up in the journal.
package provdb

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const (
	dbFileName = "wifiprovd.db"

	// MaxEvents bounds the journal, older events are pruned on append.
	MaxEvents = 1000
)

var eventsBucket = []byte("events")

type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindConnection    Kind = "connection"
	KindScan          Kind = "scan"
)

// Event is a state change of one of the services.
type Event struct {
	Seq  uint64    `cbor:"1,keyasint" json:"seq"`
	Time time.Time `cbor:"2,keyasint" json:"time"`
	Kind Kind      `cbor:"3,keyasint" json:"kind"`
	From string    `cbor:"4,keyasint,omitempty" json:"from,omitempty"`
	To   string    `cbor:"5,keyasint" json:"to"`
}

type DB struct {
	*bbolt.DB
	now  func() time.Time
	keep int
}

// Open opens or creates the journal in dir.
func Open(dir string) (*DB, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, errors.Errorf("could not create data dir: %v", err)
	}

	bdb, err := bbolt.Open(filepath.Join(dir, dbFileName), 0600, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, errors.Errorf("could not open database: %v", err)
	}

	db := &DB{
		DB:   bdb,
		now:  time.Now,
		keep: MaxEvents,
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errors.Errorf("could not create events bucket: %v", err)
	}

	return db, nil
}

// Append stores e, assigning its sequence number and, when unset, its time.
func (db *DB) Append(e *Event) error {
	if e.Time.IsZero() {
		e.Time = db.now()
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(eventsBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return errors.Errorf("could not get sequence: %v", err)
		}

		e.Seq = seq

		err = setCBOR(bucket, seqKey(seq), e)
		if err != nil {
			return err
		}

		return prune(bucket, seq, db.keep)
	})
}

// List returns up to limit events, newest first. A limit of zero or less
// returns all events.
func (db *DB) List(limit int) ([]*Event, error) {
	events := []*Event{}

	err := db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}

			e := &Event{}

			err := getCBOR(v, e)
			if err != nil {
				return err
			}

			events = append(events, e)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// prune deletes the events that fell out of the last keep sequence numbers.
func prune(bucket *bbolt.Bucket, seq uint64, keep int) error {
	if seq <= uint64(keep) {
		return nil
	}

	cutoff := seq - uint64(keep)

	var keys [][]byte

	c := bucket.Cursor()
	for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) <= cutoff; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	for _, k := range keys {
		err := bucket.Delete(k)
		if err != nil {
			return errors.Errorf("could not prune event: %v", err)
		}
	}

	return nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	return key
}
