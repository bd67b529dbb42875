package provdb

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

func setCBOR(bucket *bbolt.Bucket, key []byte, v interface{}) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return errors.Errorf("could not marshal data: %v", err)
	}

	err = bucket.Put(key, payload)
	if err != nil {
		return errors.Errorf("could not store data: %v", err)
	}

	return nil
}

func getCBOR(payload []byte, v interface{}) error {
	err := decMode.Unmarshal(payload, v)
	if err != nil {
		return errors.Errorf("could not unmarshal data: %v", err)
	}

	return nil
}
