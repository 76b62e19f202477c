package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV layers RLP record encoding on top of a raw Database. Engine packages
// declare the narrow Storage interfaces they consume; KV satisfies all of
// them.
type KV struct {
	db Database
}

// NewKV wraps the supplied database in an RLP record codec.
func NewKV(db Database) *KV {
	return &KV{db: db}
}

// KVPut encodes the value with RLP and stores it under key.
func (kv *KV) KVPut(key []byte, value interface{}) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("storage: kv not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return kv.db.Put(key, encoded)
}

// KVGet decodes the stored record into out. The boolean reports whether the
// key existed; a missing key is not an error.
func (kv *KV) KVGet(key []byte, out interface{}) (bool, error) {
	if kv == nil || kv.db == nil {
		return false, fmt.Errorf("storage: kv not initialised")
	}
	encoded, err := kv.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

// KVAppend appends a raw encoded element to the list stored under key.
func (kv *KV) KVAppend(key []byte, value []byte) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("storage: kv not initialised")
	}
	var list [][]byte
	encoded, err := kv.db.Get(key)
	switch {
	case errors.Is(err, ErrKeyNotFound):
	case err != nil:
		return err
	default:
		if err := rlp.DecodeBytes(encoded, &list); err != nil {
			return fmt.Errorf("storage: decode list %q: %w", key, err)
		}
	}
	list = append(list, append([]byte(nil), value...))
	updated, err := rlp.EncodeToBytes(list)
	if err != nil {
		return fmt.Errorf("storage: encode list %q: %w", key, err)
	}
	return kv.db.Put(key, updated)
}

// KVGetList decodes the list stored under key into out. A missing key yields
// an empty list.
func (kv *KV) KVGetList(key []byte, out interface{}) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("storage: kv not initialised")
	}
	encoded, err := kv.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		empty, err := rlp.EncodeToBytes([][]byte{})
		if err != nil {
			return err
		}
		return rlp.DecodeBytes(empty, out)
	}
	if err != nil {
		return err
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return fmt.Errorf("storage: decode list %q: %w", key, err)
	}
	return nil
}
