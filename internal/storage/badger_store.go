// internal/storage/badger_store.go
package storage

import (
	"encoding"
	"fmt"
	"strings"
	"time"

	"blamer/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
	encoding.BinaryMarshaler
}

// Upsert retries a transaction that lost a write conflict, waiting a little
// longer after every attempt.
const (
	maxConflictRetries = 10
	conflictBackoff    = 2 * time.Millisecond
)

// BadgerStore provides generic storage operations for binary encoded
// entities under a key prefix.
type BadgerStore struct {
	db         *badger.DB
	prefix     string
	compressor *Compressor
}

// NewBadgerStore creates a store. compressor may be nil, in which case
// values are written uncompressed.
func NewBadgerStore(db *badger.DB, prefix string, compressor *Compressor) *BadgerStore {
	return &BadgerStore{
		db:         db,
		prefix:     prefix,
		compressor: compressor,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), fmt.Sprintf("%s:", s.prefix))
}

func (s *BadgerStore) encode(entity Entity) ([]byte, error) {
	if entity.GetID() == "" {
		return nil, errors.ValidationError("entity ID cannot be empty", nil)
	}
	data, err := entity.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling entity: %w", err)
	}
	return s.compressor.Compress(data), nil
}

// Put writes entity, replacing any stored value.
func (s *BadgerStore) Put(entity Entity) error {
	data, err := s.encode(entity)
	if err != nil {
		return err
	}

	key := s.makeKey(entity.GetID())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) readValue(item *badger.Item) ([]byte, error) {
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return s.compressor.Decompress(val)
}

func (s *BadgerStore) Get(id string, entity encoding.BinaryUnmarshaler) error {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		val, err := s.readValue(item)
		if err != nil {
			return err
		}
		return entity.UnmarshalBinary(val)
	})

	if err == badger.ErrKeyNotFound {
		return errors.NotFound(fmt.Sprintf("entity not found: %s", id))
	}
	return err
}

// Upsert runs a read-modify-write of id in a single transaction. fn receives
// the stored value, or nil if there is none, and returns the entity to
// write back.
func (s *BadgerStore) Upsert(id string, fn func(current []byte) (Entity, error)) error {
	key := s.makeKey(id)

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			var current []byte
			item, err := txn.Get(key)
			switch {
			case err == nil:
				if current, err = s.readValue(item); err != nil {
					return err
				}
			case err != badger.ErrKeyNotFound:
				return err
			}

			entity, err := fn(current)
			if err != nil {
				return err
			}
			if entity.GetID() != id {
				return errors.InvalidArgument("upsert of %s returned entity %s", id, entity.GetID())
			}
			data, err := s.encode(entity)
			if err != nil {
				return err
			}
			return txn.Set(key, data)
		})
		if err != badger.ErrConflict {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * conflictBackoff)
	}
	return fmt.Errorf("upserting %s: %w", id, err)
}

func (s *BadgerStore) Delete(id string) error {
	key := s.makeKey(id)

	return s.db.Update(func(txn *badger.Txn) error {
		// Check if exists
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.NotFound(fmt.Sprintf("entity not found: %s", id))
		} else if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// Keys returns the IDs of all stored entities in key order.
func (s *BadgerStore) Keys() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, s.stripPrefix(it.Item().Key()))
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return ids, nil
}

// Each decodes every stored value and passes it to fn, in key order.
func (s *BadgerStore) Each(fn func(id string, value []byte) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := s.readValue(item)
			if err != nil {
				return err
			}
			if err := fn(s.stripPrefix(item.Key()), val); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("iterating entities: %w", err)
	}
	return nil
}
