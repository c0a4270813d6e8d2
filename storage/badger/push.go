// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"encoding/json"
	"fmt"

	"github.com/absmach/mailmq/storage"
	"github.com/dgraph-io/badger/v4"
)

var _ storage.PushStore = (*PushStore)(nil)

// PushStore implements storage.PushStore using BadgerDB.
//
// Key format: push/{pushID}
type PushStore struct {
	db *badger.DB
}

// NewPushStore creates a new BadgerDB push store.
func NewPushStore(db *badger.DB) *PushStore {
	return &PushStore{db: db}
}

// Save persists a push record with an optimistic version check.
func (s *PushStore) Save(push *storage.Push) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return savePush(txn, push)
	})
}

// SaveAll persists a batch of push records, skipping version-check losers.
func (s *PushStore) SaveAll(pushes []*storage.Push) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, push := range pushes {
			if err := savePush(txn, push); err != nil && err != storage.ErrConflict {
				return err
			}
		}
		return nil
	})
}

// savePush writes a push record inside txn after checking that the stored
// version matches the record's. The check and write share the transaction,
// so two racing writers cannot both win.
func savePush(txn *badger.Txn, push *storage.Push) error {
	key := []byte(prefixPush + push.ID)

	var stored int64
	item, err := txn.Get(key)
	switch err {
	case nil:
		var existing storage.Push
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &existing)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal push: %w", err)
		}
		stored = existing.Version
	case badger.ErrKeyNotFound:
		stored = 0
	default:
		return err
	}

	if push.Version != stored {
		return storage.ErrConflict
	}
	push.Version++

	data, err := json.Marshal(push)
	if err != nil {
		return fmt.Errorf("failed to marshal push: %w", err)
	}
	return txn.Set(key, data)
}

// Get retrieves a push record by ID.
func (s *PushStore) Get(id string) (*storage.Push, error) {
	var push *storage.Push

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPush + id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			push = &storage.Push{}
			return json.Unmarshal(val, push)
		})
	})
	if err != nil {
		return nil, err
	}

	return push, nil
}

// ListByState returns all push records in the given state.
func (s *PushStore) ListByState(state storage.PushState) ([]*storage.Push, error) {
	var pushes []*storage.Push

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPush)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var push storage.Push
				if err := json.Unmarshal(val, &push); err != nil {
					return err
				}
				if push.State == state {
					pushes = append(pushes, &push)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal push: %w", err)
			}
		}
		return nil
	})

	return pushes, err
}
