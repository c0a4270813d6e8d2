// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/absmach/mailmq/storage"
	"github.com/dgraph-io/badger/v4"
)

var _ storage.BroadcastStore = (*BroadcastStore)(nil)

// BroadcastStore implements storage.BroadcastStore using BadgerDB.
//
// Key format: broadcast/{id} with the ID encoded big-endian so iteration
// order matches sequence order. The sequence counter lives under its own
// key and is bumped inside the create transaction, keeping IDs strictly
// monotonic with no gaps.
type BroadcastStore struct {
	db *badger.DB
}

// NewBroadcastStore creates a new BadgerDB broadcast store.
func NewBroadcastStore(db *badger.DB) *BroadcastStore {
	return &BroadcastStore{db: db}
}

func broadcastKey(id int64) []byte {
	key := make([]byte, len(prefixBroadcast)+8)
	copy(key, prefixBroadcast)
	binary.BigEndian.PutUint64(key[len(prefixBroadcast):], uint64(id))
	return key
}

// Create appends a broadcast record, assigning the next sequence ID.
func (s *BroadcastStore) Create(broadcast *storage.Broadcast) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var seq int64
		item, err := txn.Get([]byte(keyBroadcastSeq))
		switch err {
		case nil:
			if err := item.Value(func(val []byte) error {
				seq = int64(binary.BigEndian.Uint64(val))
				return nil
			}); err != nil {
				return err
			}
		case badger.ErrKeyNotFound:
			seq = 0
		default:
			return err
		}

		seq++
		broadcast.ID = seq

		var seqBuf [8]byte
		binary.BigEndian.PutUint64(seqBuf[:], uint64(seq))
		if err := txn.Set([]byte(keyBroadcastSeq), seqBuf[:]); err != nil {
			return err
		}

		data, err := json.Marshal(broadcast)
		if err != nil {
			return fmt.Errorf("failed to marshal broadcast: %w", err)
		}
		return txn.Set(broadcastKey(seq), data)
	})
}

// Get retrieves a broadcast record by ID.
func (s *BroadcastStore) Get(id int64) (*storage.Broadcast, error) {
	var broadcast *storage.Broadcast

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(broadcastKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			broadcast = &storage.Broadcast{}
			return json.Unmarshal(val, broadcast)
		})
	})
	if err != nil {
		return nil, err
	}

	return broadcast, nil
}

// List returns all broadcast records in sequence order.
func (s *BroadcastStore) List() ([]*storage.Broadcast, error) {
	var broadcasts []*storage.Broadcast

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBroadcast)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var broadcast storage.Broadcast
				if err := json.Unmarshal(val, &broadcast); err != nil {
					return err
				}
				broadcasts = append(broadcasts, &broadcast)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal broadcast: %w", err)
			}
		}
		return nil
	})

	return broadcasts, err
}
