// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"encoding/json"
	"fmt"

	"github.com/absmach/mailmq/storage"
	"github.com/dgraph-io/badger/v4"
)

var _ storage.RoleSyncStore = (*RoleSyncStore)(nil)

// RoleSyncStore implements storage.RoleSyncStore using BadgerDB.
//
// Key format: rolesync/{roleID}
type RoleSyncStore struct {
	db *badger.DB
}

// NewRoleSyncStore creates a new BadgerDB role sync cursor store.
func NewRoleSyncStore(db *badger.DB) *RoleSyncStore {
	return &RoleSyncStore{db: db}
}

// Get retrieves the cursor for a role.
func (s *RoleSyncStore) Get(roleID string) (*storage.RoleSync, error) {
	var cursor *storage.RoleSync

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRoleSync + roleID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			cursor = &storage.RoleSync{}
			return json.Unmarshal(val, cursor)
		})
	})
	if err != nil {
		return nil, err
	}

	return cursor, nil
}

// Save persists a cursor.
func (s *RoleSyncStore) Save(cursor *storage.RoleSync) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixRoleSync+cursor.RoleID), data)
	})
}
