// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync"

	"github.com/absmach/mailmq/storage"
)

var _ storage.RoleSyncStore = (*RoleSyncStore)(nil)

// RoleSyncStore implements storage.RoleSyncStore in memory.
type RoleSyncStore struct {
	mu      sync.RWMutex
	cursors map[string]*storage.RoleSync
}

// NewRoleSyncStore creates a new in-memory role sync cursor store.
func NewRoleSyncStore() *RoleSyncStore {
	return &RoleSyncStore{
		cursors: make(map[string]*storage.RoleSync),
	}
}

// Get retrieves the cursor for a role.
func (s *RoleSyncStore) Get(roleID string) (*storage.RoleSync, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[roleID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *cursor
	return &cp, nil
}

// Save persists a cursor.
func (s *RoleSyncStore) Save(cursor *storage.RoleSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cursor
	s.cursors[cursor.RoleID] = &cp
	return nil
}
