// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"github.com/absmach/mailmq/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is the composite in-memory store.
type Store struct {
	contents   *ContentStore
	pushes     *PushStore
	schedules  *ScheduleStore
	broadcasts *BroadcastStore
	roleSyncs  *RoleSyncStore
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		contents:   NewContentStore(),
		pushes:     NewPushStore(),
		schedules:  NewScheduleStore(),
		broadcasts: NewBroadcastStore(),
		roleSyncs:  NewRoleSyncStore(),
	}
}

// Contents returns the content store.
func (s *Store) Contents() storage.ContentStore {
	return s.contents
}

// Pushes returns the push record store.
func (s *Store) Pushes() storage.PushStore {
	return s.pushes
}

// Schedules returns the retry schedule store.
func (s *Store) Schedules() storage.ScheduleStore {
	return s.schedules
}

// Broadcasts returns the group broadcast store.
func (s *Store) Broadcasts() storage.BroadcastStore {
	return s.broadcasts
}

// RoleSyncs returns the role sync cursor store.
func (s *Store) RoleSyncs() storage.RoleSyncStore {
	return s.roleSyncs
}

// Close closes all stores (no-op for memory).
func (s *Store) Close() error {
	return nil
}
