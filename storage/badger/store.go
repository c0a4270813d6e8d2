// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"sync"
	"time"

	"github.com/absmach/mailmq/storage"
	"github.com/dgraph-io/badger/v4"
)

var _ storage.Store = (*Store)(nil)

// Key prefixes for the record kinds sharing one BadgerDB.
const (
	prefixContent   = "content/"
	prefixPush      = "push/"
	prefixSchedule  = "schedule/"
	prefixBroadcast = "broadcast/"
	prefixRoleSync  = "rolesync/"
	keyBroadcastSeq = "broadcast-seq"
)

// Store is the composite BadgerDB store implementing all storage interfaces.
type Store struct {
	db *badger.DB

	contents   *ContentStore
	pushes     *PushStore
	schedules  *ScheduleStore
	broadcasts *BroadcastStore
	roleSyncs  *RoleSyncStore

	gcStopCh chan struct{}
	gcDone   chan struct{}
	closed   bool
	mu       sync.Mutex
}

// Config holds BadgerDB configuration.
type Config struct {
	Dir string // Directory for BadgerDB data
}

// New creates a new BadgerDB-backed store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Disable BadgerDB's internal logging
	// Mail records drive retry decisions; fsync on every write so a crash
	// mid-send is observable on restart.
	opts.SyncWrites = true
	opts.NumVersionsToKeep = 1
	opts.NumCompactors = 2

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:         db,
		contents:   NewContentStore(db),
		pushes:     NewPushStore(db),
		schedules:  NewScheduleStore(db),
		broadcasts: NewBroadcastStore(db),
		roleSyncs:  NewRoleSyncStore(db),
		gcStopCh:   make(chan struct{}),
		gcDone:     make(chan struct{}),
	}

	// Start background value log GC
	go s.runGC()

	return s, nil
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

// Close gracefully closes the BadgerDB database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.gcStopCh)
	<-s.gcDone

	return s.db.Close()
}

// runGC runs BadgerDB's value log garbage collection periodically.
func (s *Store) runGC() {
	defer close(s.gcDone)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// May return an error if no GC was needed, which is fine
			_ = s.db.RunValueLogGC(0.5)
		case <-s.gcStopCh:
			return
		}
	}
}
