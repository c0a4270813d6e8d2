// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync"

	"github.com/absmach/mailmq/storage"
)

var _ storage.PushStore = (*PushStore)(nil)

// PushStore implements storage.PushStore in memory.
type PushStore struct {
	mu     sync.RWMutex
	pushes map[string]*storage.Push
}

// NewPushStore creates a new in-memory push store.
func NewPushStore() *PushStore {
	return &PushStore{
		pushes: make(map[string]*storage.Push),
	}
}

// Save persists a push record with an optimistic version check.
func (s *PushStore) Save(push *storage.Push) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(push)
}

// SaveAll persists a batch of push records, skipping version-check losers.
func (s *PushStore) SaveAll(pushes []*storage.Push) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, push := range pushes {
		if err := s.saveLocked(push); err != nil && err != storage.ErrConflict {
			return err
		}
	}
	return nil
}

func (s *PushStore) saveLocked(push *storage.Push) error {
	var stored int64
	if existing, ok := s.pushes[push.ID]; ok {
		stored = existing.Version
	}
	if push.Version != stored {
		return storage.ErrConflict
	}

	push.Version++
	cp := *push
	s.pushes[push.ID] = &cp
	return nil
}

// Get retrieves a push record by ID.
func (s *PushStore) Get(id string) (*storage.Push, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	push, ok := s.pushes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *push
	return &cp, nil
}

// ListByState returns all push records in the given state.
func (s *PushStore) ListByState(state storage.PushState) ([]*storage.Push, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pushes []*storage.Push
	for _, push := range s.pushes {
		if push.State == state {
			cp := *push
			pushes = append(pushes, &cp)
		}
	}
	return pushes, nil
}
