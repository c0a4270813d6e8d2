// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sort"
	"sync"

	"github.com/absmach/mailmq/storage"
)

var _ storage.BroadcastStore = (*BroadcastStore)(nil)

// BroadcastStore implements storage.BroadcastStore in memory.
type BroadcastStore struct {
	mu         sync.RWMutex
	seq        int64
	broadcasts map[int64]*storage.Broadcast
}

// NewBroadcastStore creates a new in-memory broadcast store.
func NewBroadcastStore() *BroadcastStore {
	return &BroadcastStore{
		broadcasts: make(map[int64]*storage.Broadcast),
	}
}

// Create appends a broadcast record, assigning the next sequence ID.
func (s *BroadcastStore) Create(broadcast *storage.Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	broadcast.ID = s.seq
	cp := *broadcast
	s.broadcasts[broadcast.ID] = &cp
	return nil
}

// Get retrieves a broadcast record by ID.
func (s *BroadcastStore) Get(id int64) (*storage.Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	broadcast, ok := s.broadcasts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *broadcast
	return &cp, nil
}

// List returns all broadcast records ordered by ID.
func (s *BroadcastStore) List() ([]*storage.Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	broadcasts := make([]*storage.Broadcast, 0, len(s.broadcasts))
	for _, broadcast := range s.broadcasts {
		cp := *broadcast
		broadcasts = append(broadcasts, &cp)
	}
	sort.Slice(broadcasts, func(i, j int) bool { return broadcasts[i].ID < broadcasts[j].ID })
	return broadcasts, nil
}
