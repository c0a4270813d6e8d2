// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync"

	"github.com/absmach/mailmq/storage"
)

var _ storage.ContentStore = (*ContentStore)(nil)

// ContentStore implements storage.ContentStore in memory.
type ContentStore struct {
	mu       sync.RWMutex
	contents map[string]*storage.Content
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		contents: make(map[string]*storage.Content),
	}
}

// Save persists a content record.
func (s *ContentStore) Save(content *storage.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *content
	s.contents[content.ID] = &cp
	return nil
}

// Get retrieves a content record by ID.
func (s *ContentStore) Get(id string) (*storage.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.contents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *content
	return &cp, nil
}

// GetAll retrieves content records for the given IDs, skipping missing ones.
func (s *ContentStore) GetAll(ids []string) ([]*storage.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contents []*storage.Content
	for _, id := range ids {
		if content, ok := s.contents[id]; ok {
			cp := *content
			contents = append(contents, &cp)
		}
	}
	return contents, nil
}

// Delete removes a content record.
func (s *ContentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contents, id)
	return nil
}
