// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync"

	"github.com/absmach/mailmq/storage"
)

var _ storage.ScheduleStore = (*ScheduleStore)(nil)

// ScheduleStore implements storage.ScheduleStore in memory.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]*storage.Schedule
}

// NewScheduleStore creates a new in-memory schedule store.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		schedules: make(map[string]*storage.Schedule),
	}
}

// Save persists a schedule record with an optimistic version check.
func (s *ScheduleStore) Save(schedule *storage.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(schedule)
}

// SaveAll persists a batch of schedules, skipping version-check losers.
func (s *ScheduleStore) SaveAll(schedules []*storage.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, schedule := range schedules {
		if err := s.saveLocked(schedule); err != nil && err != storage.ErrConflict {
			return err
		}
	}
	return nil
}

func (s *ScheduleStore) saveLocked(schedule *storage.Schedule) error {
	var stored int64
	if existing, ok := s.schedules[schedule.PushID]; ok {
		stored = existing.Version
	}
	if schedule.Version != stored {
		return storage.ErrConflict
	}

	schedule.Version++
	cp := *schedule
	s.schedules[schedule.PushID] = &cp
	return nil
}

// GetByPush retrieves the schedule referencing the given push ID.
func (s *ScheduleStore) GetByPush(pushID string) (*storage.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[pushID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *schedule
	return &cp, nil
}

// ListByState returns all schedules in the given state.
func (s *ScheduleStore) ListByState(state storage.ScheduleState) ([]*storage.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var schedules []*storage.Schedule
	for _, schedule := range s.schedules {
		if schedule.State == state {
			cp := *schedule
			schedules = append(schedules, &cp)
		}
	}
	return schedules, nil
}

// Delete removes the schedule for a push ID.
func (s *ScheduleStore) Delete(pushID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.schedules, pushID)
	return nil
}
