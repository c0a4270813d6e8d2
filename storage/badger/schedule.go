// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"encoding/json"
	"fmt"

	"github.com/absmach/mailmq/storage"
	"github.com/dgraph-io/badger/v4"
)

var _ storage.ScheduleStore = (*ScheduleStore)(nil)

// ScheduleStore implements storage.ScheduleStore using BadgerDB.
//
// Key format: schedule/{pushID}, one schedule per push.
type ScheduleStore struct {
	db *badger.DB
}

// NewScheduleStore creates a new BadgerDB schedule store.
func NewScheduleStore(db *badger.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Save persists a schedule record with an optimistic version check.
func (s *ScheduleStore) Save(schedule *storage.Schedule) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return saveSchedule(txn, schedule)
	})
}

// SaveAll persists a batch of schedules, skipping version-check losers.
func (s *ScheduleStore) SaveAll(schedules []*storage.Schedule) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, schedule := range schedules {
			if err := saveSchedule(txn, schedule); err != nil && err != storage.ErrConflict {
				return err
			}
		}
		return nil
	})
}

func saveSchedule(txn *badger.Txn, schedule *storage.Schedule) error {
	key := []byte(prefixSchedule + schedule.PushID)

	var stored int64
	item, err := txn.Get(key)
	switch err {
	case nil:
		var existing storage.Schedule
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &existing)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal schedule: %w", err)
		}
		stored = existing.Version
	case badger.ErrKeyNotFound:
		stored = 0
	default:
		return err
	}

	if schedule.Version != stored {
		return storage.ErrConflict
	}
	schedule.Version++

	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	return txn.Set(key, data)
}

// GetByPush retrieves the schedule referencing the given push ID.
func (s *ScheduleStore) GetByPush(pushID string) (*storage.Schedule, error) {
	var schedule *storage.Schedule

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixSchedule + pushID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			schedule = &storage.Schedule{}
			return json.Unmarshal(val, schedule)
		})
	})
	if err != nil {
		return nil, err
	}

	return schedule, nil
}

// ListByState returns all schedules in the given state.
func (s *ScheduleStore) ListByState(state storage.ScheduleState) ([]*storage.Schedule, error) {
	var schedules []*storage.Schedule

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSchedule)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var schedule storage.Schedule
				if err := json.Unmarshal(val, &schedule); err != nil {
					return err
				}
				if schedule.State == state {
					schedules = append(schedules, &schedule)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal schedule: %w", err)
			}
		}
		return nil
	})

	return schedules, err
}

// Delete removes the schedule for a push ID.
func (s *ScheduleStore) Delete(pushID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixSchedule + pushID))
	})
}
