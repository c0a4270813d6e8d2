// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"testing"

	"github.com/absmach/mailmq/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCompletesOnSuccess(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushScheduling)
	svc.Schedule(p)

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushCompleted, stored.State)
	assert.Equal(t, 1, handler.callCount())

	// Completed schedules are deleted, not parked.
	_, err = store.Schedules().GetByPush(p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScheduleIsIdempotent(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushScheduling)
	svc.Schedule(p)
	svc.Schedule(p)
	svc.Schedule(p)

	// Only the first call creates a schedule and attempts a send; the
	// rest observe the existing record and back off.
	assert.Equal(t, 1, handler.callCount())

	sched, err := store.Schedules().GetByPush(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.ScheduleIdle, sched.State)
}

func TestScheduleFailureParksIdle(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushScheduling)
	svc.Schedule(p)

	sched, err := store.Schedules().GetByPush(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.ScheduleIdle, sched.State)
	// First failure is free while the push has no prior send timestamp.
	assert.Equal(t, 0, sched.RetryCount)

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushScheduling, stored.State)
	assert.False(t, stored.SendTime.IsZero())
}

func TestScheduleRetryExhaustionDies(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 1, handler)

	p := seedPush(t, store, storage.PushScheduling)
	svc.Schedule(p)     // free failure
	svc.ScanSchedules() // retry 1
	svc.ScanSchedules() // budget exhausted

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushDie, stored.State)

	_, err = store.Schedules().GetByPush(p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScheduleRecoversAfterRetry(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushScheduling)
	svc.Schedule(p)

	handler.fail(nil)
	svc.ScanSchedules()

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushCompleted, stored.State)

	_, err = store.Schedules().GetByPush(p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunScheduleDeletesOrphan(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	sched := &storage.Schedule{PushID: "no-such-push", State: storage.ScheduleSending}
	require.NoError(t, store.Schedules().Save(sched))

	svc.RunSchedule(sched)

	_, err := store.Schedules().GetByPush(sched.PushID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, handler.callCount())
}

func TestRunScheduleDeletesOnStateMismatch(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushCompleted)
	sched := &storage.Schedule{PushID: p.ID, State: storage.ScheduleSending}
	require.NoError(t, store.Schedules().Save(sched))

	svc.RunSchedule(sched)

	_, err := store.Schedules().GetByPush(p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, handler.callCount())
}

func TestRunScheduleDeletesOnMissingContent(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	p := &storage.Push{
		ID:        "push-1",
		Target:    storage.Target{RoleID: "role-1", Route: testRoute()},
		ContentID: "no-such-content",
		State:     storage.PushScheduling,
	}
	require.NoError(t, store.Pushes().Save(p))
	sched := &storage.Schedule{PushID: p.ID, State: storage.ScheduleSending}
	require.NoError(t, store.Schedules().Save(sched))

	svc.RunSchedule(sched)

	_, err := store.Schedules().GetByPush(p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, handler.callCount())
}
