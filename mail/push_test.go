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

func TestPushCompletesOnSuccess(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushReady)
	svc.Push(p)

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushCompleted, stored.State)
	assert.Equal(t, 0, stored.RetryCount)
	assert.False(t, stored.SendTime.IsZero())
	assert.Equal(t, 1, handler.callCount())
	assert.Equal(t, "role-1", handler.lastCall().roleID)
}

func TestPushFirstFailureDoesNotCountRetry(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushReady)
	svc.Push(p)

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushRetrying, stored.State)
	// A push that has never been sent before gets its first failure free.
	assert.Equal(t, 0, stored.RetryCount)
	assert.False(t, stored.SendTime.IsZero())
}

func TestPushRetryExhaustionDies(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 2, handler)

	p := seedPush(t, store, storage.PushReady)
	svc.Push(p) // free first failure, retry count 0

	svc.Scan() // retry 1
	svc.Scan() // retry 2
	svc.Scan() // budget exhausted

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushDie, stored.State)
	assert.Equal(t, 2, stored.RetryCount)
	assert.True(t, stored.State.Terminal())
	// Initial attempt plus one per rescan; the final scan still attempts
	// the send before giving up.
	assert.Equal(t, 4, handler.callCount())
}

func TestPushRecoversAfterRetry(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushReady)
	svc.Push(p)

	handler.fail(nil)
	svc.Scan()

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushCompleted, stored.State)
}

func TestPushMissingContentDies(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	p := &storage.Push{
		ID:        "push-1",
		Target:    storage.Target{RoleID: "role-1", Route: testRoute()},
		ContentID: "no-such-content",
		State:     storage.PushReady,
	}
	require.NoError(t, store.Pushes().Save(p))

	svc.Push(p)

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushDie, stored.State)
	assert.Equal(t, 0, handler.callCount())
}

func TestPushIgnoresNonReadyStates(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	for _, state := range []storage.PushState{
		storage.PushPending,
		storage.PushSending,
		storage.PushRetrying,
		storage.PushScheduling,
		storage.PushCompleted,
		storage.PushDie,
	} {
		p := seedPush(t, store, storage.PushReady)
		p.State = state
		svc.Push(p)
	}

	assert.Equal(t, 0, handler.callCount())
}

func TestPushStaleClaimLoses(t *testing.T) {
	handler := &stubHandler{}
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushReady)

	// A second scanner holding a copy from before the save loses the
	// version check and must back off without sending.
	stale := *p
	stale.Version = 0
	svc.Push(&stale)

	assert.Equal(t, 0, handler.callCount())
	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushReady, stored.State)
}

func TestScanRearmsOnlyRetrying(t *testing.T) {
	handler := &stubHandler{}
	handler.fail(errors.New("connection refused"))
	svc, store := newTestService(t, 3, handler)

	p := seedPush(t, store, storage.PushReady)
	svc.Push(p)

	stored, err := store.Pushes().Get(p.ID)
	require.NoError(t, err)
	require.Equal(t, storage.PushRetrying, stored.State)

	handler.fail(nil)
	svc.Scan()

	stored, err = store.Pushes().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.PushCompleted, stored.State)

	// A completed push is never picked up again.
	svc.Scan()
	assert.Equal(t, 2, handler.callCount())
}
