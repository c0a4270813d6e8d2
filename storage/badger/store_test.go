// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"strings"
	"testing"
	"time"

	"github.com/absmach/mailmq/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestContentRoundTrip(t *testing.T) {
	store := newTestStore(t)

	content := &storage.Content{
		ID:         "c1",
		Title:      "welcome",
		Body:       strings.Repeat("mail body ", 200),
		Attachment: "attachment-ref",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Contents().Save(content))

	got, err := store.Contents().Get("c1")
	require.NoError(t, err)
	assert.Equal(t, content.Title, got.Title)
	assert.Equal(t, content.Body, got.Body)
	assert.Equal(t, content.Attachment, got.Attachment)

	require.NoError(t, store.Contents().Delete("c1"))
	_, err = store.Contents().Get("c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestContentGetAllSkipsMissing(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Contents().Save(&storage.Content{ID: "c1", Body: "one"}))
	require.NoError(t, store.Contents().Save(&storage.Content{ID: "c3", Body: "three"}))

	contents, err := store.Contents().GetAll([]string{"c1", "c2", "c3"})
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "c1", contents[0].ID)
	assert.Equal(t, "c3", contents[1].ID)
}

func TestPushRoundTripAndVersioning(t *testing.T) {
	store := newTestStore(t)

	p := &storage.Push{
		ID: "p1",
		Target: storage.Target{
			RoleID: "role-1",
			Route:  storage.Route{Kind: storage.RouteHTTP, HTTP: &storage.HTTPRoute{URL: "http://recipient"}},
		},
		ContentID: "c1",
		State:     storage.PushReady,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Pushes().Save(p))
	assert.Equal(t, int64(1), p.Version)

	stale := &storage.Push{ID: "p1", State: storage.PushSending, Version: 0}
	assert.ErrorIs(t, store.Pushes().Save(stale), storage.ErrConflict)

	p.State = storage.PushSending
	require.NoError(t, store.Pushes().Save(p))

	got, err := store.Pushes().Get("p1")
	require.NoError(t, err)
	assert.Equal(t, storage.PushSending, got.State)
	assert.Equal(t, "role-1", got.Target.RoleID)
	assert.Equal(t, int64(2), got.Version)
}

func TestPushSaveAllSkipsConflicts(t *testing.T) {
	store := newTestStore(t)

	fresh := &storage.Push{ID: "p1", State: storage.PushRetrying}
	require.NoError(t, store.Pushes().Save(fresh))

	stale := &storage.Push{ID: "p1", State: storage.PushReady, Version: 0}
	other := &storage.Push{ID: "p2", State: storage.PushReady}
	require.NoError(t, store.Pushes().SaveAll([]*storage.Push{stale, other}))

	got, err := store.Pushes().Get("p1")
	require.NoError(t, err)
	assert.Equal(t, storage.PushRetrying, got.State)

	got, err = store.Pushes().Get("p2")
	require.NoError(t, err)
	assert.Equal(t, storage.PushReady, got.State)
}

func TestPushListByState(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Pushes().Save(&storage.Push{ID: "p1", State: storage.PushRetrying}))
	require.NoError(t, store.Pushes().Save(&storage.Push{ID: "p2", State: storage.PushRetrying}))
	require.NoError(t, store.Pushes().Save(&storage.Push{ID: "p3", State: storage.PushDie}))

	retrying, err := store.Pushes().ListByState(storage.PushRetrying)
	require.NoError(t, err)
	assert.Len(t, retrying, 2)
}

func TestScheduleRoundTrip(t *testing.T) {
	store := newTestStore(t)

	sched := &storage.Schedule{PushID: "p1", State: storage.ScheduleSending}
	require.NoError(t, store.Schedules().Save(sched))

	sched.State = storage.ScheduleIdle
	require.NoError(t, store.Schedules().Save(sched))

	idle, err := store.Schedules().ListByState(storage.ScheduleIdle)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, "p1", idle[0].PushID)

	require.NoError(t, store.Schedules().Delete("p1"))
	_, err = store.Schedules().GetByPush("p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBroadcastSequenceSurvivesAcrossCreates(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		b := &storage.Broadcast{ContentID: "c1", CreatedAt: time.Now().UTC()}
		require.NoError(t, store.Broadcasts().Create(b))
		assert.Equal(t, int64(i+1), b.ID)
	}

	broadcasts, err := store.Broadcasts().List()
	require.NoError(t, err)
	require.Len(t, broadcasts, 3)
	for i, b := range broadcasts {
		assert.Equal(t, int64(i+1), b.ID)
	}
}

func TestRoleSyncRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RoleSyncs().Get("role-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cursor := &storage.RoleSync{RoleID: "role-1", SyncID: 7, CreateTime: time.Now().UTC()}
	require.NoError(t, store.RoleSyncs().Save(cursor))

	got, err := store.RoleSyncs().Get("role-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.SyncID)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()

	store, err := New(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Contents().Save(&storage.Content{ID: "c1", Body: "persisted"}))
	require.NoError(t, store.Broadcasts().Create(&storage.Broadcast{ContentID: "c1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, store.Close())

	store, err = New(Config{Dir: dir})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Contents().Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Body)

	// The sequence counter picks up where it left off.
	b := &storage.Broadcast{ContentID: "c1", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Broadcasts().Create(b))
	assert.Equal(t, int64(2), b.ID)
}
