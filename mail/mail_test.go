// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/absmach/mailmq/deliver"
	"github.com/absmach/mailmq/storage"
	"github.com/absmach/mailmq/storage/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stubHandler is a controllable transport for tests.
type stubHandler struct {
	mu    sync.Mutex
	err   error
	calls []stubCall
}

type stubCall struct {
	roleID   string
	contents []*storage.Content
}

func (h *stubHandler) Kind() storage.RouteKind {
	return storage.RouteRPC
}

func (h *stubHandler) Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, stubCall{roleID: roleID, contents: contents})
	return h.err
}

func (h *stubHandler) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *stubHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *stubHandler) lastCall() stubCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[len(h.calls)-1]
}

func testRoute() storage.Route {
	return storage.Route{
		Kind: storage.RouteRPC,
		RPC:  &storage.RPCRoute{Addr: "127.0.0.1:9"},
	}
}

func newTestService(t *testing.T, maxRetry int, h deliver.Handler) (*Service, storage.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	router := deliver.NewRouter(logger, h)
	pool := deliver.NewPool(deliver.PoolConfig{
		Workers:         1,
		QueueSize:       16,
		SendTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}, router, logger)
	t.Cleanup(func() {
		pool.Close()
		store.Close()
	})

	svc := New(Config{MaxRetry: maxRetry, SendTimeout: time.Second}, store, router, pool, nil, logger)
	return svc, store
}

// seedPush persists a content record and a push referencing it.
func seedPush(t *testing.T, store storage.Store, state storage.PushState) *storage.Push {
	t.Helper()

	content := &storage.Content{
		ID:        uuid.NewString(),
		Title:     "greetings",
		Body:      "hello",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Contents().Save(content))

	p := &storage.Push{
		ID:        uuid.NewString(),
		Target:    storage.Target{RoleID: "role-1", Route: testRoute()},
		ContentID: content.ID,
		State:     state,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Pushes().Save(p))
	return p
}
