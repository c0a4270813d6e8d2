// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deliver

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/absmach/mailmq/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	mu    sync.Mutex
	kind  storage.RouteKind
	err   error
	calls int
}

func (h *fakeHandler) Kind() storage.RouteKind {
	return h.kind
}

func (h *fakeHandler) Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.err
}

func (h *fakeHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterDispatchesByKind(t *testing.T) {
	rpc := &fakeHandler{kind: storage.RouteRPC}
	http := &fakeHandler{kind: storage.RouteHTTP}
	router := NewRouter(testLogger(), rpc, http)

	err := router.Deliver(context.Background(), "role-1", storage.Route{Kind: storage.RouteHTTP}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, http.callCount())
	assert.Equal(t, 0, rpc.callCount())
}

func TestRouterUnknownKind(t *testing.T) {
	router := NewRouter(testLogger(), &fakeHandler{kind: storage.RouteRPC})

	err := router.Deliver(context.Background(), "role-1", storage.Route{Kind: storage.RouteMQTT}, nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestRouterDuplicateHandlerLastWins(t *testing.T) {
	first := &fakeHandler{kind: storage.RouteRPC}
	second := &fakeHandler{kind: storage.RouteRPC}
	router := NewRouter(testLogger(), first, second)

	err := router.Deliver(context.Background(), "role-1", storage.Route{Kind: storage.RouteRPC}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, first.callCount())
	assert.Equal(t, 1, second.callCount())
}
