// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package deliver routes outbound mail to transport handlers and performs
// the actual sends. Handlers never retry internally; retry policy lives in
// the mail package's state machines.
package deliver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/absmach/mailmq/storage"
)

// ErrNoHandler is returned when no handler is registered for a route kind.
// Callers must treat it exactly like a transport-level send failure.
var ErrNoHandler = errors.New("no handler registered for route kind")

// Handler performs a blocking send over one concrete transport.
type Handler interface {
	// Kind returns the route kind this handler serves.
	Kind() storage.RouteKind

	// Deliver sends a batch of content to a recipient. A handler that
	// cannot build a transport target from the route descriptor returns
	// an error instead of panicking.
	Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error
}

// Router selects the transport handler for a delivery target.
type Router struct {
	handlers map[storage.RouteKind]Handler
	logger   *slog.Logger
}

// NewRouter creates a router from the available handlers. If two handlers
// register the same kind, the last one wins; this is a deployment
// configuration error and is logged as such.
func NewRouter(logger *slog.Logger, handlers ...Handler) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		handlers: make(map[storage.RouteKind]Handler, len(handlers)),
		logger:   logger,
	}
	for _, h := range handlers {
		if _, ok := r.handlers[h.Kind()]; ok {
			logger.Warn("duplicate deliver handler registered, last wins",
				slog.String("kind", string(h.Kind())))
		}
		r.handlers[h.Kind()] = h
	}
	return r
}

// Deliver looks up the handler for the route's kind and invokes it.
func (r *Router) Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error {
	h, ok := r.handlers[route.Kind]
	if !ok {
		return ErrNoHandler
	}
	return h.Deliver(ctx, roleID, route, contents)
}

// envelope is the wire payload shared by all transports.
type envelope struct {
	RoleID   string             `json:"role_id"`
	Contents []*storage.Content `json:"contents"`
}
