// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/mailmq/storage"
	"github.com/gorilla/websocket"
)

var _ Handler = (*RPCHandler)(nil)

// rpcFrame is the request frame written to the recipient's socket.
type rpcFrame struct {
	RoleID   string             `json:"role_id"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Contents []*storage.Content `json:"contents"`
}

// rpcReply is the reply frame expected back.
type rpcReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// RPCConfig holds direct-RPC transport settings.
type RPCConfig struct {
	Timeout time.Duration
}

// RPCHandler delivers mail over the direct-RPC channel: a websocket dial
// to the recipient's node, one JSON request frame, one reply frame.
type RPCHandler struct {
	cfg    RPCConfig
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewRPCHandler creates a new direct-RPC deliver handler.
func NewRPCHandler(cfg RPCConfig, logger *slog.Logger) *RPCHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &RPCHandler{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Kind returns the route kind this handler serves.
func (h *RPCHandler) Kind() storage.RouteKind {
	return storage.RouteRPC
}

// Deliver dials the recipient's address and performs one request/reply
// exchange.
func (h *RPCHandler) Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error {
	if route.RPC == nil || route.RPC.Addr == "" {
		return fmt.Errorf("rpc route missing address")
	}

	conn, _, err := h.dialer.DialContext(ctx, route.RPC.Addr, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", route.RPC.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(h.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	frame := rpcFrame{
		RoleID:   roleID,
		Tags:     route.RPC.Tags,
		Contents: contents,
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to write deliver frame: %w", err)
	}

	var reply rpcReply
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("failed to read deliver reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("recipient rejected delivery: %s", reply.Error)
	}

	h.logger.Debug("rpc mail delivered",
		slog.String("role_id", roleID),
		slog.String("addr", route.RPC.Addr),
		slog.Int("contents", len(contents)))

	return nil
}
