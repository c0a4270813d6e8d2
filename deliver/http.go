// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/absmach/mailmq/storage"
	"github.com/sony/gobreaker"
)

var _ Handler = (*HTTPHandler)(nil)

// HTTPConfig holds HTTP transport settings.
type HTTPConfig struct {
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// HTTPHandler delivers mail over request/response HTTP. Each recipient
// endpoint gets its own circuit breaker so one dead endpoint cannot eat
// send attempts for the rest.
type HTTPHandler struct {
	cfg      HTTPConfig
	client   *http.Client
	logger   *slog.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPHandler creates a new HTTP deliver handler.
func NewHTTPHandler(cfg HTTPConfig, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPHandler{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Kind returns the route kind this handler serves.
func (h *HTTPHandler) Kind() storage.RouteKind {
	return storage.RouteHTTP
}

// Deliver posts the content batch to the recipient's URL.
func (h *HTTPHandler) Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error {
	if route.HTTP == nil || route.HTTP.URL == "" {
		return fmt.Errorf("http route missing url")
	}

	breaker := h.breaker(route.HTTP.URL)
	_, err := breaker.Execute(func() (any, error) {
		return nil, h.send(ctx, roleID, route.HTTP, contents)
	})
	return err
}

func (h *HTTPHandler) send(ctx context.Context, roleID string, route *storage.HTTPRoute, contents []*storage.Content) error {
	payload, err := json.Marshal(envelope{RoleID: roleID, Contents: contents})
	if err != nil {
		return fmt.Errorf("failed to marshal deliver payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build deliver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range route.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver endpoint returned status %d", resp.StatusCode)
	}

	h.logger.Debug("http mail delivered",
		slog.String("role_id", roleID),
		slog.String("url", route.URL),
		slog.Int("contents", len(contents)))

	return nil
}

func (h *HTTPHandler) breaker(url string) *gobreaker.CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	breaker, ok := h.breakers[url]
	if !ok {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        url,
			MaxRequests: 1,
			Timeout:     h.cfg.BreakerReset,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(h.cfg.BreakerThreshold)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				h.logger.Warn("deliver circuit breaker state changed",
					slog.String("endpoint", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
		h.breakers[url] = breaker
	}
	return breaker
}
