// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deliver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/mailmq/storage"
	paho "github.com/eclipse/paho.mqtt.golang"
)

var _ Handler = (*MQTTHandler)(nil)

// MQTTConfig holds MQTT transport settings.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Timeout   time.Duration
}

// MQTTHandler delivers mail by publishing the content batch to the
// recipient's topic on an external MQTT broker at QoS 1.
type MQTTHandler struct {
	cfg    MQTTConfig
	client paho.Client
	logger *slog.Logger
}

// NewMQTTHandler creates an MQTT deliver handler and connects to the broker.
func NewMQTTHandler(cfg MQTTConfig, logger *slog.Logger) (*MQTTHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.BrokerURL, err)
	}

	return &MQTTHandler{cfg: cfg, client: client, logger: logger}, nil
}

// Kind returns the route kind this handler serves.
func (h *MQTTHandler) Kind() storage.RouteKind {
	return storage.RouteMQTT
}

// Deliver publishes the content batch to the route's topic.
func (h *MQTTHandler) Deliver(ctx context.Context, roleID string, route storage.Route, contents []*storage.Content) error {
	if route.MQTT == nil || route.MQTT.Topic == "" {
		return fmt.Errorf("mqtt route missing topic")
	}

	payload, err := json.Marshal(envelope{RoleID: roleID, Contents: contents})
	if err != nil {
		return fmt.Errorf("failed to marshal deliver payload: %w", err)
	}

	timeout := h.cfg.Timeout
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < timeout {
			timeout = remaining
		}
	}

	token := h.client.Publish(route.MQTT.Topic, 1, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out publishing to %s", route.MQTT.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", route.MQTT.Topic, err)
	}

	h.logger.Debug("mqtt mail delivered",
		slog.String("role_id", roleID),
		slog.String("topic", route.MQTT.Topic),
		slog.Int("contents", len(contents)))

	return nil
}

// Close disconnects from the broker.
func (h *MQTTHandler) Close() error {
	h.client.Disconnect(250)
	return nil
}
