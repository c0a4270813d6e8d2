// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OpenTelemetry instruments for the mail service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	meter metric.Meter

	deliveredTotal  metric.Int64Counter
	retriesTotal    metric.Int64Counter
	deadTotal       metric.Int64Counter
	syncBatches     metric.Int64Counter
	deliverDuration metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("mailmq"),
	}

	var err error

	m.deliveredTotal, err = m.meter.Int64Counter(
		"mail.delivered.total",
		metric.WithDescription("Total mail deliveries by route kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveredTotal counter: %w", err)
	}

	m.retriesTotal, err = m.meter.Int64Counter(
		"mail.retries.total",
		metric.WithDescription("Total retry transitions by path"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriesTotal counter: %w", err)
	}

	m.deadTotal, err = m.meter.Int64Counter(
		"mail.dead.total",
		metric.WithDescription("Total pushes that exhausted their retry budget"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deadTotal counter: %w", err)
	}

	m.syncBatches, err = m.meter.Int64Counter(
		"mail.sync.batches.total",
		metric.WithDescription("Total group sync delivery batches queued"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create syncBatches counter: %w", err)
	}

	m.deliverDuration, err = m.meter.Float64Histogram(
		"mail.deliver.duration.ms",
		metric.WithDescription("Send attempt duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliverDuration histogram: %w", err)
	}

	return m, nil
}

// RecordDelivery records one send attempt outcome.
func (m *Metrics) RecordDelivery(kind string, ok bool, durationMs float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.deliveredTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
	m.deliverDuration.Record(ctx, durationMs)
}

// RecordRetry records a retry transition on the given path ("push" or
// "schedule").
func (m *Metrics) RecordRetry(path string) {
	if m == nil {
		return
	}
	m.retriesTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("path", path),
	))
}

// RecordDead records a push reaching the DIE state.
func (m *Metrics) RecordDead(path string) {
	if m == nil {
		return
	}
	m.deadTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("path", path),
	))
}

// RecordSyncBatch records a group sync delivery batch being queued.
func (m *Metrics) RecordSyncBatch(contents int) {
	if m == nil {
		return
	}
	m.syncBatches.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Int("contents", contents),
	))
}
