// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the engine's OpenTelemetry instruments. A nil *metrics is
// valid and records nothing.
type metrics struct {
	submitted        metric.Int64Counter
	replays          metric.Int64Counter
	attempts         metric.Int64Counter
	sent             metric.Int64Counter
	failed           metric.Int64Counter
	queueDepth       metric.Int64UpDownCounter
	dispatchDuration metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("dispatch")
	m := &metrics{}

	var err error
	m.submitted, err = meter.Int64Counter(
		"dispatch.submissions.total",
		metric.WithDescription("Total submissions accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create submissions counter: %w", err)
	}

	m.replays, err = meter.Int64Counter(
		"dispatch.idempotent_replays.total",
		metric.WithDescription("Submissions answered from the idempotency cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create replays counter: %w", err)
	}

	m.attempts, err = meter.Int64Counter(
		"dispatch.attempts.total",
		metric.WithDescription("Total provider delivery attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempts counter: %w", err)
	}

	m.sent, err = meter.Int64Counter(
		"dispatch.sent.total",
		metric.WithDescription("Deliveries with terminal status sent"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sent counter: %w", err)
	}

	m.failed, err = meter.Int64Counter(
		"dispatch.failed.total",
		metric.WithDescription("Deliveries with terminal status failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failed counter: %w", err)
	}

	m.queueDepth, err = meter.Int64UpDownCounter(
		"dispatch.queue.depth",
		metric.WithDescription("Tasks currently queued"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue depth gauge: %w", err)
	}

	m.dispatchDuration, err = meter.Float64Histogram(
		"dispatch.sequence.duration.ms",
		metric.WithDescription("Attempt sequence duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return m, nil
}

func (m *metrics) recordSubmitted() {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.submitted.Add(ctx, 1)
	m.queueDepth.Add(ctx, 1)
}

func (m *metrics) recordReplay() {
	if m == nil {
		return
	}
	m.replays.Add(context.Background(), 1)
}

func (m *metrics) recordAttempt(provider string) {
	if m == nil {
		return
	}
	m.attempts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider", provider),
	))
}

func (m *metrics) recordTerminal(status Status, durationMs float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.queueDepth.Add(ctx, -1)
	if status == StatusSent {
		m.sent.Add(ctx, 1)
	} else {
		m.failed.Add(ctx, 1)
	}
	m.dispatchDuration.Record(ctx, durationMs)
}
