// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package dispatch implements a resilient dispatch engine for outbound
// messages. Submissions are queued and drained by a single consumer under
// rate-limit admission; each task is attempted against a rotating set of
// providers with exponential backoff and a shared circuit breaker.
// All state is volatile and lost on process restart.
package dispatch

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a tracked message.
type Status string

// Status values. Transitions are monotonic: queued -> sending -> sent|failed.
const (
	StatusQueued  Status = "queued"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is an outbound message payload.
type Message struct {
	To      string            `json:"to"`
	Subject string            `json:"subject,omitempty"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Receipt is returned by a provider on successful delivery.
type Receipt struct {
	MessageID string `json:"message_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Provider is the outbound delivery port. Implementations must be safely
// callable repeatedly; failures are expected and routine.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Record is a status ledger entry for one tracking id. Updates replace the
// whole record, so readers never observe partial mutation.
type Record struct {
	TrackingID string    `json:"tracking_id"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"created_at"`
	SentAt     time.Time `json:"sent_at,omitzero"`
	Provider   string    `json:"provider,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Result is the terminal outcome delivered to a submission handle. Its
// status is always sent or failed; a failed delivery is a normal result,
// not an error.
type Result struct {
	TrackingID string    `json:"tracking_id"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	Provider   string    `json:"provider,omitempty"`
	SentAt     time.Time `json:"sent_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// AuditEvent describes a status transition for external audit sinks.
type AuditEvent struct {
	TrackingID string    `json:"tracking_id"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	Provider   string    `json:"provider,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditSink records audit events. Record is fire-and-forget: sink failures
// must be handled inside the sink and never propagate into the dispatch path.
type AuditSink interface {
	Record(event AuditEvent)
}

// NopSink discards all audit events.
type NopSink struct{}

// Record implements AuditSink.
func (NopSink) Record(AuditEvent) {}

var (
	// ErrCircuitOpen aborts an attempt sequence while the breaker is open.
	// It self-heals after the configured cooldown.
	ErrCircuitOpen = errors.New("circuit breaker tripped")

	// ErrNoProviders is returned by New when no providers are configured.
	ErrNoProviders = errors.New("no providers configured")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher closed")
)
