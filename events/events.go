// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package events publishes dispatch lifecycle events to in-process
// subscribers, such as the websocket event feed.
package events

import (
	"encoding/json"
	"time"

	"github.com/absmach/courier/dispatch"
	"github.com/google/uuid"
)

// Event type constants.
const (
	TypeMessageQueued  = "message.queued"
	TypeMessageSending = "message.sending"
	TypeMessageSent    = "message.sent"
	TypeMessageFailed  = "message.failed"
)

// Event is the common interface for all dispatch events.
type Event interface {
	// Type returns the event type identifier (e.g., "message.sent")
	Type() string

	// Wrap wraps the event in a common envelope with metadata
	Wrap() *Envelope
}

// Envelope is the common wrapper for all dispatch events.
type Envelope struct {
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// MarshalJSON serializes the envelope to JSON.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(*e)
}

func wrap(ev Event) *Envelope {
	return &Envelope{
		EventType: ev.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      ev,
	}
}

// MessageQueued is emitted when a message is accepted into the queue.
type MessageQueued struct {
	TrackingID string `json:"tracking_id"`
}

func (e MessageQueued) Type() string    { return TypeMessageQueued }
func (e MessageQueued) Wrap() *Envelope { return wrap(e) }

// MessageSending is emitted before each delivery attempt.
type MessageSending struct {
	TrackingID string `json:"tracking_id"`
	Attempt    int    `json:"attempt"`
	Provider   string `json:"provider,omitempty"`
}

func (e MessageSending) Type() string    { return TypeMessageSending }
func (e MessageSending) Wrap() *Envelope { return wrap(e) }

// MessageSent is emitted when a delivery attempt succeeds.
type MessageSent struct {
	TrackingID string `json:"tracking_id"`
	Attempts   int    `json:"attempts"`
	Provider   string `json:"provider,omitempty"`
}

func (e MessageSent) Type() string    { return TypeMessageSent }
func (e MessageSent) Wrap() *Envelope { return wrap(e) }

// MessageFailed is emitted when delivery gives up.
type MessageFailed struct {
	TrackingID string `json:"tracking_id"`
	Attempts   int    `json:"attempts"`
	Provider   string `json:"provider,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (e MessageFailed) Type() string    { return TypeMessageFailed }
func (e MessageFailed) Wrap() *Envelope { return wrap(e) }

// FromAudit maps an audit event to its lifecycle event.
func FromAudit(ev dispatch.AuditEvent) Event {
	switch ev.Status {
	case dispatch.StatusQueued:
		return MessageQueued{TrackingID: ev.TrackingID}
	case dispatch.StatusSending:
		return MessageSending{
			TrackingID: ev.TrackingID,
			Attempt:    ev.Attempts,
			Provider:   ev.Provider,
		}
	case dispatch.StatusSent:
		return MessageSent{
			TrackingID: ev.TrackingID,
			Attempts:   ev.Attempts,
			Provider:   ev.Provider,
		}
	case dispatch.StatusFailed:
		return MessageFailed{
			TrackingID: ev.TrackingID,
			Attempts:   ev.Attempts,
			Provider:   ev.Provider,
			Error:      ev.Error,
		}
	default:
		return nil
	}
}
