// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"log/slog"
	"sync"

	"github.com/absmach/courier/dispatch"
)

const defaultSubscriberBuffer = 64

// Bus fans dispatch lifecycle events out to in-process subscribers. Publish
// never blocks: a subscriber whose buffer is full loses the event.
type Bus struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[uint64]chan *Envelope
	next uint64
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[uint64]chan *Envelope),
	}
}

// Subscribe registers a new subscriber and returns its channel together with
// a cancel function. Cancel closes the channel and releases the slot.
func (b *Bus) Subscribe() (<-chan *Envelope, func()) {
	ch := make(chan *Envelope, defaultSubscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	env := ev.Wrap()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- env:
		default:
			b.logger.Warn("event subscriber buffer full, dropping event",
				slog.Uint64("subscriber", id),
				slog.String("event_type", env.EventType))
		}
	}
}

// Record implements dispatch.AuditSink, turning status transitions into
// published lifecycle events.
func (b *Bus) Record(ev dispatch.AuditEvent) {
	b.Publish(FromAudit(ev))
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
