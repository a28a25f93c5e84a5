// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "sync"

// ledger is the in-memory status store, keyed by tracking id. Records are
// replaced wholesale on update so concurrent readers never see torn writes.
type ledger struct {
	mu      sync.RWMutex
	records map[string]Record
}

func newLedger() *ledger {
	return &ledger{records: make(map[string]Record)}
}

func (l *ledger) put(rec Record) {
	l.mu.Lock()
	l.records[rec.TrackingID] = rec
	l.mu.Unlock()
}

// get returns a copy of the record. ok is false for unknown ids; lookup of
// an unknown tracking id is a valid empty result, not an error.
func (l *ledger) get(trackingID string) (Record, bool) {
	l.mu.RLock()
	rec, ok := l.records[trackingID]
	l.mu.RUnlock()
	return rec, ok
}

// update applies fn to the current record and stores the returned value as
// the new record. Returns the stored record.
func (l *ledger) update(trackingID string, fn func(Record) Record) Record {
	l.mu.Lock()
	rec := fn(l.records[trackingID])
	l.records[trackingID] = rec
	l.mu.Unlock()
	return rec
}
