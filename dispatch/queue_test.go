// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoOrder(t *testing.T) {
	q := newFifo()
	q.push(&task{trackingID: "a"})
	q.push(&task{trackingID: "b"})
	q.push(&task{trackingID: "c"})
	require.Equal(t, 3, q.len())

	assert.Equal(t, "a", q.pop().trackingID)
	assert.Equal(t, "b", q.pop().trackingID)
	assert.Equal(t, "c", q.pop().trackingID)
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.len())
}

func TestLedgerUnknownID(t *testing.T) {
	l := newLedger()
	_, ok := l.get("missing")
	assert.False(t, ok)
}

func TestLedgerUpdateReplacesRecord(t *testing.T) {
	l := newLedger()
	l.put(Record{TrackingID: "t1", Status: StatusQueued})

	before, ok := l.get("t1")
	require.True(t, ok)

	l.update("t1", func(rec Record) Record {
		rec.Status = StatusSending
		rec.Attempts = 1
		return rec
	})

	// The earlier read is a value copy, untouched by the update.
	assert.Equal(t, StatusQueued, before.Status)

	after, ok := l.get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusSending, after.Status)
	assert.Equal(t, 1, after.Attempts)
}

func TestIdempotencyClaimAndComplete(t *testing.T) {
	c := newIdempotency()

	h1 := newHandle("t1")
	got, dup := c.claim("k", func() *Handle { return h1 })
	require.False(t, dup)
	require.Same(t, h1, got)

	// In-flight claims coalesce onto the original handle.
	h2 := newHandle("t2")
	got, dup = c.claim("k", func() *Handle { return h2 })
	assert.True(t, dup)
	assert.Same(t, h1, got)

	// Failure releases the key without caching.
	c.complete("k", Result{TrackingID: "t1", Status: StatusFailed}, false)
	h3 := newHandle("t3")
	got, dup = c.claim("k", func() *Handle { return h3 })
	assert.False(t, dup)
	assert.Same(t, h3, got)

	// Success caches a replayable snapshot.
	res := Result{TrackingID: "t3", Status: StatusSent, Provider: "p"}
	c.complete("k", res, true)
	got, dup = c.claim("k", func() *Handle { return newHandle("t4") })
	assert.True(t, dup)
	replay, ok := got.Result()
	require.True(t, ok)
	assert.Equal(t, res, replay)
}

func TestIdempotencyDuplicateClaimSkipsFactory(t *testing.T) {
	c := newIdempotency()

	_, dup := c.claim("k", func() *Handle { return newHandle("t1") })
	require.False(t, dup)

	// A coalescing claim must not invoke the factory at all.
	called := false
	got, dup := c.claim("k", func() *Handle {
		called = true
		return newHandle("t2")
	})
	assert.True(t, dup)
	assert.False(t, called)
	assert.Equal(t, "t1", got.TrackingID())
}
