// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "sync"

// idempotency deduplicates submissions by caller-supplied key. Terminal
// results are cached only on success, so a caller retrying after a failure
// gets a fresh attempt. In-flight keys coalesce onto the original task's
// handle, which keeps the work at-most-once per key before completion too.
//
// A cached key always replays the same tracking id and result snapshot,
// independent of later ledger changes.
type idempotency struct {
	mu      sync.Mutex
	results map[string]Result
	pending map[string]*Handle
}

func newIdempotency() *idempotency {
	return &idempotency{
		results: make(map[string]Result),
		pending: make(map[string]*Handle),
	}
}

// claim registers a new in-flight handle for key, unless the key is already
// cached or in flight, in which case the existing handle is returned with
// dup=true. fresh is called only when a new handle is actually needed, so a
// replay never mints a tracking id.
func (c *idempotency) claim(key string, fresh func() *Handle) (h *Handle, dup bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.results[key]; ok {
		return resolvedHandle(res), true
	}
	if h, ok := c.pending[key]; ok {
		return h, true
	}
	h = fresh()
	c.pending[key] = h
	return h, false
}

// complete releases the in-flight claim for key and, on success, caches the
// terminal result. The cache write and the pending delete are atomic, so a
// racing claim sees exactly one of them.
func (c *idempotency) complete(key string, res Result, success bool) {
	c.mu.Lock()
	if success {
		c.results[key] = res
	}
	delete(c.pending, key)
	c.mu.Unlock()
}
