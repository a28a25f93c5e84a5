// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"sync"
)

// Handle is the caller-facing future for one submission. It resolves exactly
// once with a terminal Result and supports multiple waiters, which is what
// idempotent coalescing hands out when two submissions share a key.
//
// A handle for a task still queued at shutdown is never resolved; callers
// waiting across Close must select on their own context.
type Handle struct {
	trackingID string
	done       chan struct{}
	once       sync.Once
	result     Result
}

func newHandle(trackingID string) *Handle {
	return &Handle{
		trackingID: trackingID,
		done:       make(chan struct{}),
	}
}

// resolvedHandle wraps an already-terminal result, used for idempotent replay.
func resolvedHandle(res Result) *Handle {
	h := newHandle(res.TrackingID)
	h.resolve(res)
	return h
}

// TrackingID returns the tracking identifier of the submission.
func (h *Handle) TrackingID() string {
	return h.trackingID
}

// Done returns a channel closed when the terminal result is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the terminal result if available.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}

// Await blocks until the terminal result is available or ctx is done.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Handle) resolve(res Result) {
	h.once.Do(func() {
		h.result = res
		close(h.done)
	})
}
