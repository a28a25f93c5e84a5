// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "time"

// window is the fixed-window admission counter for the drain loop. The count
// resets to zero and the deadline advances by one window length when the
// consumer observes now past the deadline. This is a reset bucket, not a
// sliding window: bursts of up to 2*limit are possible across a window
// boundary, which is documented behavior.
//
// Owned exclusively by the drain goroutine; not safe for concurrent use.
type window struct {
	count   int
	limit   int
	length  time.Duration
	resetAt time.Time
	now     func() time.Time
}

func newWindow(limit int, length time.Duration, now func() time.Time) *window {
	return &window{
		limit:   limit,
		length:  length,
		resetAt: now().Add(length),
		now:     now,
	}
}

// allow reports whether another task may be popped in the current window,
// consuming one admission slot when it returns true.
func (w *window) allow() bool {
	if now := w.now(); now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(w.length)
	}
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}
