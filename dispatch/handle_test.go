// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleResolvesOnce(t *testing.T) {
	h := newHandle("t1")

	_, ok := h.Result()
	assert.False(t, ok)

	first := Result{TrackingID: "t1", Status: StatusSent}
	h.resolve(first)
	h.resolve(Result{TrackingID: "t1", Status: StatusFailed})

	res, ok := h.Result()
	require.True(t, ok)
	assert.Equal(t, first, res)
}

func TestHandleAwaitContext(t *testing.T) {
	h := newHandle("t1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	h.resolve(Result{TrackingID: "t1", Status: StatusSent})
	res, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
}

func TestHandleMultipleWaiters(t *testing.T) {
	h := newHandle("t1")
	res := Result{TrackingID: "t1", Status: StatusSent}

	done := make(chan Result, 2)
	for range 2 {
		go func() {
			r, _ := h.Await(context.Background())
			done <- r
		}()
	}

	h.resolve(res)
	assert.Equal(t, res, <-done)
	assert.Equal(t, res, <-done)
}
