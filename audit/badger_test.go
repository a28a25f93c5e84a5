// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"testing"

	"github.com/absmach/courier/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerSinkRecordAndQuery(t *testing.T) {
	sink, err := NewBadgerSink(t.TempDir(), discardLogger())
	require.NoError(t, err)
	defer sink.Close()

	sink.Record(testEvent("t1", dispatch.StatusQueued))
	sink.Record(testEvent("t2", dispatch.StatusQueued))
	sink.Record(testEvent("t1", dispatch.StatusSending))
	sink.Record(testEvent("t1", dispatch.StatusSent))

	events, err := sink.ByTrackingID("t1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Events come back in record order.
	assert.Equal(t, dispatch.StatusQueued, events[0].Status)
	assert.Equal(t, dispatch.StatusSending, events[1].Status)
	assert.Equal(t, dispatch.StatusSent, events[2].Status)
}

func TestBadgerSinkUnknownID(t *testing.T) {
	sink, err := NewBadgerSink(t.TempDir(), discardLogger())
	require.NoError(t, err)
	defer sink.Close()

	events, err := sink.ByTrackingID("missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}
