// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package audit provides sinks for dispatch audit events. Sinks are
// fire-and-forget: recording failures are logged and never propagate back
// into the dispatch path.
package audit

import "github.com/absmach/courier/dispatch"

// Fanout returns a sink that records every event to all of the given sinks.
func Fanout(sinks ...dispatch.AuditSink) dispatch.AuditSink {
	return fanout(sinks)
}

type fanout []dispatch.AuditSink

// Record implements dispatch.AuditSink.
func (f fanout) Record(ev dispatch.AuditEvent) {
	for _, s := range f {
		s.Record(ev)
	}
}
