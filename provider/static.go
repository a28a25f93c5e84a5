// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"time"

	"github.com/absmach/courier/dispatch"
	"github.com/google/uuid"
)

// Static is a mock provider with fixed behavior, used for local runs and
// development wiring where no real backend is available.
type Static struct {
	name    string
	fail    bool
	latency time.Duration
}

// NewStatic creates a static provider. When fail is true every send returns
// a delivery error; latency is added to each call when non-zero.
func NewStatic(name string, fail bool, latency time.Duration) *Static {
	return &Static{name: name, fail: fail, latency: latency}
}

// Name implements dispatch.Provider.
func (p *Static) Name() string {
	return p.name
}

// Send implements dispatch.Provider.
func (p *Static) Send(ctx context.Context, msg dispatch.Message) (dispatch.Receipt, error) {
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return dispatch.Receipt{}, ctx.Err()
		}
	}
	if p.fail {
		return dispatch.Receipt{}, errors.New("static provider configured to fail")
	}
	return dispatch.Receipt{MessageID: uuid.NewString(), Detail: "accepted"}, nil
}
