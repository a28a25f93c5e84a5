// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// retrier runs the bounded attempt sequence for one task. Failover and
// backoff are coupled: every failed attempt rotates the active provider and
// waits before the next try. A breaker trip aborts the sequence without
// rotation or backoff, since waiting adds latency with no chance of success
// until the cooldown elapses.
type retrier struct {
	providers      *registry
	breaker        *gobreaker.CircuitBreaker
	maxAttempts    int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	sleep          func(time.Duration)
	logger         *slog.Logger
}

// outcome is the terminal state of an attempt sequence.
type outcome struct {
	receipt  Receipt
	provider string
	attempts int
}

// run executes up to maxAttempts provider calls for t. onAttempt is invoked
// with the attempt number before each provider call, so a crash mid-attempt
// is still observable in the ledger.
func (r *retrier) run(ctx context.Context, t *task, onAttempt func(attempt int)) (outcome, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		// State() evaluates the cooldown lazily: an expired open breaker
		// moves to its probe state here, before the attempt is counted.
		if r.breaker.State() == gobreaker.StateOpen {
			return outcome{attempts: attempt - 1}, ErrCircuitOpen
		}

		onAttempt(attempt)

		p := r.providers.current()
		receipt, err := r.send(ctx, p, t.msg)
		if err == nil {
			return outcome{receipt: receipt, provider: p.Name(), attempts: attempt}, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return outcome{attempts: attempt - 1}, ErrCircuitOpen
		}
		lastErr = err

		r.logger.Debug("delivery attempt failed",
			slog.String("tracking_id", t.trackingID),
			slog.String("provider", p.Name()),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		// The failure that trips the breaker aborts the sequence outright.
		if r.breaker.State() == gobreaker.StateOpen {
			return outcome{attempts: attempt}, ErrCircuitOpen
		}

		r.providers.rotate()
		if attempt < r.maxAttempts {
			r.sleep(r.backoffBase * (1 << attempt))
		}
	}

	return outcome{attempts: r.maxAttempts}, lastErr
}

// send invokes the provider inside the breaker, bounding the call with the
// configured per-attempt deadline when one is set.
func (r *retrier) send(ctx context.Context, p Provider, msg Message) (Receipt, error) {
	var receipt Receipt
	_, err := r.breaker.Execute(func() (any, error) {
		sendCtx := ctx
		if r.attemptTimeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
			defer cancel()
		}
		rec, err := p.Send(sendCtx, msg)
		if err != nil {
			return nil, err
		}
		receipt = rec
		return nil, nil
	})
	return receipt, err
}
