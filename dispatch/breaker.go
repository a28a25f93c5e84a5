// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker builds the shared circuit breaker for provider attempts.
// It trips on consecutive failures, permits a single probe after the
// cooldown, and fully heals the failure count on any success. State
// transitions are evaluated lazily on use, not by a timer.
func newBreaker(threshold int, cooldown time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dispatch",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}
