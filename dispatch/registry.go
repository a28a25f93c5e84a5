// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

// registry holds the ordered providers and the rotating active index used
// for failover. The index is process-global: it advances round-robin on
// every failed attempt regardless of which task failed, so a flaky provider
// never monopolizes consecutive attempts.
//
// Mutated only by the single drain consumer, so it carries no lock.
type registry struct {
	providers []Provider
	active    int
}

func newRegistry(providers []Provider) *registry {
	return &registry{providers: providers}
}

func (r *registry) current() Provider {
	return r.providers[r.active]
}

func (r *registry) rotate() {
	r.active = (r.active + 1) % len(r.providers)
}
