// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds dispatch engine settings.
type Config struct {
	// TickInterval is the drain loop period. One task at most is processed
	// per tick.
	TickInterval time.Duration `yaml:"tick_interval"`

	// RateLimit is the maximum number of tasks popped per rate window.
	RateLimit int `yaml:"rate_limit"`

	// RateWindow is the fixed admission window length.
	RateWindow time.Duration `yaml:"rate_window"`

	// MaxAttempts bounds the attempt sequence per task.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the base of the exponential backoff between attempts:
	// the delay after attempt k is BackoffBase * 2^k.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// AttemptTimeout bounds each provider call. Zero disables the deadline.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerCooldown is how long the breaker stays open before a probe
	// attempt is permitted. Evaluated lazily at the start of a sequence.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:     100 * time.Millisecond,
		RateLimit:        10,
		RateWindow:       60 * time.Second,
		MaxAttempts:      3,
		BackoffBase:      500 * time.Millisecond,
		AttemptTimeout:   30 * time.Second,
		BreakerThreshold: 3,
		BreakerCooldown:  30 * time.Second,
	}
}

// Engine is the dispatch composition root. It owns the pending queue, the
// status ledger, the idempotency cache, the provider registry and the drain
// loop. Exactly one attempt sequence runs at a time system-wide, which keeps
// the rate window, the breaker and the provider rotation consistent without
// extra locking.
type Engine struct {
	cfg       Config
	queue     *fifo
	ledger    *ledger
	idem      *idempotency
	providers *registry
	retrier   *retrier
	window    *window
	sink      AuditSink
	metrics   *metrics
	logger    *slog.Logger

	now   func() time.Time
	newID func() string

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
}

// New creates a dispatch engine. sink may be nil; the engine then audits
// nowhere. Call Start to launch the drain loop.
func New(cfg Config, providers []Provider, sink AuditSink, logger *slog.Logger) (*Engine, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = NopSink{}
	}

	m, err := newMetrics()
	if err != nil {
		logger.Warn("dispatch metrics disabled", slog.String("error", err.Error()))
		m = nil
	}

	now := time.Now
	e := &Engine{
		cfg:       cfg,
		queue:     newFifo(),
		ledger:    newLedger(),
		idem:      newIdempotency(),
		providers: newRegistry(providers),
		window:    newWindow(cfg.RateLimit, cfg.RateWindow, now),
		sink:      sink,
		metrics:   m,
		logger:    logger,
		now:       now,
		newID:     uuid.NewString,
		stopCh:    make(chan struct{}),
	}
	e.retrier = &retrier{
		providers:      e.providers,
		breaker:        newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, logger),
		maxAttempts:    cfg.MaxAttempts,
		backoffBase:    cfg.BackoffBase,
		attemptTimeout: cfg.AttemptTimeout,
		sleep:          time.Sleep,
		logger:         logger,
	}

	return e, nil
}

// Start launches the drain loop goroutine.
func (e *Engine) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go e.run()
	e.logger.Info("dispatcher started",
		slog.Duration("tick", e.cfg.TickInterval),
		slog.Int("rate_limit", e.cfg.RateLimit),
		slog.Duration("rate_window", e.cfg.RateWindow),
		slog.Int("providers", len(e.providers.providers)))
}

// Submit enqueues a message for delivery and returns its handle. It never
// blocks on delivery; the handle resolves exactly once with a sent or failed
// result. When idempotencyKey is non-empty and already known, replayed is
// true and the previously produced handle or result snapshot is returned
// instead: no new work is enqueued and no new tracking id is minted.
func (e *Engine) Submit(msg Message, idempotencyKey string) (h *Handle, replayed bool, err error) {
	if e.closed.Load() {
		return nil, false, ErrClosed
	}

	if idempotencyKey != "" {
		var dup bool
		h, dup = e.idem.claim(idempotencyKey, func() *Handle { return newHandle(e.newID()) })
		if dup {
			e.metrics.recordReplay()
			e.logger.Debug("idempotent replay",
				slog.String("key", idempotencyKey),
				slog.String("tracking_id", h.TrackingID()))
			return h, true, nil
		}
	} else {
		h = newHandle(e.newID())
	}

	now := e.now()
	e.ledger.put(Record{
		TrackingID: h.trackingID,
		Status:     StatusQueued,
		CreatedAt:  now,
	})
	e.queue.push(&task{
		msg:            msg,
		idempotencyKey: idempotencyKey,
		trackingID:     h.trackingID,
		handle:         h,
	})
	e.sink.Record(AuditEvent{
		TrackingID: h.trackingID,
		Status:     StatusQueued,
		Timestamp:  now,
	})
	e.metrics.recordSubmitted()
	e.logger.Debug("message queued", slog.String("tracking_id", h.trackingID))

	return h, false, nil
}

// Status returns the ledger record for a tracking id. ok is false for
// unknown ids; an unknown id is a valid empty result, never an error.
func (e *Engine) Status(trackingID string) (Record, bool) {
	return e.ledger.get(trackingID)
}

// QueueDepth returns the number of tasks waiting to be popped.
func (e *Engine) QueueDepth() int {
	return e.queue.len()
}

// Running reports whether the drain loop is active.
func (e *Engine) Running() bool {
	return e.started.Load() && !e.closed.Load()
}

// Close stops the drain loop. An attempt sequence already in flight runs to
// its terminal outcome, but no further ticks occur: tasks still queued are
// abandoned and their handles are never resolved. Callers waiting across
// shutdown must guard their waits with a context.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.started.Load() {
		close(e.stopCh)
		e.wg.Wait()
	}
	if abandoned := e.queue.len(); abandoned > 0 {
		e.logger.Warn("dispatcher stopped with tasks abandoned", slog.Int("abandoned", abandoned))
	} else {
		e.logger.Info("dispatcher stopped")
	}
	return nil
}

// run is the drain loop: a fixed-period tick, strictly single-consumer.
// Running every pop and attempt sequence on this one goroutine is what makes
// overlapping ticks impossible; a tick that overruns the period simply
// delays the next one.
func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.drainOne()
		}
	}
}

// drainOne admits and processes at most one task. Admission requires a
// non-empty queue and window capacity; a rate-limited task stays at the
// head of the queue for a later tick.
func (e *Engine) drainOne() {
	if e.queue.len() == 0 {
		return
	}
	if !e.window.allow() {
		e.logger.Debug("drain rate limited", slog.Int("queue_depth", e.queue.len()))
		return
	}
	t := e.queue.pop()
	if t == nil {
		return
	}
	e.process(t)
}

// process runs the attempt sequence for t and records the terminal outcome.
// On success the ledger is updated before the idempotency cache; a crash
// between the two can resolve a caller without caching the key, which is the
// engine's documented at-most-once gap.
func (e *Engine) process(t *task) {
	began := e.now()

	out, err := e.retrier.run(context.Background(), t, func(attempt int) {
		active := e.providers.current().Name()
		e.metrics.recordAttempt(active)
		e.ledger.update(t.trackingID, func(rec Record) Record {
			rec.Status = StatusSending
			rec.Attempts = attempt
			return rec
		})
		e.sink.Record(AuditEvent{
			TrackingID: t.trackingID,
			Status:     StatusSending,
			Attempts:   attempt,
			Provider:   active,
			Timestamp:  e.now(),
		})
	})

	var res Result
	if err != nil {
		rec := e.ledger.update(t.trackingID, func(rec Record) Record {
			rec.Status = StatusFailed
			rec.Attempts = out.attempts
			rec.Error = err.Error()
			return rec
		})
		res = Result{
			TrackingID: t.trackingID,
			Status:     StatusFailed,
			Attempts:   rec.Attempts,
			Error:      rec.Error,
		}
		e.logger.Warn("delivery failed",
			slog.String("tracking_id", t.trackingID),
			slog.Int("attempts", out.attempts),
			slog.String("error", err.Error()))
	} else {
		sentAt := e.now()
		rec := e.ledger.update(t.trackingID, func(rec Record) Record {
			rec.Status = StatusSent
			rec.Attempts = out.attempts
			rec.SentAt = sentAt
			rec.Provider = out.provider
			return rec
		})
		res = Result{
			TrackingID: t.trackingID,
			Status:     StatusSent,
			Attempts:   rec.Attempts,
			Provider:   rec.Provider,
			SentAt:     rec.SentAt,
		}
		e.logger.Info("message sent",
			slog.String("tracking_id", t.trackingID),
			slog.String("provider", out.provider),
			slog.Int("attempts", out.attempts))
	}

	if t.idempotencyKey != "" {
		e.idem.complete(t.idempotencyKey, res, err == nil)
	}

	e.sink.Record(AuditEvent{
		TrackingID: t.trackingID,
		Status:     res.Status,
		Attempts:   res.Attempts,
		Provider:   res.Provider,
		Error:      res.Error,
		Timestamp:  e.now(),
	})
	e.metrics.recordTerminal(res.Status, float64(e.now().Sub(began).Milliseconds()))

	t.handle.resolve(res)
}
