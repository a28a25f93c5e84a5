// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "sync"

// task is one pending unit of work. The queue owns it from push to pop;
// ownership then transfers to the retrier, and the handle is resolved
// exactly once by whichever path reaches a terminal outcome.
type task struct {
	msg            Message
	idempotencyKey string
	trackingID     string
	handle         *Handle
}

// fifo is the strict-FIFO pending queue. Pushes race from Submit callers;
// pops happen only on the single drain consumer. A rate-limited task is
// simply not popped, so it stays at the head.
type fifo struct {
	mu    sync.Mutex
	tasks []*task
}

func newFifo() *fifo {
	return &fifo{}
}

func (q *fifo) push(t *task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

func (q *fifo) pop() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return t
}

func (q *fifo) len() int {
	q.mu.Lock()
	n := len(q.tasks)
	q.mu.Unlock()
	return n
}
