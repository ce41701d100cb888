// Package frame provides ports.FrameScheduler implementations: a display
// ticker for the application and a manually stepped scheduler for tests.
package frame

import (
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// queue holds pending frame callbacks in request order.
// Callbacks requested while a batch is dispatched wait for the next batch.
type queue struct {
	mu      sync.Mutex
	next    ports.FrameHandle
	order   []ports.FrameHandle
	pending map[ports.FrameHandle]ports.FrameCallback
}

func newQueue() *queue {
	return &queue{pending: make(map[ports.FrameHandle]ports.FrameCallback)}
}

func (q *queue) request(cb ports.FrameCallback) ports.FrameHandle {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.next++
	if cb == nil {
		return q.next
	}
	q.order = append(q.order, q.next)
	q.pending[q.next] = cb
	return q.next
}

func (q *queue) cancel(handle ports.FrameHandle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, handle)
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// dispatch runs the batch pending at call time and returns how many ran.
// A callback cancelled by an earlier callback of the same batch is skipped.
func (q *queue) dispatch(now time.Time) int {
	q.mu.Lock()
	batch := q.order
	q.order = nil
	q.mu.Unlock()

	ran := 0
	for _, h := range batch {
		q.mu.Lock()
		cb, ok := q.pending[h]
		delete(q.pending, h)
		q.mu.Unlock()
		if !ok {
			continue
		}
		cb(now)
		ran++
	}
	return ran
}
