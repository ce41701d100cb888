package frame

import (
	"time"

	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// ManualScheduler runs frames only when Step is called.
type ManualScheduler struct {
	q *queue
}

// NewManualScheduler creates an idle manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{q: newQueue()}
}

// RequestFrame schedules cb for the next Step.
func (m *ManualScheduler) RequestFrame(cb ports.FrameCallback) ports.FrameHandle {
	return m.q.request(cb)
}

// CancelFrame removes a pending request.
func (m *ManualScheduler) CancelFrame(handle ports.FrameHandle) {
	m.q.cancel(handle)
}

// Step runs one frame at now and returns how many callbacks ran.
func (m *ManualScheduler) Step(now time.Time) int {
	return m.q.dispatch(now)
}

// Pending returns the number of queued callbacks.
func (m *ManualScheduler) Pending() int {
	return m.q.len()
}

var _ ports.FrameScheduler = (*ManualScheduler)(nil)
