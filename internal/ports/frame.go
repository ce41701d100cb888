package ports

import "time"

// FrameCallback is invoked once per display frame with the frame timestamp.
type FrameCallback func(now time.Time)

// FrameHandle identifies a pending frame request.
type FrameHandle uint64

// FrameScheduler is the per-frame scheduling primitive tied to display refresh.
//
// A requested callback runs once, on the next frame. Callbacks requested
// while a frame is being dispatched run on the following frame, so a
// self-rescheduling callback runs exactly once per frame.
type FrameScheduler interface {
	// RequestFrame schedules cb for the next frame.
	RequestFrame(cb FrameCallback) FrameHandle

	// CancelFrame removes a pending request. Unknown handles are ignored.
	CancelFrame(handle FrameHandle)
}
