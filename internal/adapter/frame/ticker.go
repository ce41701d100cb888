package frame

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// DefaultFPS is used when a non-positive rate is configured.
const DefaultFPS = 60

// TickerScheduler dispatches frames from a single goroutine at a fixed rate.
//
// Thread-safety: RequestFrame, CancelFrame and SetFPS may be called from any
// goroutine, including from inside a frame callback.
type TickerScheduler struct {
	logger *slog.Logger
	q      *queue

	fpsCh     chan int
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time
}

// NewTickerScheduler starts a scheduler ticking at fps.
func NewTickerScheduler(fps int, logger *slog.Logger) *TickerScheduler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	t := &TickerScheduler{
		logger: logger.With(slog.String("component", "frame_ticker")),
		q:      newQueue(),
		fpsCh:  make(chan int, 1),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}

	t.wg.Add(1)
	go t.run(fps)

	t.logger.Debug("frame ticker started", slog.Int("fps", fps))
	return t
}

// RequestFrame schedules cb for the next tick.
func (t *TickerScheduler) RequestFrame(cb ports.FrameCallback) ports.FrameHandle {
	return t.q.request(cb)
}

// CancelFrame removes a pending request.
func (t *TickerScheduler) CancelFrame(handle ports.FrameHandle) {
	t.q.cancel(handle)
}

// SetFPS changes the tick rate. Non-positive values select DefaultFPS.
func (t *TickerScheduler) SetFPS(fps int) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	// Keep only the latest request.
	select {
	case <-t.fpsCh:
	default:
	}
	select {
	case t.fpsCh <- fps:
	case <-t.stopCh:
	}
}

// Close stops the ticker goroutine and waits for it to exit.
// Pending callbacks are dropped.
func (t *TickerScheduler) Close() {
	t.closeOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
		t.logger.Debug("frame ticker stopped")
	})
}

func (t *TickerScheduler) run(fps int) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval(fps))
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case fps := <-t.fpsCh:
			ticker.Reset(interval(fps))
			t.logger.Debug("frame rate changed", slog.Int("fps", fps))
		case <-ticker.C:
			t.q.dispatch(t.now())
		}
	}
}

func interval(fps int) time.Duration {
	return time.Second / time.Duration(fps)
}

var _ ports.FrameScheduler = (*TickerScheduler)(nil)
