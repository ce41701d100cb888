package service

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
	"github.com/tejashwikalptaru/beatify/internal/visualizer"
)

// SampleSource provides refreshed analyser buffers. AudioGraphManager
// implements it.
type SampleSource interface {
	Buffers() (domain.SampleBuffers, error)
	RefreshFrequency() error
	RefreshTimeDomain() error
}

// RenderScheduler owns the surface and drives the frame loop.
//
// Only one loop paints at a time: every restart cancels the pending frame
// under mu and bumps the loop generation, and a tick from an older
// generation returns without drawing.
type RenderScheduler struct {
	// Dependencies (injected)
	logger  *slog.Logger
	samples SampleSource
	frames  ports.FrameScheduler

	// Surface and per-surface state
	surface  *visualizer.Surface
	rotation visualizer.Rotation

	// Loop session
	mode     domain.Mode
	renderer visualizer.Renderer
	state    *visualizer.FrameState
	loopGen  uint64
	handle   ports.FrameHandle
	running  bool
	epoch    time.Time

	onFrame func()

	mu sync.Mutex
}

// NewRenderScheduler creates a scheduler with an unsized surface in Bars mode.
// No loop runs until Restart or SetMode.
func NewRenderScheduler(
	logger *slog.Logger,
	samples SampleSource,
	frames ports.FrameScheduler,
) *RenderScheduler {
	return &RenderScheduler{
		logger:   logger,
		samples:  samples,
		frames:   frames,
		surface:  visualizer.NewSurface(),
		mode:     domain.ModeBars,
		renderer: visualizer.NewBars(),
	}
}

// Bind sets the initial surface size.
func (r *RenderScheduler) Bind(width, height, ratio float64) {
	r.Resize(width, height, ratio)
}

// Resize recomputes the physical buffer as logical size × ratio.
// Non-positive sizes are ignored.
func (r *RenderScheduler) Resize(width, height, ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.surface.Resize(width, height, ratio) {
		r.logger.Debug("ignoring invalid surface size",
			slog.Float64("width", width),
			slog.Float64("height", height),
			slog.Float64("ratio", ratio))
		return
	}
	pw, ph := r.surface.PhysicalSize()
	r.logger.Debug("surface resized",
		slog.Float64("width", width),
		slog.Float64("height", height),
		slog.Float64("ratio", ratio),
		slog.Int("physical_width", pw),
		slog.Int("physical_height", ph))
}

// SetMode switches the renderer and restarts the loop.
func (r *RenderScheduler) SetMode(mode domain.Mode) {
	r.mu.Lock()
	r.mode = mode
	hook := r.restartLocked()
	r.mu.Unlock()

	r.logger.Debug("mode set", slog.String("mode", mode.String()))
	if hook != nil {
		hook()
	}
}

// Mode returns the active mode.
func (r *RenderScheduler) Mode() domain.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Restart cancels the current loop, clears the surface, allocates fresh
// smoothing and starts a new loop. Rotation is kept.
func (r *RenderScheduler) Restart() {
	r.mu.Lock()
	hook := r.restartLocked()
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// restartLocked returns the frame hook to call once mu is released, or nil
// when the surface is unsized.
func (r *RenderScheduler) restartLocked() func() {
	r.cancelLocked()
	r.surface.Clear()

	bins := domain.FFTSize / 2
	if buffers, err := r.samples.Buffers(); err == nil {
		bins = buffers.FrequencyBinCount()
	}

	r.renderer = visualizer.Factory(r.mode)
	r.state = visualizer.NewFrameState(bins, &r.rotation)
	r.loopGen++
	r.running = true
	r.handle = r.frames.RequestFrame(r.tick(r.loopGen))

	if !r.surface.Ready() {
		return nil
	}
	return r.onFrame
}

func (r *RenderScheduler) cancelLocked() {
	if r.running {
		r.frames.CancelFrame(r.handle)
		r.running = false
	}
}

// tick returns the frame callback of loop generation gen.
func (r *RenderScheduler) tick(gen uint64) ports.FrameCallback {
	return func(now time.Time) {
		r.mu.Lock()
		if gen != r.loopGen || !r.running {
			r.mu.Unlock()
			return
		}
		r.handle = r.frames.RequestFrame(r.tick(gen))
		painted := r.paintLocked(now)
		hook := r.onFrame
		r.mu.Unlock()

		if painted && hook != nil {
			hook()
		}
	}
}

// paintLocked draws one frame. A missing buffer or an unsized surface makes
// the tick a no-op.
func (r *RenderScheduler) paintLocked(now time.Time) bool {
	if !r.surface.Ready() {
		return false
	}

	var err error
	if r.renderer.Source() == visualizer.TimeDomainBuffer {
		err = r.samples.RefreshTimeDomain()
	} else {
		err = r.samples.RefreshFrequency()
	}
	if err != nil {
		return false
	}
	buffers, err := r.samples.Buffers()
	if err != nil {
		return false
	}

	data := buffers.Frequency
	if r.renderer.Source() == visualizer.TimeDomainBuffer {
		data = buffers.TimeDomain
	}

	if r.epoch.IsZero() {
		r.epoch = now
	}

	r.surface.Fill(r.renderer.Background())
	r.renderer.Render(r.surface, visualizer.Frame{Data: data, Elapsed: now.Sub(r.epoch)}, r.state)
	return true
}

// Teardown cancels the loop and clears the surface.
func (r *RenderScheduler) Teardown() {
	r.mu.Lock()
	r.cancelLocked()
	r.loopGen++
	r.surface.Clear()
	hook := r.onFrame
	r.mu.Unlock()

	r.logger.Debug("render loop torn down")
	if hook != nil {
		hook()
	}
}

// Running reports whether a loop is scheduled.
func (r *RenderScheduler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// OnFrame registers a hook called after every painted frame, after a
// restart clears the surface and after Teardown. It runs on the frame goroutine and must not block.
func (r *RenderScheduler) OnFrame(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = hook
}

// Snapshot copies the physical pixels into dst, reallocating dst when its
// bounds differ. Returns nil while the surface is unsized.
func (r *RenderScheduler) Snapshot(dst *image.RGBA) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	img := r.surface.Image()
	if img == nil {
		return nil
	}
	if dst == nil || dst.Rect != img.Rect {
		dst = image.NewRGBA(img.Rect)
	}
	copy(dst.Pix, img.Pix)
	return dst
}

// PhysicalSize returns the physical surface dimensions.
func (r *RenderScheduler) PhysicalSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface.PhysicalSize()
}

// RotationPhase returns the radial rotation accumulator.
func (r *RenderScheduler) RotationPhase() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotation.Phase
}
