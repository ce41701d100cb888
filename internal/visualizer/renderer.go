package visualizer

import (
	"image/color"
	"time"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// BufferKind selects which analyser buffer a renderer consumes.
type BufferKind int

const (
	// FrequencyBuffer is the per-bin magnitude snapshot.
	FrequencyBuffer BufferKind = iota
	// TimeDomainBuffer is the raw waveform snapshot.
	TimeDomainBuffer
)

// Rotation is the radial phase accumulator. It is owned per surface by the
// scheduler and survives loop restarts.
type Rotation struct {
	Phase float64
}

// FrameState is the persistent state handed to a renderer every frame.
type FrameState struct {
	// Smoothing holds one value per frequency bin for the current loop session.
	Smoothing []float64

	// Rotation is shared across sessions on the same surface.
	Rotation *Rotation
}

// NewFrameState allocates fresh smoothing for bins and attaches rotation.
func NewFrameState(bins int, rotation *Rotation) *FrameState {
	return &FrameState{
		Smoothing: make([]float64, bins),
		Rotation:  rotation,
	}
}

// Frame is one tick's input.
type Frame struct {
	// Data is the refreshed buffer selected by the renderer's Source.
	Data []byte

	// Elapsed is the time since the scheduler's epoch, used for color cycling.
	Elapsed time.Duration
}

// Renderer paints one visualization mode.
type Renderer interface {
	// Mode returns the mode this renderer draws.
	Mode() domain.Mode

	// Source returns the buffer kind the renderer reads.
	Source() BufferKind

	// Background returns the fill painted before each frame. An alpha below
	// 255 leaves a fading trail of previous frames.
	Background() color.NRGBA

	// Render paints one frame. It must not block.
	Render(s *Surface, f Frame, st *FrameState)
}

// Factory creates the renderer for a mode. Unknown modes fall back to Bars.
func Factory(mode domain.Mode) Renderer {
	switch mode {
	case domain.ModeWaveform:
		return NewWaveform()
	case domain.ModeRadial:
		return NewRadial()
	default:
		return NewBars()
	}
}

// smooth applies next = prev + (input - prev) × factor over the common length.
func smooth(smoothed []float64, data []byte, factor float64) {
	n := min(len(smoothed), len(data))
	for i := 0; i < n; i++ {
		smoothed[i] += (float64(data[i]) - smoothed[i]) * factor
	}
}
