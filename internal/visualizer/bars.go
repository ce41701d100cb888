package visualizer

import (
	"image/color"
	"math"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// Bars constants.
const (
	BarsSmoothing  = 0.2
	barsWidthScale = 1.15
	barsGap        = 0.5
	barsMaxGlow    = 30.0
)

// Bars draws a bottom-up rainbow bar spectrum.
type Bars struct{}

// NewBars creates a bars renderer.
func NewBars() *Bars {
	return &Bars{}
}

// Mode returns domain.ModeBars.
func (b *Bars) Mode() domain.Mode { return domain.ModeBars }

// Source returns FrequencyBuffer.
func (b *Bars) Source() BufferKind { return FrequencyBuffer }

// Background returns opaque black.
func (b *Bars) Background() color.NRGBA { return color.NRGBA{A: 255} }

// Render smooths every bin and draws one bar per bin.
func (b *Bars) Render(s *Surface, f Frame, st *FrameState) {
	n := min(len(f.Data), len(st.Smoothing))
	if n == 0 {
		return
	}
	smooth(st.Smoothing, f.Data, BarsSmoothing)

	w, h := s.Size()
	pitch := w / float64(n) * barsWidthScale
	scale := h / 255

	for i := 0; i < n; i++ {
		height := st.Smoothing[i] * scale
		hue := float64(i) / float64(n) * 360
		s.FillRect(
			float64(i)*pitch,
			h-height,
			pitch-barsGap,
			height,
			HSL(hue, 100, 50, 1),
			&Glow{Radius: math.Min(height/3, barsMaxGlow), Color: HSL(hue, 100, 70, 1)},
		)
	}
}
