package visualizer

import (
	"image/color"
	"math"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// Waveform constants.
const (
	WaveAmplitude   = 2.0
	WaveTaper       = 0.05
	waveLineWidth   = 2.5
	waveGlow        = 15.0
	waveMirrorAlpha = 0.8
	waveHueRate     = 40.0 // milliseconds per degree
)

// Waveform draws the time-domain signal as two mirrored gradient traces.
type Waveform struct {
	points []Point
}

// NewWaveform creates a waveform renderer.
func NewWaveform() *Waveform {
	return &Waveform{}
}

// Mode returns domain.ModeWaveform.
func (w *Waveform) Mode() domain.Mode { return domain.ModeWaveform }

// Source returns TimeDomainBuffer.
func (w *Waveform) Source() BufferKind { return TimeDomainBuffer }

// Background returns a translucent black for motion trails.
func (w *Waveform) Background() color.NRGBA { return color.NRGBA{A: 64} }

// Render draws the upright trace at full opacity and the mirrored one at 80%.
func (w *Waveform) Render(s *Surface, f Frame, _ *FrameState) {
	if len(f.Data) < 2 {
		return
	}
	width, _ := s.Size()
	base := math.Mod(float64(f.Elapsed.Milliseconds())/waveHueRate, 360)
	stops := []GradientStop{
		{Offset: 0, Color: HSL(base, 100, 70, 1)},
		{Offset: 0.5, Color: HSL(base+120, 100, 70, 1)},
		{Offset: 1, Color: HSL(base+240, 100, 70, 1)},
	}
	glowColor := HSL(base+200, 100, 60, 1)

	for _, trace := range []struct{ invert, alpha float64 }{{1, 1}, {-1, waveMirrorAlpha}} {
		w.points = WavePoints(w.points[:0], f.Data, s, trace.invert)
		s.StrokePolyline(
			w.points,
			waveLineWidth,
			s.HorizontalGradient(0, width, stops, trace.alpha),
			&Glow{Radius: waveGlow, Color: WithAlpha(glowColor, trace.alpha)},
		)
	}
}

// WavePoints appends the trace of data across the surface to dst.
// Samples are centered (v/128 - 1), scaled by WaveAmplitude and half the
// height, and ramped linearly over the first and last WaveTaper of the samples.
func WavePoints(dst []Point, data []byte, s *Surface, invert float64) []Point {
	width, height := s.Size()
	n := len(data)
	mid := height / 2
	slice := width / float64(n-1)
	taper := int(math.Floor(float64(n) * WaveTaper))

	for i, sample := range data {
		amp := (float64(sample)/128 - 1) * height * WaveAmplitude / 2
		if taper > 0 {
			if i < taper {
				amp *= float64(i) / float64(taper)
			} else if i > n-taper {
				amp *= float64(n-i) / float64(taper)
			}
		}
		dst = append(dst, Point{X: float64(i) * slice, Y: mid + invert*amp})
	}
	return dst
}
