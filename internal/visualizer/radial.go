package visualizer

import (
	"image/color"
	"math"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// Radial constants.
const (
	RadialSmoothing = 0.25
	RotationStep    = 0.002
	SoftCapLimit    = 1.25

	radialInnerRadius = 0.15
	radialEdgeMargin  = 10.0
	radialGain        = 1.8
	radialPulse       = 0.25
	radialExponent    = 0.8
	radialSoftness    = 1.2
	radialReach       = 0.85
	radialBarWidth    = 2.4
	radialGlow        = 25.0
	radialHueRate     = 20.0 // degrees per second
)

// Radial draws a rotating rainbow ring of bars around the center.
type Radial struct{}

// NewRadial creates a radial renderer.
func NewRadial() *Radial {
	return &Radial{}
}

// Mode returns domain.ModeRadial.
func (r *Radial) Mode() domain.Mode { return domain.ModeRadial }

// Source returns FrequencyBuffer.
func (r *Radial) Source() BufferKind { return FrequencyBuffer }

// Background returns a translucent black for motion trails.
func (r *Radial) Background() color.NRGBA { return color.NRGBA{A: 56} }

// Render advances the rotation, smooths every bin and draws one radial bar per bin.
func (r *Radial) Render(s *Surface, f Frame, st *FrameState) {
	if st.Rotation != nil {
		st.Rotation.Phase += RotationStep
	}
	n := min(len(f.Data), len(st.Smoothing))
	if n == 0 {
		return
	}
	smooth(st.Smoothing, f.Data, RadialSmoothing)

	width, height := s.Size()
	center := Point{X: width / 2, Y: height / 2}
	half := math.Min(center.X, center.Y)
	radius := half * radialInnerRadius
	maxLength := half - radius - radialEdgeMargin
	if maxLength <= 0 {
		return
	}

	pulse := Pulse(st.Smoothing[:n])
	hueShift := math.Mod(f.Elapsed.Seconds()*radialHueRate, 360)
	angleStep := 2 * math.Pi / float64(n)
	phase := 0.0
	if st.Rotation != nil {
		phase = st.Rotation.Phase
	}

	for i := 0; i < n; i++ {
		length := BarLength(st.Smoothing[i], pulse, maxLength)
		hue := math.Mod(float64(i)/float64(n)*360+hueShift, 360)
		s.FillRotatedRect(
			center,
			float64(i)*angleStep+phase,
			radius, -radialBarWidth/2,
			length*radialReach, radialBarWidth,
			HSL(hue, 100, 60, 1),
			&Glow{Radius: radialGlow, Color: HSL(hue, 100, 70, 1)},
		)
	}
}

// Pulse returns 1 + mean(smoothed/255) × 0.25.
func Pulse(smoothed []float64) float64 {
	if len(smoothed) == 0 {
		return 1
	}
	var sum float64
	for _, v := range smoothed {
		sum += v
	}
	return 1 + sum/(255*float64(len(smoothed)))*radialPulse
}

// BarLength converts a smoothed bin value into a compressed bar length.
func BarLength(smoothed, pulse, maxLength float64) float64 {
	raw := smoothed * radialGain * pulse
	return CompressRatio(raw/maxLength) * maxLength
}

// CompressRatio maps a raw length/maxLength ratio through ratio^0.8 and, when
// the result exceeds 1, a soft exponential cap that approaches SoftCapLimit.
func CompressRatio(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	r := math.Pow(ratio, radialExponent)
	if r > 1 {
		r = 1 + (1-math.Exp(-radialSoftness*(r-1)))*(SoftCapLimit-1)
	}
	return r
}
