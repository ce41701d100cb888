package visualizer

import (
	"image/color"
	"math"
)

// HSL returns the color for hue in degrees and saturation/lightness in
// percent, the way CSS hsl() specifies them. alpha is in [0, 1].
func HSL(hue, saturation, lightness, alpha float64) color.NRGBA {
	h := math.Mod(hue, 360)
	if h < 0 {
		h += 360
	}
	r, g, b := HSLToRGB(h/360, saturation/100, lightness/100)
	return color.NRGBA{
		R: unit8(r),
		G: unit8(g),
		B: unit8(b),
		A: unit8(alpha),
	}
}

// HSLToRGB converts HSL (each in [0, 1]) to RGB (each in [0, 1]).
func HSLToRGB(h, s, l float64) (r, g, b float64) {
	if s == 0 {
		return l, l, l
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	r = hueToRGB(p, q, h+1.0/3.0)
	g = hueToRGB(p, q, h)
	b = hueToRGB(p, q, h-1.0/3.0)

	return r, g, b
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 0.5 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// WithAlpha returns c with its alpha multiplied by a.
func WithAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = unit8(float64(c.A) / 255 * a)
	return c
}

func unit8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(math.Round(v * 255))
	}
}
