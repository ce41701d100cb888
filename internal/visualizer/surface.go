// Package visualizer contains the drawing surface and the three mode renderers.
// Renderers are pure per-frame transforms: they read a sample buffer and the
// state passed to them and paint onto a Surface.
package visualizer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// glowLayers is the number of translucent halos used to approximate a blur.
const glowLayers = 3

// Point is a position in logical (layout) units.
type Point struct {
	X, Y float64
}

// Glow describes a soft halo drawn behind a shape.
type Glow struct {
	Radius float64
	Color  color.NRGBA
}

// Surface is the drawing target. It keeps a logical size in layout pixels and
// a physical RGBA buffer of logical size × pixel ratio. Every drawing method
// takes logical coordinates and applies the ratio.
//
// Surface is not safe for concurrent use; the render scheduler owns it.
type Surface struct {
	width  float64
	height float64
	ratio  float64

	img    *image.RGBA
	raster *vector.Rasterizer

	ops int
}

// NewSurface creates an unsized surface. Draw calls are ignored until Resize.
func NewSurface() *Surface {
	return &Surface{
		ratio:  1,
		raster: vector.NewRasterizer(0, 0),
	}
}

// Resize sets the logical size and pixel ratio and recomputes the physical
// buffer. Returns false and leaves the surface unchanged for non-positive input.
func (s *Surface) Resize(width, height, ratio float64) bool {
	if width <= 0 || height <= 0 || ratio <= 0 ||
		math.IsNaN(width) || math.IsNaN(height) || math.IsNaN(ratio) {
		return false
	}

	pw, ph := PhysicalDimensions(width, height, ratio)
	s.width, s.height, s.ratio = width, height, ratio
	if s.img == nil || s.img.Rect.Dx() != pw || s.img.Rect.Dy() != ph {
		s.img = image.NewRGBA(image.Rect(0, 0, pw, ph))
	}
	return true
}

// PhysicalDimensions returns the device-pixel size for a logical size and ratio.
func PhysicalDimensions(width, height, ratio float64) (int, int) {
	return max(1, int(math.Round(width*ratio))), max(1, int(math.Round(height*ratio)))
}

// Ready reports whether the surface has been sized.
func (s *Surface) Ready() bool {
	return s.img != nil
}

// Size returns the logical size.
func (s *Surface) Size() (width, height float64) {
	return s.width, s.height
}

// PixelRatio returns the device pixel ratio.
func (s *Surface) PixelRatio() float64 {
	return s.ratio
}

// PhysicalSize returns the size of the pixel buffer.
func (s *Surface) PhysicalSize() (int, int) {
	if s.img == nil {
		return 0, 0
	}
	return s.img.Rect.Dx(), s.img.Rect.Dy()
}

// Image returns the physical pixel buffer. It is nil before the first Resize.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// Ops returns the number of draw calls since the last ResetOps.
func (s *Surface) Ops() int {
	return s.ops
}

// ResetOps zeroes the draw call counter.
func (s *Surface) ResetOps() {
	s.ops = 0
}

// Clear resets every pixel to transparent black.
func (s *Surface) Clear() {
	if s.img == nil {
		return
	}
	clear(s.img.Pix)
}

// Fill composites c over the whole surface.
func (s *Surface) Fill(c color.Color) {
	if s.img == nil {
		return
	}
	s.ops++
	draw.Draw(s.img, s.img.Rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// FillRect fills an axis-aligned rectangle, with an optional glow.
func (s *Surface) FillRect(x, y, w, h float64, c color.Color, glow *Glow) {
	if s.img == nil || w <= 0 || h <= 0 {
		return
	}
	s.ops++
	if glow != nil && glow.Radius > 0 {
		for l := glowLayers; l >= 1; l-- {
			d := glow.Radius * float64(l) / glowLayers
			s.fillPath(rectPoints(x-d, y-d, w+2*d, h+2*d), image.NewUniform(glowLayerColor(glow.Color)))
		}
	}
	s.fillPath(rectPoints(x, y, w, h), image.NewUniform(c))
}

// FillRotatedRect fills a rectangle given in a local frame that is rotated by
// angle (radians) around the origin and translated to center.
func (s *Surface) FillRotatedRect(center Point, angle, x, y, w, h float64, c color.Color, glow *Glow) {
	if s.img == nil || w <= 0 || h <= 0 {
		return
	}
	s.ops++
	sin, cos := math.Sincos(angle)
	transform := func(pts []Point) []Point {
		for i, p := range pts {
			pts[i] = Point{
				X: center.X + p.X*cos - p.Y*sin,
				Y: center.Y + p.X*sin + p.Y*cos,
			}
		}
		return pts
	}
	if glow != nil && glow.Radius > 0 {
		for l := glowLayers; l >= 1; l-- {
			d := glow.Radius * float64(l) / glowLayers
			s.fillPath(transform(rectPoints(x-d, y-d, w+2*d, h+2*d)), image.NewUniform(glowLayerColor(glow.Color)))
		}
	}
	s.fillPath(transform(rectPoints(x, y, w, h)), image.NewUniform(c))
}

// StrokePolyline strokes an open polyline with square caps. paint is sampled in
// physical coordinates; use Solid or HorizontalGradient to build it.
func (s *Surface) StrokePolyline(pts []Point, width float64, paint image.Image, glow *Glow) {
	if s.img == nil || len(pts) < 2 || width <= 0 {
		return
	}
	s.ops++
	if glow != nil && glow.Radius > 0 {
		for l := glowLayers; l >= 1; l-- {
			d := glow.Radius * float64(l) / glowLayers
			s.strokePath(pts, width+2*d, image.NewUniform(glowLayerColor(glow.Color)))
		}
	}
	s.strokePath(pts, width, paint)
}

// Solid returns a paint of a single color.
func Solid(c color.Color) image.Image {
	return image.NewUniform(c)
}

// GradientStop is a color at an offset in [0, 1] along a gradient.
type GradientStop struct {
	Offset float64
	Color  color.NRGBA
}

// HorizontalGradient returns a paint that interpolates stops from logical x0 to x1.
// alpha scales every stop, like a global alpha applied to the stroke.
func (s *Surface) HorizontalGradient(x0, x1 float64, stops []GradientStop, alpha float64) image.Image {
	return &linearGradient{
		x0:    x0 * s.ratio,
		x1:    x1 * s.ratio,
		stops: stops,
		alpha: alpha,
	}
}

func (s *Surface) strokePath(pts []Point, width float64, paint image.Image) {
	half := width / 2
	var path [][]Point
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length*half, dy/length*half
		// Perpendicular (-uy, ux) keeps every quad wound the same way, so
		// overlaps at joints saturate instead of cancelling.
		a = Point{a.X - ux, a.Y - uy}
		b = Point{b.X + ux, b.Y + uy}
		path = append(path, []Point{
			{a.X - uy, a.Y + ux},
			{b.X - uy, b.Y + ux},
			{b.X + uy, b.Y - ux},
			{a.X + uy, a.Y - ux},
		})
	}
	s.fillPaths(path, paint)
}

func (s *Surface) fillPath(pts []Point, src image.Image) {
	s.fillPaths([][]Point{pts}, src)
}

// fillPaths rasterizes closed paths inside their clipped bounding box so the
// cost of a shape is proportional to its area, not to the surface.
func (s *Surface) fillPaths(paths [][]Point, src image.Image) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			x, y := p.X*s.ratio, p.Y*s.ratio
			minX, minY = math.Min(minX, x), math.Min(minY, y)
			maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
		}
	}
	box := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	).Intersect(s.img.Rect)
	if box.Empty() {
		return
	}

	s.raster.Reset(box.Dx(), box.Dy())
	s.raster.DrawOp = draw.Over
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	for _, path := range paths {
		for i, p := range path {
			x := float32(p.X*s.ratio - ox)
			y := float32(p.Y*s.ratio - oy)
			if i == 0 {
				s.raster.MoveTo(x, y)
			} else {
				s.raster.LineTo(x, y)
			}
		}
		s.raster.ClosePath()
	}

	view := &image.RGBA{
		Pix:    s.img.Pix[s.img.PixOffset(box.Min.X, box.Min.Y):],
		Stride: s.img.Stride,
		Rect:   image.Rect(0, 0, box.Dx(), box.Dy()),
	}
	s.raster.Draw(view, view.Rect, src, box.Min)
}

func rectPoints(x, y, w, h float64) []Point {
	return []Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}

func glowLayerColor(c color.NRGBA) color.NRGBA {
	return WithAlpha(c, 0.35/glowLayers)
}

type linearGradient struct {
	x0, x1 float64
	stops  []GradientStop
	alpha  float64
}

func (g *linearGradient) ColorModel() color.Model {
	return color.NRGBAModel
}

func (g *linearGradient) Bounds() image.Rectangle {
	return image.Rect(-1e9, -1e9, 1e9, 1e9)
}

func (g *linearGradient) At(x, _ int) color.Color {
	if len(g.stops) == 0 {
		return color.NRGBA{}
	}
	t := 0.0
	if g.x1 != g.x0 {
		t = (float64(x) + 0.5 - g.x0) / (g.x1 - g.x0)
	}
	return WithAlpha(g.colorAt(t), g.alpha)
}

func (g *linearGradient) colorAt(t float64) color.NRGBA {
	first, last := g.stops[0], g.stops[len(g.stops)-1]
	if t <= first.Offset {
		return first.Color
	}
	if t >= last.Offset {
		return last.Color
	}
	for i := 1; i < len(g.stops); i++ {
		a, b := g.stops[i-1], g.stops[i]
		if t > b.Offset {
			continue
		}
		f := 0.0
		if b.Offset > a.Offset {
			f = (t - a.Offset) / (b.Offset - a.Offset)
		}
		return color.NRGBA{
			R: lerp8(a.Color.R, b.Color.R, f),
			G: lerp8(a.Color.G, b.Color.G, f),
			B: lerp8(a.Color.B, b.Color.B, f),
			A: lerp8(a.Color.A, b.Color.A, f),
		}
	}
	return last.Color
}

func lerp8(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
