// Package widgets provides custom Fyne widgets for the Beatify application.
package widgets

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// FrameSource provides the latest rendered frame.
type FrameSource interface {
	// Snapshot copies the current pixels into dst, reallocating it when
	// the bounds differ. Returns nil while nothing has been sized.
	Snapshot(dst *image.RGBA) *image.RGBA
}

// SurfaceView shows frames produced off the UI thread. It reports its
// logical size and the canvas scale whenever the raster size changes, and
// forwards taps as user gestures.
type SurfaceView struct {
	widget.BaseWidget

	raster *canvas.Raster
	source FrameSource

	mu       sync.Mutex
	frame    *image.RGBA
	lastW    int
	lastH    int
	onResize func(width, height, scale float64)
	onTap    func()
}

// NewSurfaceView creates a surface view drawing frames from source.
func NewSurfaceView(source FrameSource) *SurfaceView {
	v := &SurfaceView{source: source}
	v.raster = canvas.NewRaster(v.draw)
	v.ExtendBaseWidget(v)
	return v
}

// CreateRenderer implements fyne.Widget.
func (v *SurfaceView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.raster)
}

// MinSize keeps a small but visible canvas.
func (v *SurfaceView) MinSize() fyne.Size {
	return fyne.NewSize(160, 90)
}

// SetOnResize registers the resize callback. It runs on the render thread.
func (v *SurfaceView) SetOnResize(fn func(width, height, scale float64)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onResize = fn
	v.lastW, v.lastH = 0, 0
}

// SetOnTapped registers the tap callback.
func (v *SurfaceView) SetOnTapped(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onTap = fn
}

// Tapped implements fyne.Tappable.
func (v *SurfaceView) Tapped(*fyne.PointEvent) {
	v.mu.Lock()
	fn := v.onTap
	v.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// draw is the raster generator. w and h are in physical pixels.
func (v *SurfaceView) draw(w, h int) image.Image {
	size := v.Size()

	v.mu.Lock()
	resized := w != v.lastW || h != v.lastH
	if resized {
		v.lastW, v.lastH = w, h
	}
	onResize := v.onResize
	v.mu.Unlock()

	if resized && onResize != nil && size.Width > 0 && size.Height > 0 {
		onResize(float64(size.Width), float64(size.Height), float64(w)/float64(size.Width))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.frame = v.source.Snapshot(v.frame)
	if v.frame == nil {
		blank := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(blank, blank.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		return blank
	}
	return v.frame
}

var _ fyne.Tappable = (*SurfaceView)(nil)
