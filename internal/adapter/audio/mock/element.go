package mock

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// Element is a mock MediaElement.
//
// Thread-safety: This implementation is thread-safe.
type Element struct {
	logger *slog.Logger

	mu      sync.Mutex
	src     string
	paused  bool
	volume  float64
	plays   int
	history []string

	// Behavior configuration (for testing error scenarios)
	blockAutoplay bool
	failSrc       bool
	failPlay      bool
}

// NewElement creates a paused element with the default volume 1.0.
func NewElement() *Element {
	return &Element{paused: true, volume: 1.0}
}

// SetLogger sets the logger for this element.
func (e *Element) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

// SetBlockAutoplay makes Play return ErrAutoplayBlocked.
func (e *Element) SetBlockAutoplay(block bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blockAutoplay = block
}

// SetFailSrc makes SetSrc fail with an unsupported format error.
func (e *Element) SetFailSrc(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failSrc = fail
}

// SetFailPlay makes Play fail with a generic error.
func (e *Element) SetFailPlay(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failPlay = fail
}

// Src returns the current source.
func (e *Element) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// SetSrc loads a new source and pauses.
func (e *Element) SetSrc(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if src == "" {
		return domain.NewDecodeError(src, "", "empty source", domain.ErrNoSource)
	}
	if e.failSrc {
		return domain.NewDecodeError(src, "", "mock decode failure", domain.ErrUnsupportedFormat)
	}
	e.src = src
	e.paused = true
	e.history = append(e.history, src)
	if e.logger != nil {
		e.logger.Debug("source set", slog.String("src", src))
	}
	return nil
}

// Play starts playback.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.src == "":
		return domain.ErrNoSource
	case e.blockAutoplay:
		return domain.NewGraphError("play", "mock autoplay policy", domain.ErrAutoplayBlocked)
	case e.failPlay:
		return domain.NewGraphError("play", "mock play failure", nil)
	}
	e.paused = false
	e.plays++
	return nil
}

// Pause pauses playback.
func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	return nil
}

// Paused reports whether the element is paused.
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SetVolume sets the volume.
func (e *Element) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
	return nil
}

// Volume returns the current volume.
func (e *Element) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Plays returns how many times Play succeeded.
func (e *Element) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

// History returns every source set, oldest first.
func (e *Element) History() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.history...)
}

var _ ports.MediaElement = (*Element)(nil)
