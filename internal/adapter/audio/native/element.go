package native

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// player is the subset of *oto.Player the element drives.
type player interface {
	Play()
	Pause()
	Close() error
}

// Element implements ports.MediaElement. It decodes its source, pushes
// samples to connected analysers and plays them through the shared output.
//
// Lock order: the output device holds its player lock while it calls Read,
// which takes e.mu. Player methods are therefore never called under e.mu.
type Element struct {
	platform *Platform
	logger   *slog.Logger

	mu      sync.Mutex
	src     string
	stream  *resampler
	gen     uint64
	player  player
	paused  bool
	ended   bool
	volume  float64
	audible bool
	taps    tapSet
	scratch []float32

	// newPlayer is swapped in tests.
	newPlayer func(r io.Reader) (player, error)
}

var _ ports.MediaElement = (*Element)(nil)

func newElement(p *Platform) *Element {
	e := &Element{
		platform: p,
		logger:   p.logger.With(slog.String("component", "media_element")),
		paused:   true,
		volume:   1.0,
	}
	e.newPlayer = e.otoPlayer
	return e
}

func (e *Element) otoPlayer(r io.Reader) (player, error) {
	ctx, err := e.platform.output()
	if err != nil {
		return nil, err
	}
	return ctx.NewPlayer(r), nil
}

// Src returns the current source.
func (e *Element) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// SetSrc decodes a new source and stops the previous one. The element is
// paused afterwards. On failure the previous source is already released.
func (e *Element) SetSrc(src string) error {
	old := e.detachSource()
	if old != nil {
		_ = old.Close()
	}

	if src == "" {
		return domain.NewDecodeError(src, "", "empty source", domain.ErrNoSource)
	}

	s, err := openSource(context.Background(), e.platform.client, src, e.platform.opts.MaxRemoteBytes)
	if err != nil {
		e.logger.Warn("failed to load source", slog.String("src", src), slog.Any("error", err))
		return err
	}

	e.mu.Lock()
	e.src = src
	e.stream = newResampler(s, e.platform.opts.SampleRate)
	e.ended = false
	e.mu.Unlock()

	e.logger.Info("source loaded",
		slog.String("src", src),
		slog.Int("rate", s.SampleRate()),
		slog.Int("channels", s.Channels()))
	return nil
}

// detachSource stops playback and releases the current stream.
func (e *Element) detachSource() *resampler {
	e.mu.Lock()
	p := e.player
	old := e.stream
	e.player = nil
	e.stream = nil
	e.src = ""
	e.paused = true
	e.gen++
	e.mu.Unlock()

	if p != nil {
		p.Pause()
		_ = p.Close()
	}
	return old
}

// Play starts or resumes playback. It fails with ErrAutoplayBlocked until a
// context has been resumed.
func (e *Element) Play() error {
	if !e.platform.unlocked.Load() {
		return domain.ErrAutoplayBlocked
	}

	e.mu.Lock()
	if e.src == "" {
		e.mu.Unlock()
		return domain.ErrNoSource
	}
	if e.ended {
		e.mu.Unlock()
		// Replay from the start.
		if err := e.SetSrc(e.Src()); err != nil {
			return err
		}
		e.mu.Lock()
	}

	p := e.player
	if p == nil {
		var err error
		p, err = e.newPlayer(&pcmReader{el: e, gen: e.gen})
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.player = p
	}
	e.paused = false
	e.mu.Unlock()

	p.Play()
	return nil
}

// Pause pauses playback.
func (e *Element) Pause() error {
	e.mu.Lock()
	p := e.player
	e.paused = true
	e.mu.Unlock()

	if p != nil {
		p.Pause()
	}
	return nil
}

// Paused reports whether the element is paused or finished.
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SetVolume sets the output gain. Analysers see the signal before gain.
func (e *Element) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 || math.IsNaN(volume) {
		return domain.ErrInvalidVolume
	}
	e.mu.Lock()
	e.volume = volume
	e.mu.Unlock()
	return nil
}

// Close releases the source and player.
func (e *Element) Close() error {
	old := e.detachSource()
	if old != nil {
		return old.Close()
	}
	return nil
}

func (e *Element) attach(t sampleSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taps.add(t)
}

func (e *Element) detach(t sampleSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taps.remove(t)
}

func (e *Element) route(audible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audible = audible
}

// render decodes up to frames stereo frames for reader generation gen.
// It returns the samples, the gain to apply and the taps to feed.
func (e *Element) render(gen uint64, frames int) ([]float32, float32, []sampleSink, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.stream == nil {
		return nil, 0, nil, io.EOF
	}

	need := frames * outputChannels
	if cap(e.scratch) < need {
		e.scratch = make([]float32, need)
	}
	n, err := e.stream.ReadFrames(e.scratch[:need])
	if err != nil {
		if errors.Is(err, io.EOF) {
			e.ended = true
			e.paused = true
		} else {
			e.logger.Error("decode failed", slog.String("src", e.src), slog.Any("error", err))
		}
		return nil, 0, nil, err
	}

	gain := float32(e.volume)
	if !e.audible {
		gain = 0
	}
	return e.scratch[:n], gain, e.taps.snapshot(), nil
}

// pcmReader feeds the oto player with signed 16-bit little-endian stereo.
type pcmReader struct {
	el  *Element
	gen uint64
}

func (r *pcmReader) Read(p []byte) (int, error) {
	frames := len(p) / (outputChannels * 2)
	if frames == 0 {
		return 0, nil
	}

	samples, gain, taps, err := r.el.render(r.gen, frames)
	if err != nil {
		return 0, err
	}

	for _, t := range taps {
		t.WriteInterleaved(samples, outputChannels)
	}

	for i, s := range samples {
		v := s * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(p[2*i:], uint16(int16(v*32767)))
	}
	return len(samples) * 2, nil
}

var _ player = (*oto.Player)(nil)
