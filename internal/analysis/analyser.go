// Package analysis turns a stream of audio samples into the byte-scaled
// frequency and time-domain snapshots consumed by the renderers.
package analysis

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Defaults match the usual analyser node configuration.
const (
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0

	minFFTSize = 32
	maxFFTSize = 32768
)

// Analyser keeps the most recent fftSize mono samples and produces snapshots
// on demand. Audio callbacks call Write; frame ticks call the Byte* methods.
//
// Thread-safety: all methods are safe for concurrent use.
type Analyser struct {
	mu sync.Mutex

	fftSize int
	ring    []float64
	pos     int

	fft      *fourier.FFT
	window   []float64
	input    []float64
	coeffs   []complex128
	smoothed []float64

	smoothing float64
	minDB     float64
	maxDB     float64
}

// New creates an analyser. fftSize must be a power of two between 32 and 32768.
func New(fftSize int) (*Analyser, error) {
	if fftSize < minFFTSize || fftSize > maxFFTSize || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of 2 in [%d, %d], got %d", minFFTSize, maxFFTSize, fftSize)
	}

	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	window.Blackman(coeffs)

	return &Analyser{
		fftSize:   fftSize,
		ring:      make([]float64, fftSize),
		fft:       fourier.NewFFT(fftSize),
		window:    coeffs,
		input:     make([]float64, fftSize),
		coeffs:    make([]complex128, fftSize/2+1),
		smoothed:  make([]float64, fftSize/2),
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDecibels,
		maxDB:     DefaultMaxDecibels,
	}, nil
}

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int {
	return a.fftSize
}

// FrequencyBinCount returns FFTSize/2.
func (a *Analyser) FrequencyBinCount() int {
	return a.fftSize / 2
}

// SetSmoothing sets the temporal smoothing constant in [0, 1).
func (a *Analyser) SetSmoothing(tc float64) error {
	if tc < 0 || tc >= 1 {
		return fmt.Errorf("smoothing must be in [0, 1), got %f", tc)
	}
	a.mu.Lock()
	a.smoothing = tc
	a.mu.Unlock()
	return nil
}

// SetDecibelRange sets the range mapped onto 0..255.
func (a *Analyser) SetDecibelRange(minDB, maxDB float64) error {
	if minDB >= maxDB {
		return fmt.Errorf("min decibels (%f) must be below max decibels (%f)", minDB, maxDB)
	}
	a.mu.Lock()
	a.minDB, a.maxDB = minDB, maxDB
	a.mu.Unlock()
	return nil
}

// Write appends mono samples in [-1, 1] to the ring buffer.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Only the newest fftSize samples can ever be read back.
	if len(samples) > a.fftSize {
		samples = samples[len(samples)-a.fftSize:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos++
		if a.pos == a.fftSize {
			a.pos = 0
		}
	}
}

// WriteInterleaved mixes interleaved frames down to mono and writes them.
func (a *Analyser) WriteInterleaved(samples []float32, channels int) {
	if channels <= 1 {
		a.Write(samples)
		return
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[f*channels+ch]
		}
		mono[f] = sum / float32(channels)
	}
	a.Write(mono)
}

// Reset clears the sample history and the smoothing memory.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

// ByteFrequencyData computes the windowed spectrum of the current samples and
// writes it into dst scaled to 0..255. Only min(len(dst), FFTSize/2) bins are written.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < a.fftSize; i++ {
		a.input[i] = a.ring[(a.pos+i)%a.fftSize] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.input)

	scale := 255.0 / (a.maxDB - a.minDB)
	norm := 1.0 / float64(a.fftSize)
	n := min(len(dst), len(a.smoothed))
	for k := range a.smoothed {
		c := a.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) * norm
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if k >= n {
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		dst[k] = clampByte((db - a.minDB) * scale)
	}
}

// ByteTimeDomainData writes the newest min(len(dst), FFTSize) samples into
// dst as 128 × (1 + sample), clamped to 0..255.
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := min(len(dst), a.fftSize)
	start := a.pos + a.fftSize - n
	for i := 0; i < n; i++ {
		s := a.ring[(start+i)%a.fftSize]
		dst[i] = clampByte(128 * (1 + s))
	}
}

func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}
