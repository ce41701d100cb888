// Package domain contains the core models of the Beatify visualizer with no
// external dependencies.
package domain

import (
	"fmt"
	"strings"
)

// FFTSize is the fixed analysis transform size for the whole session.
// The frequency buffer holds FFTSize/2 bins and the time buffer FFTSize samples.
const FFTSize = 256

// SourceKind identifies which audio source feeds the analyser.
type SourceKind int

const (
	// SourceNone means no source is connected to the analyser.
	SourceNone SourceKind = iota
	// SourceFile is the file-backed media element.
	SourceFile
	// SourceMic is a live microphone capture stream.
	SourceMic
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceNone:
		return "none"
	case SourceFile:
		return "file"
	case SourceMic:
		return "mic"
	default:
		return "unknown"
	}
}

// Mode is a visualization mode.
type Mode int

const (
	// ModeBars renders a bar spectrum.
	ModeBars Mode = iota
	// ModeWaveform renders the time-domain waveform.
	ModeWaveform
	// ModeRadial renders a rotating radial spectrum.
	ModeRadial
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeBars, ModeWaveform, ModeRadial}

// String returns the display name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBars:
		return "Bars"
	case ModeWaveform:
		return "Wave"
	case ModeRadial:
		return "Radial"
	default:
		return "Unknown"
	}
}

// ParseMode converts a mode selector value into a Mode.
// "Wave" and "Waveform" both select the waveform renderer; matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bars":
		return ModeBars, nil
	case "wave", "waveform":
		return ModeWaveform, nil
	case "radial":
		return ModeRadial, nil
	default:
		return ModeBars, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// GraphState is the lifecycle state of the audio graph manager.
type GraphState int

const (
	// GraphUninitialized means no element has been bound yet.
	GraphUninitialized GraphState = iota
	// GraphBound means the context and analyser exist but no source is active.
	GraphBound
	// GraphFileActive means the media element feeds the analyser.
	GraphFileActive
	// GraphMicActive means a capture stream feeds the analyser.
	GraphMicActive
	// GraphDisposed is terminal. All hardware resources have been released.
	GraphDisposed
)

// String returns the string representation of the graph state.
func (s GraphState) String() string {
	switch s {
	case GraphUninitialized:
		return "uninitialized"
	case GraphBound:
		return "bound"
	case GraphFileActive:
		return "file_active"
	case GraphMicActive:
		return "mic_active"
	case GraphDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// SourceActive reports whether a source currently feeds the analyser.
func (s GraphState) SourceActive() bool {
	return s == GraphFileActive || s == GraphMicActive
}

// ContextState mirrors the platform audio context state.
type ContextState string

const (
	ContextSuspended ContextState = "suspended"
	ContextRunning   ContextState = "running"
	ContextClosed    ContextState = "closed"
)

// SampleBuffers holds the analyser output buffers.
// The slices are allocated once per binding and refreshed in place.
type SampleBuffers struct {
	Frequency  []byte
	TimeDomain []byte
}

// NewSampleBuffers allocates buffers for the given transform size.
func NewSampleBuffers(fftSize int) SampleBuffers {
	return SampleBuffers{
		Frequency:  make([]byte, fftSize/2),
		TimeDomain: make([]byte, fftSize),
	}
}

// FrequencyBinCount returns the number of frequency bins.
func (b SampleBuffers) FrequencyBinCount() int {
	return len(b.Frequency)
}

// SampleCount returns the number of time-domain samples.
func (b SampleBuffers) SampleCount() int {
	return len(b.TimeDomain)
}

// SampleDepth is the bit depth of every buffer sample.
const SampleDepth = 8

// Track is a playable source offered to the user.
type Track struct {
	// Name is the display name
	Name string

	// Src is a file path or an http(s) URL
	Src string

	// Artist is filled from tag metadata when available
	Artist string

	// Trial marks a built-in demo track
	Trial bool
}

// DisplayName returns "Artist - Name" when the artist is known.
func (t Track) DisplayName() string {
	if t.Artist != "" {
		return t.Artist + " - " + t.Name
	}
	return t.Name
}
