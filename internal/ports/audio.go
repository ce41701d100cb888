// Package ports define interfaces for dependency inversion.
// These interfaces keep the audio graph and the render pipeline independent of
// the platform that provides audio and display refresh.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// AudioPlatform is the entry point to the host audio system.
// It abstracts the output device and capture hardware so the graph manager
// can be tested with a mock.
type AudioPlatform interface {
	// NewContext creates an audio-processing context.
	// Returns domain.ErrCapabilityUnavailable when the platform has no audio output.
	NewContext() (AudioContext, error)

	// RequestCapture asks for a live microphone stream. It may block until
	// the platform grants or denies access, so callers run it off the UI
	// and frame goroutines.
	//
	// Returns domain.ErrPermissionDenied when access is refused.
	RequestCapture(ctx context.Context) (CaptureStream, error)
}

// AudioContext owns the processing graph.
// A context starts suspended on platforms that require a user gesture.
type AudioContext interface {
	// State returns the current context state.
	State() domain.ContextState

	// Resume moves a suspended context to running.
	Resume() error

	// NewAnalyser creates an analysis node with a fixed transform size.
	NewAnalyser(fftSize int) (AnalyserNode, error)

	// NewElementSource creates a source node fed by a media element.
	// An element can only be wrapped once per context.
	NewElementSource(element MediaElement) (SourceNode, error)

	// NewStreamSource creates a source node fed by a capture stream.
	NewStreamSource(stream CaptureStream) (SourceNode, error)

	// Destination returns the output node (speakers).
	Destination() AudioNode

	// Close releases the context and its output device.
	Close() error
}

// AudioNode is any node that can receive a connection.
type AudioNode interface {
	// Label names the node for logs.
	Label() string
}

// SourceNode produces audio into the graph.
type SourceNode interface {
	AudioNode

	// Connect routes this source into dst. Connecting twice is a no-op.
	Connect(dst AudioNode) error

	// Disconnect removes the edge to dst. Disconnecting an absent edge is a no-op.
	Disconnect(dst AudioNode) error
}

// AnalyserNode exposes frequency and time-domain snapshots of its input.
type AnalyserNode interface {
	AudioNode

	// FFTSize returns the transform size.
	FFTSize() int

	// FrequencyBinCount returns FFTSize/2.
	FrequencyBinCount() int

	// ByteFrequencyData copies the current magnitude spectrum (0-255) into dst.
	ByteFrequencyData(dst []byte)

	// ByteTimeDomainData copies the current waveform (0-255, centered at 128) into dst.
	ByteTimeDomainData(dst []byte)
}

// CaptureStream is a live microphone stream holding a hardware track.
type CaptureStream interface {
	// Stop releases the hardware track. Stopping twice is a no-op.
	Stop() error

	// Active reports whether the hardware track is still open.
	Active() bool
}

// MediaElement is a playable element whose source can change.
// It plays the part of the host's media element: it owns decoding and
// playback, while the graph only taps its output.
type MediaElement interface {
	// Src returns the current source path or URL.
	Src() string

	// SetSrc loads a new source and stops the previous one.
	SetSrc(src string) error

	// Play starts playback. Returns domain.ErrAutoplayBlocked if the platform
	// has not been unlocked by a user gesture.
	Play() error

	// Pause pauses playback.
	Pause() error

	// Paused reports whether the element is paused.
	Paused() bool

	// SetVolume sets the element volume (0.0 to 1.0).
	SetVolume(volume float64) error
}
