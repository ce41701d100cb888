// Package domain defines domain-specific errors.
// These errors describe audio graph and rendering failures independently of
// the platform that produced them.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services and adapters can return.
var (
	// ErrCapabilityUnavailable is returned when the platform has no usable
	// audio output or capture API.
	ErrCapabilityUnavailable = errors.New("audio capability unavailable")

	// ErrPermissionDenied is returned when a microphone capture request is rejected.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrAutoplayBlocked is returned when playback is started before the
	// audio context has been resumed by a user gesture.
	ErrAutoplayBlocked = errors.New("playback blocked until user gesture")

	// ErrNotReady is returned when the analyser, buffers or surface are not
	// initialized yet. Frame ticks treat it as a no-op.
	ErrNotReady = errors.New("not ready")

	// ErrGraphDisposed is returned when an operation is attempted on a disposed graph.
	ErrGraphDisposed = errors.New("audio graph disposed")

	// ErrContextClosed is returned when a closed audio context is used.
	ErrContextClosed = errors.New("audio context closed")

	// ErrUnsupportedFormat is returned when an audio file format cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoSource is returned when playback is requested with no source set.
	ErrNoSource = errors.New("no source set")

	// ErrInvalidVolume is returned when the volume is out of the 0.0-1.0 range.
	ErrInvalidVolume = errors.New("invalid volume: must be between 0.0 and 1.0")

	// ErrUnknownMode is returned when a mode name cannot be parsed.
	ErrUnknownMode = errors.New("unknown visualizer mode")
)

// GraphError represents a failure in the audio graph or its platform.
// It wraps low-level errors with the operation that failed.
type GraphError struct {
	Op      string // Operation that failed (e.g., "bind", "capture", "connect")
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio graph %s failed: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("audio graph %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError creates a new GraphError.
func NewGraphError(op, message string, err error) *GraphError {
	return &GraphError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// DecodeError represents a failure to open or decode an audio source.
type DecodeError struct {
	Src     string // Source path or URL
	Format  string // File extension, if known
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s '%s': %s", e.Format, e.Src, e.Message)
	}
	return fmt.Sprintf("decode '%s': %s", e.Src, e.Message)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(src, format, message string, err error) *DecodeError {
	return &DecodeError{
		Src:     src,
		Format:  format,
		Message: message,
		Err:     err,
	}
}

// IsCapabilityError reports whether err means the platform cannot provide audio at all.
func IsCapabilityError(err error) bool {
	return errors.Is(err, ErrCapabilityUnavailable)
}
