// Package domain defines events for the event-driven architecture.
// Events let the audio graph, the render pipeline and the UI stay decoupled.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Source events
	EventSourceChanged   EventType = "source.changed"
	EventTrackLoaded     EventType = "track.loaded"
	EventPlaybackBlocked EventType = "playback.blocked"

	// Microphone events
	EventMicStateChanged EventType = "mic.state_changed"
	EventMicDenied       EventType = "mic.denied"

	// Render events
	EventModeChanged EventType = "mode.changed"

	// Platform events
	EventCapabilityUnavailable EventType = "capability.unavailable"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// SourceChangedEvent is published when the active analyser source changes.
type SourceChangedEvent struct {
	baseEvent
	Previous SourceKind
	Current  SourceKind
}

// Type returns the event type.
func (e SourceChangedEvent) Type() EventType {
	return EventSourceChanged
}

// NewSourceChangedEvent creates a new SourceChangedEvent.
func NewSourceChangedEvent(previous, current SourceKind) SourceChangedEvent {
	return SourceChangedEvent{
		baseEvent: newBaseEvent(),
		Previous:  previous,
		Current:   current,
	}
}

// TrackLoadedEvent is published when the media element gets a new source.
type TrackLoadedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType {
	return EventTrackLoaded
}

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(track Track) TrackLoadedEvent {
	return TrackLoadedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// PlaybackBlockedEvent is published when playback could not start without a user gesture.
type PlaybackBlockedEvent struct {
	baseEvent
	Src string
}

// Type returns the event type.
func (e PlaybackBlockedEvent) Type() EventType {
	return EventPlaybackBlocked
}

// NewPlaybackBlockedEvent creates a new PlaybackBlockedEvent.
func NewPlaybackBlockedEvent(src string) PlaybackBlockedEvent {
	return PlaybackBlockedEvent{
		baseEvent: newBaseEvent(),
		Src:       src,
	}
}

// MicStateChangedEvent is published when the mic-enable flag changes.
type MicStateChangedEvent struct {
	baseEvent
	Enabled bool
}

// Type returns the event type.
func (e MicStateChangedEvent) Type() EventType {
	return EventMicStateChanged
}

// NewMicStateChangedEvent creates a new MicStateChangedEvent.
func NewMicStateChangedEvent(enabled bool) MicStateChangedEvent {
	return MicStateChangedEvent{
		baseEvent: newBaseEvent(),
		Enabled:   enabled,
	}
}

// MicDeniedEvent is published when a capture request is rejected.
type MicDeniedEvent struct {
	baseEvent
	Generation uint64
	Err        error
}

// Type returns the event type.
func (e MicDeniedEvent) Type() EventType {
	return EventMicDenied
}

// NewMicDeniedEvent creates a new MicDeniedEvent.
func NewMicDeniedEvent(generation uint64, err error) MicDeniedEvent {
	return MicDeniedEvent{
		baseEvent:  newBaseEvent(),
		Generation: generation,
		Err:        err,
	}
}

// ModeChangedEvent is published when the visualization mode changes.
type ModeChangedEvent struct {
	baseEvent
	Mode Mode
}

// Type returns the event type.
func (e ModeChangedEvent) Type() EventType {
	return EventModeChanged
}

// NewModeChangedEvent creates a new ModeChangedEvent.
func NewModeChangedEvent(mode Mode) ModeChangedEvent {
	return ModeChangedEvent{
		baseEvent: newBaseEvent(),
		Mode:      mode,
	}
}

// CapabilityUnavailableEvent is published when the platform cannot provide audio.
type CapabilityUnavailableEvent struct {
	baseEvent
	Err error
}

// Type returns the event type.
func (e CapabilityUnavailableEvent) Type() EventType {
	return EventCapabilityUnavailable
}

// NewCapabilityUnavailableEvent creates a new CapabilityUnavailableEvent.
func NewCapabilityUnavailableEvent(err error) CapabilityUnavailableEvent {
	return CapabilityUnavailableEvent{
		baseEvent: newBaseEvent(),
		Err:       err,
	}
}
