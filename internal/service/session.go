package service

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// Session ties the controls to the graph manager and the render scheduler.
// Every change of mode, source or mic flag is an explicit transition that
// ends in RenderScheduler.Restart.
type Session struct {
	// Dependencies (injected)
	logger    *slog.Logger
	graph     *AudioGraphManager
	scheduler *RenderScheduler
	element   ports.MediaElement
	bus       ports.EventBus

	// State
	mode        domain.Mode
	micEnabled  bool
	track       *domain.Track
	pendingPlay bool
	volume      float64
	subs        []domain.SubscriptionID
	closed      bool

	mu sync.Mutex
}

// SessionConfig holds the initial control values.
type SessionConfig struct {
	Mode   domain.Mode
	Volume float64
}

// NewSession creates a session. Call Start to bind the graph and start the loop.
func NewSession(
	logger *slog.Logger,
	graph *AudioGraphManager,
	scheduler *RenderScheduler,
	element ports.MediaElement,
	bus ports.EventBus,
	cfg SessionConfig,
) *Session {
	return &Session{
		logger:    logger,
		graph:     graph,
		scheduler: scheduler,
		element:   element,
		bus:       bus,
		mode:      cfg.Mode,
		volume:    cfg.Volume,
	}
}

// Start binds the element, applies the initial volume and starts the
// render loop in the initial mode.
func (s *Session) Start() error {
	s.mu.Lock()
	s.subs = append(s.subs,
		s.bus.Subscribe(domain.EventMicDenied, s.handleMicDenied),
		s.bus.Subscribe(domain.EventSourceChanged, s.handleSourceChanged),
	)
	mode, volume := s.mode, s.volume
	s.mu.Unlock()

	if err := s.element.SetVolume(volume); err != nil {
		s.logger.Warn("failed to apply initial volume", slog.Float64("volume", volume), slog.Any("error", err))
	}
	if err := s.graph.Bind(s.element); err != nil {
		return err
	}
	s.scheduler.SetMode(mode)

	s.logger.Info("session started", slog.String("mode", mode.String()))
	return nil
}

// SetMode switches the visualization mode.
func (s *Session) SetMode(mode domain.Mode) {
	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return
	}
	s.mode = mode
	s.mu.Unlock()

	s.scheduler.SetMode(mode)
	s.bus.Publish(domain.NewModeChangedEvent(mode))
}

// Mode returns the selected mode.
func (s *Session) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMicEnabled turns the microphone on or off. Turning it on pauses the
// element; the stream is connected once permission is granted. A denial
// turns the flag back off.
func (s *Session) SetMicEnabled(enabled bool) {
	s.mu.Lock()
	if s.micEnabled == enabled {
		s.mu.Unlock()
		return
	}
	s.micEnabled = enabled
	s.mu.Unlock()

	// Published before the capture request so a denial is always reported after it.
	s.bus.Publish(domain.NewMicStateChangedEvent(enabled))

	if enabled {
		if err := s.element.Pause(); err != nil {
			s.logger.Warn("failed to pause element", slog.Any("error", err))
		}
		s.resume()
		if err := s.setSource(domain.SourceMic); errors.Is(err, domain.ErrNotReady) || errors.Is(err, domain.ErrGraphDisposed) {
			s.revertMic()
		}
	} else {
		_ = s.setSource(s.fallbackSource())
	}

	s.scheduler.Restart()
}

// MicEnabled returns the mic flag.
func (s *Session) MicEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micEnabled
}

// LoadTrack turns the mic off, loads the track into the element and tries
// to play it. A play blocked by the autoplay policy is retried on the next
// user gesture.
func (s *Session) LoadTrack(track domain.Track) error {
	s.SetMicEnabled(false)

	if err := s.element.SetSrc(track.Src); err != nil {
		s.logger.Warn("failed to load track", slog.String("src", track.Src), slog.Any("error", err))
		return err
	}

	s.mu.Lock()
	s.track = &track
	s.pendingPlay = false
	s.mu.Unlock()

	s.resume()
	_ = s.setSource(domain.SourceFile)
	s.scheduler.Restart()

	s.logger.Info("track loaded", slog.String("name", track.DisplayName()), slog.Bool("trial", track.Trial))
	s.bus.Publish(domain.NewTrackLoadedEvent(track))

	s.play()
	return nil
}

// Track returns the loaded track.
func (s *Session) Track() (domain.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return domain.Track{}, false
	}
	return *s.track, true
}

// TogglePlay plays a paused element or pauses a playing one. Returns true
// when the element is playing afterwards.
func (s *Session) TogglePlay() bool {
	if s.element.Src() == "" {
		return false
	}
	if !s.element.Paused() {
		if err := s.element.Pause(); err != nil {
			s.logger.Warn("failed to pause", slog.Any("error", err))
		}
		return !s.element.Paused()
	}

	if s.MicEnabled() {
		s.SetMicEnabled(false)
	}
	s.resume()
	s.play()
	return !s.element.Paused()
}

// Playing reports whether the element is playing.
func (s *Session) Playing() bool {
	return !s.element.Paused()
}

// SetVolume sets the element volume (0.0 to 1.0).
func (s *Session) SetVolume(volume float64) error {
	if err := s.element.SetVolume(volume); err != nil {
		return err
	}
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
	return nil
}

// Volume returns the element volume.
func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// UserGesture resumes the audio context and retries a blocked play.
func (s *Session) UserGesture() {
	s.resume()

	s.mu.Lock()
	retry := s.pendingPlay && !s.micEnabled
	s.mu.Unlock()

	if retry {
		s.play()
	}
}

// Close stops the loop and releases the graph.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, id := range subs {
		s.bus.Unsubscribe(id)
	}
	if err := s.element.Pause(); err != nil {
		s.logger.Warn("failed to pause element", slog.Any("error", err))
	}
	s.scheduler.Teardown()
	return s.graph.Dispose()
}

func (s *Session) play() {
	err := s.element.Play()
	switch {
	case err == nil:
		s.mu.Lock()
		s.pendingPlay = false
		s.mu.Unlock()
	case errors.Is(err, domain.ErrAutoplayBlocked):
		s.mu.Lock()
		s.pendingPlay = true
		s.mu.Unlock()
		s.logger.Debug("playback blocked until user gesture", slog.String("src", s.element.Src()))
		s.bus.Publish(domain.NewPlaybackBlockedEvent(s.element.Src()))
	default:
		s.logger.Warn("failed to start playback", slog.Any("error", err))
	}
}

func (s *Session) resume() {
	err := s.graph.Resume()
	if err != nil && !errors.Is(err, domain.ErrNotReady) {
		s.logger.Debug("audio context still suspended", slog.Any("error", err))
	}
}

func (s *Session) setSource(kind domain.SourceKind) error {
	err := s.graph.SetActiveSource(kind)
	if err != nil {
		s.logger.Debug("source not switched", slog.String("source", kind.String()), slog.Any("error", err))
	}
	return err
}

// revertMic turns the flag back off when no capture can be requested.
func (s *Session) revertMic() {
	s.mu.Lock()
	if !s.micEnabled {
		s.mu.Unlock()
		return
	}
	s.micEnabled = false
	s.mu.Unlock()

	s.logger.Warn("microphone unavailable without an audio graph")
	s.bus.Publish(domain.NewMicStateChangedEvent(false))
}

// fallbackSource is the source used when the mic turns off.
func (s *Session) fallbackSource() domain.SourceKind {
	if s.element.Src() != "" {
		return domain.SourceFile
	}
	return domain.SourceNone
}

func (s *Session) handleMicDenied(event domain.Event) {
	e, ok := event.(domain.MicDeniedEvent)
	if !ok {
		return
	}
	// A newer selection owns the mic flag now.
	if current := s.graph.Generation(); e.Generation != current {
		s.logger.Debug("ignoring stale mic denial",
			slog.Uint64("generation", e.Generation),
			slog.Uint64("current", current))
		return
	}

	s.mu.Lock()
	if s.closed || !s.micEnabled {
		s.mu.Unlock()
		return
	}
	s.micEnabled = false
	s.mu.Unlock()

	s.logger.Info("microphone unavailable, mic turned off")
	s.scheduler.Restart()
	s.bus.Publish(domain.NewMicStateChangedEvent(false))
}

func (s *Session) handleSourceChanged(event domain.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	if e, ok := event.(domain.SourceChangedEvent); ok && e.Current == domain.SourceMic {
		s.scheduler.Restart()
	}
}
