// Package fyne provides Fyne UI adapter implementations.
// This package implements the UI layer using the Fyne toolkit.
package fyne

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
	"github.com/tejashwikalptaru/beatify/internal/service"
)

// Presenter implements the Presenter pattern (MVP architecture).
// It coordinates between the session and the UI.
//
// Responsibilities:
// - Subscribe to events from the event bus
// - Map domain events to view updates
// - Translate view commands to session calls
//
// Thread-safety: event handlers may run on any goroutine; the view
// marshals its updates onto the UI thread.
type Presenter struct {
	logger  *slog.Logger
	session *service.Session
	catalog *service.TrackCatalog
	bus     ports.EventBus
	view    ports.View

	mu           sync.Mutex
	subs         []domain.SubscriptionID
	shutdownOnce sync.Once
}

// NewPresenter creates a presenter and syncs the view with the session.
func NewPresenter(
	logger *slog.Logger,
	session *service.Session,
	catalog *service.TrackCatalog,
	bus ports.EventBus,
	view ports.View,
) *Presenter {
	p := &Presenter{
		logger:  logger,
		session: session,
		catalog: catalog,
		bus:     bus,
		view:    view,
	}

	p.subscribeToEvents()
	p.syncInitialState()

	return p
}

// subscribeToEvents subscribes to all events the view reflects.
func (p *Presenter) subscribeToEvents() {
	subscriptions := map[domain.EventType]domain.EventHandler{
		domain.EventTrackLoaded:           p.onTrackLoaded,
		domain.EventPlaybackBlocked:       p.onPlaybackBlocked,
		domain.EventMicStateChanged:       p.onMicStateChanged,
		domain.EventMicDenied:             p.onMicDenied,
		domain.EventModeChanged:           p.onModeChanged,
		domain.EventCapabilityUnavailable: p.onCapabilityUnavailable,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for eventType, handler := range subscriptions {
		p.subs = append(p.subs, p.bus.Subscribe(eventType, handler))
	}
}

// syncInitialState mirrors the current session state into the view.
func (p *Presenter) syncInitialState() {
	p.view.SetTracks(p.catalog.Trials())
	p.view.SetMode(p.session.Mode())
	p.view.SetVolume(p.session.Volume())
	p.view.SetMicState(p.session.MicEnabled())
	p.view.SetPlayState(p.session.Playing())

	if track, ok := p.session.Track(); ok {
		p.view.SetTrackInfo(track)
	}
}

// Event handlers

func (p *Presenter) onTrackLoaded(event domain.Event) {
	e, ok := event.(domain.TrackLoadedEvent)
	if !ok {
		return
	}
	p.view.SetTrackInfo(e.Track)
	p.view.ShowNotice("")
}

func (p *Presenter) onPlaybackBlocked(event domain.Event) {
	p.view.SetPlayState(false)
	p.view.ShowNotice("Click anywhere or press a key to start playback")
}

func (p *Presenter) onMicStateChanged(event domain.Event) {
	e, ok := event.(domain.MicStateChangedEvent)
	if !ok {
		return
	}
	p.view.SetMicState(e.Enabled)
	if e.Enabled {
		p.view.SetPlayState(false)
	}
}

func (p *Presenter) onMicDenied(event domain.Event) {
	e, ok := event.(domain.MicDeniedEvent)
	if !ok {
		return
	}
	p.logger.Warn("microphone denied", slog.Any("error", e.Err))
	p.view.ShowNotice("Microphone access was denied")
}

func (p *Presenter) onModeChanged(event domain.Event) {
	e, ok := event.(domain.ModeChangedEvent)
	if !ok {
		return
	}
	p.view.SetMode(e.Mode)
}

func (p *Presenter) onCapabilityUnavailable(event domain.Event) {
	p.view.ShowNotice("Audio is not available on this system")
}

// User commands

// OnFileOpened loads a local file chosen in the open dialog.
func (p *Presenter) OnFileOpened(path string) error {
	if !p.catalog.IsFormatSupported(path) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, path)
	}

	p.session.UserGesture()
	p.view.ClearTrialSelection()

	if err := p.session.LoadTrack(p.catalog.Describe(path)); err != nil {
		p.view.SetPlayState(false)
		return err
	}
	p.view.SetPlayState(p.session.Playing())
	return nil
}

// OnTrialSelected loads a built-in trial track. Failures become a notice.
func (p *Presenter) OnTrialSelected(name string) {
	track, ok := p.catalog.Trial(name)
	if !ok {
		p.logger.Warn("unknown trial track", slog.String("name", name))
		return
	}

	p.session.UserGesture()
	if err := p.session.LoadTrack(track); err != nil {
		p.view.SetPlayState(false)
		p.view.ShowNotice(fmt.Sprintf("Failed to load %s", track.Name))
		return
	}
	p.view.SetPlayState(p.session.Playing())
}

// OnMicClicked toggles the microphone.
func (p *Presenter) OnMicClicked() {
	p.session.UserGesture()
	p.session.SetMicEnabled(!p.session.MicEnabled())
}

// OnModeSelected switches the visual mode by name.
func (p *Presenter) OnModeSelected(name string) {
	mode, err := domain.ParseMode(name)
	if err != nil {
		p.logger.Warn("ignoring mode", slog.Any("error", err))
		return
	}
	p.session.SetMode(mode)
}

// OnVolumeChanged handles the volume slider (0-100).
func (p *Presenter) OnVolumeChanged(percent float64) {
	if err := p.session.SetVolume(percent / 100.0); err != nil {
		p.logger.Warn("failed to set volume", slog.Float64("volume", percent), slog.Any("error", err))
	}
}

// OnPlayClicked toggles playback.
func (p *Presenter) OnPlayClicked() {
	p.session.UserGesture()
	p.view.SetPlayState(p.session.TogglePlay())
}

// OnUserGesture resumes audio after any tap or key press.
func (p *Presenter) OnUserGesture() {
	p.session.UserGesture()
}

// Shutdown unsubscribes from the event bus. It's safe to call multiple times.
func (p *Presenter) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		subs := p.subs
		p.subs = nil
		p.mu.Unlock()

		for _, id := range subs {
			p.bus.Unsubscribe(id)
		}
	})
}
