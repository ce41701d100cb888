package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/beatify/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/beatify/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatify/internal/adapter/frame"
	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/logger"
	"github.com/tejashwikalptaru/beatify/internal/testutil"
)

type sessionFixture struct {
	session   *Session
	graph     *AudioGraphManager
	scheduler *RenderScheduler
	platform  *mock.Platform
	element   *mock.Element
	frames    *frame.ManualScheduler
	bus       *eventbus.SyncEventBus
	events    *recorder
}

// Helper to create a started session over the mock platform
func newTestSession(t *testing.T) *sessionFixture {
	t.Helper()
	return newTestSessionWith(t, nil)
}

// Helper to create a started session over a platform prepared by setup
func newTestSessionWith(t *testing.T, setup func(*mock.Platform)) *sessionFixture {
	t.Helper()
	log := logger.NewTestLogger()
	platform := mock.NewPlatform()
	if setup != nil {
		setup(platform)
	}
	bus := eventbus.NewSyncEventBus()
	element := mock.NewElement()
	frames := frame.NewManualScheduler()

	graph := NewAudioGraphManager(log, platform, bus)
	scheduler := NewRenderScheduler(log, graph, frames)
	scheduler.Bind(200, 100, 1)
	session := NewSession(log, graph, scheduler, element, bus, SessionConfig{Mode: domain.ModeBars, Volume: 0.3})

	f := &sessionFixture{
		session:   session,
		graph:     graph,
		scheduler: scheduler,
		platform:  platform,
		element:   element,
		frames:    frames,
		bus:       bus,
		events: record(bus,
			domain.EventModeChanged,
			domain.EventMicStateChanged,
			domain.EventTrackLoaded,
			domain.EventPlaybackBlocked,
			domain.EventSourceChanged,
		),
	}
	require.NoError(t, session.Start())
	t.Cleanup(func() { _ = session.Close() })
	return f
}

func (f *sessionFixture) analyser() *mock.Analyser {
	return f.platform.LastContext().Analyser()
}

// litPixels counts the pixels of the current frame with any color.
func (f *sessionFixture) litPixels() int {
	snap := f.scheduler.Snapshot(nil)
	if snap == nil {
		return 0
	}
	lit := 0
	for i := 0; i < len(snap.Pix); i += 4 {
		if snap.Pix[i] > 0 || snap.Pix[i+1] > 0 || snap.Pix[i+2] > 0 {
			lit++
		}
	}
	return lit
}

func TestSession_Start(t *testing.T) {
	f := newTestSession(t)

	assert.Equal(t, 0.3, f.element.Volume())
	assert.Equal(t, domain.GraphBound, f.graph.State())
	assert.Equal(t, domain.ModeBars, f.scheduler.Mode())
	assert.True(t, f.scheduler.Running())
	assert.Equal(t, 1, f.frames.Pending())
	assert.False(t, f.session.MicEnabled())
}

func TestSession_LoadTrack(t *testing.T) {
	f := newTestSession(t)
	track := domain.Track{Name: "Demo", Src: "demo.mp3", Trial: true}

	require.NoError(t, f.session.LoadTrack(track))

	assert.Equal(t, "demo.mp3", f.element.Src())
	assert.False(t, f.element.Paused())
	assert.Equal(t, domain.GraphFileActive, f.graph.State())
	assert.Equal(t, domain.ContextRunning, f.platform.LastContext().State())
	assert.Equal(t, 1, f.events.count(domain.EventTrackLoaded))

	loaded, ok := f.session.Track()
	require.True(t, ok)
	assert.Equal(t, "Demo", loaded.Name)

	f.analyser().FillFrequency(100)
	step(f.frames, time.Now(), 2)
	assert.Greater(t, f.scheduler.surface.Ops(), 0)
}

func TestSession_LoadTrackFailure(t *testing.T) {
	f := newTestSession(t)
	f.element.SetFailSrc(true)

	err := f.session.LoadTrack(domain.Track{Name: "Bad", Src: "bad.xyz"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Equal(t, domain.GraphBound, f.graph.State())
	_, ok := f.session.Track()
	assert.False(t, ok)
}

func TestSession_AutoplayBlockedRetriedOnGesture(t *testing.T) {
	f := newTestSession(t)
	f.element.SetBlockAutoplay(true)

	require.NoError(t, f.session.LoadTrack(domain.Track{Name: "Demo", Src: "demo.mp3"}))
	assert.True(t, f.element.Paused())
	assert.Equal(t, 1, f.events.count(domain.EventPlaybackBlocked))

	// Still blocked: swallowed again
	f.session.UserGesture()
	assert.True(t, f.element.Paused())

	f.element.SetBlockAutoplay(false)
	f.session.UserGesture()
	assert.False(t, f.element.Paused())

	// No pending play left
	require.NoError(t, f.element.Pause())
	f.session.UserGesture()
	assert.True(t, f.element.Paused())
}

func TestSession_SetMode(t *testing.T) {
	f := newTestSession(t)

	f.session.SetMode(domain.ModeRadial)
	assert.Equal(t, domain.ModeRadial, f.session.Mode())
	assert.Equal(t, domain.ModeRadial, f.scheduler.Mode())
	assert.Equal(t, 1, f.events.count(domain.EventModeChanged))

	f.session.SetMode(domain.ModeRadial)
	assert.Equal(t, 1, f.events.count(domain.EventModeChanged))
	assert.Equal(t, 1, f.frames.Pending())
}

func TestSession_MicPausesElement(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	require.NoError(t, f.session.LoadTrack(domain.Track{Name: "Demo", Src: "demo.mp3"}))
	require.False(t, f.element.Paused())

	f.session.SetMicEnabled(true)
	assert.True(t, f.element.Paused())
	assert.True(t, f.session.MicEnabled())
	require.Eventually(t, func() bool { return f.graph.State() == domain.GraphMicActive }, waitFor, time.Millisecond)
	assert.Equal(t, 1, f.frames.Pending())

	f.session.SetMicEnabled(false)
	assert.Equal(t, domain.GraphFileActive, f.graph.State())
	assert.Equal(t, 0, f.platform.LiveStreams())
	assert.Equal(t, 2, f.events.count(domain.EventMicStateChanged))

	require.NoError(t, f.session.Close())
}

func TestSession_MicDenialRevertsFlag(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.platform.SetDenyCapture(true)
	require.NoError(t, f.session.LoadTrack(domain.Track{Name: "Demo", Src: "demo.mp3"}))
	f.analyser().FillFrequency(120)

	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.events.count(domain.EventMicStateChanged) == 2 }, waitFor, time.Millisecond)
	assert.False(t, f.session.MicEnabled())

	last, ok := f.events.last(domain.EventMicStateChanged).(domain.MicStateChangedEvent)
	require.True(t, ok)
	assert.False(t, last.Enabled)
	assert.Equal(t, 0, f.graph.LiveStreams())
	assert.Equal(t, 0, f.platform.OpenedStreams())

	// The previous source keeps rendering
	assert.Equal(t, domain.GraphFileActive, f.graph.State())
	assert.Equal(t, 1, f.frames.Pending())
	before := f.scheduler.surface.Ops()
	step(f.frames, time.Now(), 1)
	assert.Greater(t, f.scheduler.surface.Ops(), before)

	require.NoError(t, f.session.Close())
}

func TestSession_MicDenialWithoutSourceStaysBlank(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.platform.SetDenyCapture(true)

	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.events.count(domain.EventMicStateChanged) == 2 }, waitFor, time.Millisecond)
	assert.False(t, f.session.MicEnabled())

	step(f.frames, time.Now(), 3)
	assert.Equal(t, 0, f.scheduler.surface.Ops())
	assert.Equal(t, domain.GraphBound, f.graph.State())

	require.NoError(t, f.session.Close())
}

func TestSession_RapidMicToggle(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.platform.SetHoldCapture(true)

	f.session.SetMicEnabled(true)
	f.session.SetMicEnabled(false)
	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.platform.PendingCaptures() == 2 }, waitFor, time.Millisecond)

	f.platform.ResolveCapture()
	f.platform.ResolveCapture()
	require.Eventually(t, func() bool {
		return f.graph.State() == domain.GraphMicActive && f.platform.LiveStreams() == 1
	}, waitFor, time.Millisecond)

	ctx := f.platform.LastContext()
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceStream, ctx.Analyser()))
	assert.True(t, f.session.MicEnabled())

	require.NoError(t, f.session.Close())
	assert.Equal(t, 0, f.platform.LiveStreams())
}

func TestSession_StaleMicDenialIgnored(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.platform.SetHoldCapture(true)

	f.session.SetMicEnabled(true)
	stale := f.graph.Generation()
	f.session.SetMicEnabled(false)
	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.platform.PendingCaptures() == 2 }, waitFor, time.Millisecond)

	// A denial for the first request arrives after the user re-enabled the mic.
	f.bus.Publish(domain.NewMicDeniedEvent(stale, domain.ErrPermissionDenied))
	assert.True(t, f.session.MicEnabled())
	assert.Equal(t, 3, f.events.count(domain.EventMicStateChanged))

	f.platform.ResolveCapture()
	f.platform.ResolveCapture()
	require.Eventually(t, func() bool {
		return f.graph.State() == domain.GraphMicActive && f.platform.LiveStreams() == 1
	}, waitFor, time.Millisecond)
	assert.True(t, f.session.MicEnabled())

	require.NoError(t, f.session.Close())
}

func TestSession_CurrentMicDenialRevertsFlag(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.platform.SetHoldCapture(true)

	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.platform.PendingCaptures() == 1 }, waitFor, time.Millisecond)

	f.bus.Publish(domain.NewMicDeniedEvent(f.graph.Generation(), domain.ErrPermissionDenied))
	assert.False(t, f.session.MicEnabled())

	require.NoError(t, f.session.Close())
}

func TestSession_MicOffWithoutSourceClearsSurface(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.graph.State() == domain.GraphMicActive }, waitFor, time.Millisecond)

	f.analyser().FillFrequency(200)
	step(f.frames, time.Now(), 5)
	require.Greater(t, f.litPixels(), 0)

	f.session.SetMicEnabled(false)
	assert.Equal(t, domain.GraphBound, f.graph.State())
	step(f.frames, time.Now(), 10)
	assert.Zero(t, f.litPixels())

	require.NoError(t, f.session.Close())
}

func TestSession_MicWithoutGraphRevertsFlag(t *testing.T) {
	f := newTestSessionWith(t, func(p *mock.Platform) { p.SetFailContext(true) })
	require.Equal(t, domain.GraphUninitialized, f.graph.State())

	f.session.SetMicEnabled(true)

	assert.False(t, f.session.MicEnabled())
	assert.Equal(t, 2, f.events.count(domain.EventMicStateChanged))
	last, ok := f.events.last(domain.EventMicStateChanged).(domain.MicStateChangedEvent)
	require.True(t, ok)
	assert.False(t, last.Enabled)
	assert.Equal(t, 0, f.platform.OpenedStreams())
}

func TestSession_LoadTrackTurnsMicOff(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestSession(t)
	f.session.SetMicEnabled(true)
	require.Eventually(t, func() bool { return f.graph.State() == domain.GraphMicActive }, waitFor, time.Millisecond)

	require.NoError(t, f.session.LoadTrack(domain.Track{Name: "Demo", Src: "demo.mp3"}))
	assert.False(t, f.session.MicEnabled())
	assert.Equal(t, domain.GraphFileActive, f.graph.State())
	assert.Equal(t, 0, f.platform.LiveStreams())

	require.NoError(t, f.session.Close())
}

func TestSession_TogglePlay(t *testing.T) {
	f := newTestSession(t)
	assert.False(t, f.session.TogglePlay())

	require.NoError(t, f.session.LoadTrack(domain.Track{Name: "Demo", Src: "demo.mp3"}))
	assert.False(t, f.session.TogglePlay())
	assert.True(t, f.element.Paused())
	assert.True(t, f.session.TogglePlay())
	assert.False(t, f.element.Paused())
}

func TestSession_SetVolume(t *testing.T) {
	f := newTestSession(t)

	require.NoError(t, f.session.SetVolume(0.7))
	assert.Equal(t, 0.7, f.session.Volume())
	assert.Equal(t, 0.7, f.element.Volume())

	assert.ErrorIs(t, f.session.SetVolume(2), domain.ErrInvalidVolume)
	assert.Equal(t, 0.7, f.session.Volume())
}

func TestSession_Close(t *testing.T) {
	f := newTestSession(t)
	require.NoError(t, f.session.LoadTrack(domain.Track{Name: "Demo", Src: "demo.mp3"}))

	require.NoError(t, f.session.Close())
	assert.Equal(t, domain.GraphDisposed, f.graph.State())
	assert.False(t, f.scheduler.Running())
	assert.True(t, f.element.Paused())
	assert.Equal(t, domain.ContextClosed, f.platform.LastContext().State())
	assert.False(t, f.bus.HasSubscribers(domain.EventMicDenied))

	require.NoError(t, f.session.Close())
}
