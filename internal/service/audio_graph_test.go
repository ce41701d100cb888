package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/beatify/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/beatify/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/logger"
	"github.com/tejashwikalptaru/beatify/internal/testutil"
)

const waitFor = 2 * time.Second

// Helper to create a test graph manager
func newTestGraph(t *testing.T) (*AudioGraphManager, *mock.Platform, *eventbus.SyncEventBus) {
	t.Helper()
	platform := mock.NewPlatform()
	bus := eventbus.NewSyncEventBus()
	graph := NewAudioGraphManager(logger.NewTestLogger(), platform, bus)
	t.Cleanup(func() { _ = graph.Dispose() })
	return graph, platform, bus
}

// Helper to create a bound graph manager
func newBoundGraph(t *testing.T) (*AudioGraphManager, *mock.Platform, *mock.Element, *eventbus.SyncEventBus) {
	t.Helper()
	graph, platform, bus := newTestGraph(t)
	element := mock.NewElement()
	require.NoError(t, graph.Bind(element))
	return graph, platform, element, bus
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func record(bus *eventbus.SyncEventBus, types ...domain.EventType) *recorder {
	r := &recorder{}
	for _, et := range types {
		bus.Subscribe(et, func(e domain.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
		})
	}
	return r
}

func (r *recorder) count(et domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type() == et {
			n++
		}
	}
	return n
}

func (r *recorder) last(et domain.EventType) domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type() == et {
			return r.events[i]
		}
	}
	return nil
}

func TestAudioGraphManager_BindNilElement(t *testing.T) {
	graph, platform, _ := newTestGraph(t)

	require.NoError(t, graph.Bind(nil))
	assert.Equal(t, domain.GraphUninitialized, graph.State())
	assert.Nil(t, platform.LastContext())
}

func TestAudioGraphManager_Bind(t *testing.T) {
	graph, platform, element, _ := newBoundGraph(t)

	assert.Equal(t, domain.GraphBound, graph.State())
	assert.Equal(t, domain.SourceNone, graph.ActiveSource())

	ctx := platform.LastContext()
	require.NotNil(t, ctx)
	assert.Equal(t, domain.ContextSuspended, ctx.State())
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceElement, ctx.Destination()))
	assert.Equal(t, 0, ctx.ConnectedSources(mock.SourceElement, ctx.Analyser()))

	buffers, err := graph.Buffers()
	require.NoError(t, err)
	assert.Equal(t, 128, buffers.FrequencyBinCount())
	assert.Equal(t, 256, buffers.SampleCount())

	// Idempotent
	require.NoError(t, graph.Bind(element))
	require.NoError(t, graph.Bind(mock.NewElement()))
	assert.Len(t, platform.Contexts(), 1)
}

func TestAudioGraphManager_BindCapabilityUnavailable(t *testing.T) {
	graph, platform, bus := newTestGraph(t)
	rec := record(bus, domain.EventCapabilityUnavailable)
	platform.SetFailContext(true)

	require.NoError(t, graph.Bind(mock.NewElement()))
	assert.Equal(t, domain.GraphUninitialized, graph.State())
	assert.Equal(t, 1, rec.count(domain.EventCapabilityUnavailable))

	_, err := graph.Buffers()
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.ErrorIs(t, graph.SetActiveSource(domain.SourceFile), domain.ErrNotReady)
	assert.ErrorIs(t, graph.RefreshFrequency(), domain.ErrNotReady)
	assert.ErrorIs(t, graph.Resume(), domain.ErrNotReady)
}

func TestAudioGraphManager_RefreshRequiresSource(t *testing.T) {
	graph, _, _, _ := newBoundGraph(t)

	assert.ErrorIs(t, graph.RefreshFrequency(), domain.ErrNotReady)
	assert.ErrorIs(t, graph.RefreshTimeDomain(), domain.ErrNotReady)
}

func TestAudioGraphManager_FileSource(t *testing.T) {
	graph, platform, _, bus := newBoundGraph(t)
	rec := record(bus, domain.EventSourceChanged)
	ctx := platform.LastContext()
	ctx.Analyser().FillFrequency(77)

	require.NoError(t, graph.SetActiveSource(domain.SourceFile))
	assert.Equal(t, domain.GraphFileActive, graph.State())
	assert.Equal(t, domain.SourceFile, graph.ActiveSource())
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceElement, ctx.Analyser()))

	require.NoError(t, graph.RefreshFrequency())
	buffers, err := graph.Buffers()
	require.NoError(t, err)
	assert.Equal(t, byte(77), buffers.Frequency[0])
	assert.Equal(t, byte(77), buffers.Frequency[127])

	require.NoError(t, graph.RefreshTimeDomain())
	assert.Equal(t, byte(128), buffers.TimeDomain[255])

	// Same source again publishes nothing new
	require.NoError(t, graph.SetActiveSource(domain.SourceFile))
	assert.Equal(t, 1, rec.count(domain.EventSourceChanged))

	require.NoError(t, graph.SetActiveSource(domain.SourceNone))
	assert.Equal(t, domain.GraphBound, graph.State())
	assert.Equal(t, 0, ctx.ConnectedSources(mock.SourceElement, ctx.Analyser()))
	// Destination routing is untouched
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceElement, ctx.Destination()))
	assert.Equal(t, 2, rec.count(domain.EventSourceChanged))
}

func TestAudioGraphManager_MicGranted(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, platform, _, bus := newBoundGraph(t)
	rec := record(bus, domain.EventSourceChanged)
	ctx := platform.LastContext()
	platform.SetHoldCapture(true)
	require.NoError(t, graph.SetActiveSource(domain.SourceFile))

	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return platform.PendingCaptures() == 1 }, waitFor, time.Millisecond)

	// The file keeps feeding the analyser until the stream arrives
	assert.Equal(t, domain.GraphFileActive, graph.State())
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceElement, ctx.Analyser()))

	// Selecting mic again while pending does not start a second request
	require.NoError(t, graph.SetActiveSource(domain.SourceMic))

	require.True(t, platform.ResolveCapture())
	require.Eventually(t, func() bool { return graph.State() == domain.GraphMicActive }, waitFor, time.Millisecond)

	assert.Equal(t, domain.SourceMic, graph.ActiveSource())
	assert.Equal(t, 1, graph.LiveStreams())
	assert.Equal(t, 1, platform.OpenedStreams())
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceStream, ctx.Analyser()))
	assert.Equal(t, 0, ctx.ConnectedSources(mock.SourceElement, ctx.Analyser()))

	last, ok := rec.last(domain.EventSourceChanged).(domain.SourceChangedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SourceFile, last.Previous)
	assert.Equal(t, domain.SourceMic, last.Current)

	// Back to file stops the hardware track
	require.NoError(t, graph.SetActiveSource(domain.SourceFile))
	assert.Equal(t, 0, graph.LiveStreams())
	assert.Equal(t, 0, platform.LiveStreams())
	assert.Equal(t, 0, ctx.ConnectedSources(mock.SourceStream, ctx.Analyser()))
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceElement, ctx.Analyser()))

	require.NoError(t, graph.Dispose())
}

func TestAudioGraphManager_MicRapidToggle(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, platform, _, _ := newBoundGraph(t)
	ctx := platform.LastContext()
	platform.SetHoldCapture(true)

	// on -> off -> on before either request resolves
	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.NoError(t, graph.SetActiveSource(domain.SourceNone))
	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return platform.PendingCaptures() == 2 }, waitFor, time.Millisecond)

	require.True(t, platform.ResolveCapture())
	require.True(t, platform.ResolveCapture())

	require.Eventually(t, func() bool {
		return graph.State() == domain.GraphMicActive && platform.LiveStreams() == 1
	}, waitFor, time.Millisecond)

	assert.Equal(t, 2, platform.OpenedStreams())
	assert.Equal(t, 1, ctx.ConnectedSources(mock.SourceStream, ctx.Analyser()))
	assert.Equal(t, 1, graph.LiveStreams())

	require.NoError(t, graph.Dispose())
	assert.Equal(t, 0, platform.LiveStreams())
}

func TestAudioGraphManager_MicToggleOffBeforeGrant(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, platform, _, _ := newBoundGraph(t)
	platform.SetHoldCapture(true)

	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return platform.PendingCaptures() == 1 }, waitFor, time.Millisecond)
	require.NoError(t, graph.SetActiveSource(domain.SourceFile))
	require.True(t, platform.ResolveCapture())

	require.Eventually(t, func() bool {
		return platform.OpenedStreams() == 1 && platform.LiveStreams() == 0
	}, waitFor, time.Millisecond)
	assert.Equal(t, domain.GraphFileActive, graph.State())
	assert.Equal(t, 0, graph.LiveStreams())

	require.NoError(t, graph.Dispose())
}

func TestAudioGraphManager_MicDenied(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, platform, _, bus := newBoundGraph(t)
	rec := record(bus, domain.EventMicDenied, domain.EventSourceChanged)
	platform.SetDenyCapture(true)
	require.NoError(t, graph.SetActiveSource(domain.SourceFile))

	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return rec.count(domain.EventMicDenied) == 1 }, waitFor, time.Millisecond)

	denied, ok := rec.last(domain.EventMicDenied).(domain.MicDeniedEvent)
	require.True(t, ok)
	assert.ErrorIs(t, denied.Err, domain.ErrPermissionDenied)

	assert.Equal(t, domain.GraphFileActive, graph.State())
	assert.Equal(t, domain.SourceFile, graph.ActiveSource())
	assert.Equal(t, 0, graph.LiveStreams())
	assert.Equal(t, 0, platform.OpenedStreams())
	assert.Equal(t, 1, rec.count(domain.EventSourceChanged))

	// The selection reverted, so a new request is made
	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return rec.count(domain.EventMicDenied) == 2 }, waitFor, time.Millisecond)

	require.NoError(t, graph.Dispose())
}

func TestAudioGraphManager_BufferLengthInvariance(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, _, _, _ := newBoundGraph(t)
	first, err := graph.Buffers()
	require.NoError(t, err)

	for _, kind := range []domain.SourceKind{
		domain.SourceFile, domain.SourceMic, domain.SourceNone, domain.SourceMic, domain.SourceFile,
	} {
		require.NoError(t, graph.SetActiveSource(kind))
		if kind == domain.SourceMic {
			require.Eventually(t, func() bool { return graph.State() == domain.GraphMicActive }, waitFor, time.Millisecond)
		}
		b, err := graph.Buffers()
		require.NoError(t, err)
		assert.Len(t, b.Frequency, 128)
		assert.Len(t, b.TimeDomain, 256)
		assert.Same(t, &first.Frequency[0], &b.Frequency[0])
		assert.Same(t, &first.TimeDomain[0], &b.TimeDomain[0])
	}

	require.NoError(t, graph.Dispose())
}

func TestAudioGraphManager_Resume(t *testing.T) {
	graph, platform, _, _ := newBoundGraph(t)
	ctx := platform.LastContext()

	ctx.SetFailResume(true)
	assert.Error(t, graph.Resume())
	assert.Equal(t, domain.ContextSuspended, ctx.State())

	ctx.SetFailResume(false)
	require.NoError(t, graph.Resume())
	assert.Equal(t, domain.ContextRunning, ctx.State())

	// Already running: no further platform call
	require.NoError(t, graph.Resume())
	assert.Equal(t, 2, ctx.ResumeCalls())
}

func TestAudioGraphManager_Dispose(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, platform, _, _ := newBoundGraph(t)
	ctx := platform.LastContext()
	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return graph.State() == domain.GraphMicActive }, waitFor, time.Millisecond)

	require.NoError(t, graph.Dispose())
	assert.Equal(t, domain.GraphDisposed, graph.State())
	assert.Equal(t, domain.ContextClosed, ctx.State())
	assert.Equal(t, 0, platform.LiveStreams())
	assert.Equal(t, 0, ctx.ConnectedSources(mock.SourceElement, ctx.Destination()))

	assert.ErrorIs(t, graph.SetActiveSource(domain.SourceFile), domain.ErrGraphDisposed)
	assert.ErrorIs(t, graph.Resume(), domain.ErrGraphDisposed)
	_, err := graph.Buffers()
	assert.ErrorIs(t, err, domain.ErrGraphDisposed)
	assert.NoError(t, graph.Dispose())

	// Bind after dispose is a no-op
	require.NoError(t, graph.Bind(mock.NewElement()))
	assert.Len(t, platform.Contexts(), 1)
}

func TestAudioGraphManager_DisposeWithPendingCapture(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	graph, platform, _, bus := newBoundGraph(t)
	rec := record(bus, domain.EventMicDenied)
	platform.SetHoldCapture(true)

	require.NoError(t, graph.SetActiveSource(domain.SourceMic))
	require.Eventually(t, func() bool { return platform.PendingCaptures() == 1 }, waitFor, time.Millisecond)

	require.NoError(t, graph.Dispose())
	assert.Equal(t, 0, platform.PendingCaptures())
	assert.Equal(t, 0, platform.OpenedStreams())
	assert.Equal(t, 0, rec.count(domain.EventMicDenied))
}
