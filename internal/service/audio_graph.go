// Package service provides the audio graph, render scheduling and session
// logic of the Beatify visualizer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// AudioGraphManager owns the audio context and the analyser, and wires
// exactly one source into the analyser at a time.
//
// Graph topology is only mutated under mu. The microphone request is the only
// asynchronous operation; its result is applied only if its generation still
// matches the current selection.
type AudioGraphManager struct {
	// Dependencies (injected)
	logger   *slog.Logger
	platform ports.AudioPlatform
	bus      ports.EventBus

	// Graph, created once per binding
	audioCtx      ports.AudioContext
	analyser      ports.AnalyserNode
	element       ports.MediaElement
	elementSource ports.SourceNode
	buffers       domain.SampleBuffers

	// Microphone
	stream       ports.CaptureStream
	streamSource ports.SourceNode

	// State
	state      domain.GraphState
	active     domain.SourceKind // source wired into the analyser
	selected   domain.SourceKind // last requested source
	generation uint64

	// Concurrency control
	mu            sync.Mutex
	captureCtx    context.Context
	captureCancel context.CancelFunc
	captureWg     sync.WaitGroup
}

// NewAudioGraphManager creates an unbound graph manager.
func NewAudioGraphManager(
	logger *slog.Logger,
	platform ports.AudioPlatform,
	bus ports.EventBus,
) *AudioGraphManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &AudioGraphManager{
		logger:        logger,
		platform:      platform,
		bus:           bus,
		state:         domain.GraphUninitialized,
		captureCtx:    ctx,
		captureCancel: cancel,
	}
}

// Bind creates the context, the analyser and the element source on the first
// call with a non-nil element. Later calls are no-ops.
// A platform without audio leaves the manager uninitialized and returns nil.
func (m *AudioGraphManager) Bind(element ports.MediaElement) error {
	if element == nil {
		return nil
	}

	m.mu.Lock()
	if m.state != domain.GraphUninitialized {
		m.mu.Unlock()
		return nil
	}

	err := m.bindLocked(element)
	m.mu.Unlock()

	if err != nil {
		if domain.IsCapabilityError(err) {
			m.logger.Warn("audio unavailable, visualizer stays blank", slog.Any("error", err))
			m.bus.Publish(domain.NewCapabilityUnavailableEvent(err))
			return nil
		}
		m.logger.Error("failed to bind audio graph", slog.Any("error", err))
		return err
	}

	m.logger.Info("audio graph bound",
		slog.Int("fft_size", domain.FFTSize),
		slog.Int("frequency_bins", m.buffers.FrequencyBinCount()))
	return nil
}

func (m *AudioGraphManager) bindLocked(element ports.MediaElement) error {
	audioCtx, err := m.platform.NewContext()
	if err != nil {
		return err
	}

	analyser, err := audioCtx.NewAnalyser(domain.FFTSize)
	if err != nil {
		m.closeContext(audioCtx)
		return domain.NewGraphError("bind", "failed to create analyser", err)
	}

	source, err := audioCtx.NewElementSource(element)
	if err != nil {
		m.closeContext(audioCtx)
		return domain.NewGraphError("bind", "failed to wrap media element", err)
	}

	if err := source.Connect(audioCtx.Destination()); err != nil {
		m.closeContext(audioCtx)
		return domain.NewGraphError("bind", "failed to route element to output", err)
	}

	m.audioCtx = audioCtx
	m.analyser = analyser
	m.element = element
	m.elementSource = source
	m.buffers = domain.NewSampleBuffers(analyser.FFTSize())
	m.state = domain.GraphBound
	return nil
}

// SetActiveSource selects the source feeding the analyser.
//
// File and None take effect immediately. Mic starts an asynchronous capture
// request and returns; the stream is connected when it arrives, unless the
// selection has changed in the meantime.
func (m *AudioGraphManager) SetActiveSource(kind domain.SourceKind) error {
	m.mu.Lock()

	switch m.state {
	case domain.GraphUninitialized:
		m.mu.Unlock()
		return domain.ErrNotReady
	case domain.GraphDisposed:
		m.mu.Unlock()
		return domain.ErrGraphDisposed
	}

	if kind == domain.SourceMic {
		if m.selected == domain.SourceMic {
			m.mu.Unlock()
			return nil
		}
		m.generation++
		m.selected = domain.SourceMic
		gen := m.generation
		m.captureWg.Add(1)
		m.mu.Unlock()

		m.logger.Debug("requesting microphone", slog.Uint64("generation", gen))
		go m.captureMic(gen)
		return nil
	}

	m.generation++
	m.selected = kind
	prev := m.active
	m.stopMicLocked()

	var err error
	if kind == domain.SourceFile {
		err = m.elementSource.Connect(m.analyser)
		if err == nil {
			m.active = domain.SourceFile
			m.state = domain.GraphFileActive
		}
	} else {
		err = m.elementSource.Disconnect(m.analyser)
		m.active = domain.SourceNone
		m.state = domain.GraphBound
	}
	current := m.active
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("failed to rewire analyser", slog.String("source", kind.String()), slog.Any("error", err))
		return domain.NewGraphError("set_source", "failed to rewire analyser", err)
	}
	if prev != current {
		m.logger.Debug("source changed", slog.String("from", prev.String()), slog.String("to", current.String()))
		m.bus.Publish(domain.NewSourceChangedEvent(prev, current))
	}
	return nil
}

// captureMic runs the capture request for generation gen.
func (m *AudioGraphManager) captureMic(gen uint64) {
	defer m.captureWg.Done()

	stream, err := m.platform.RequestCapture(m.captureCtx)

	m.mu.Lock()
	if gen != m.generation || m.state == domain.GraphDisposed {
		m.mu.Unlock()
		if stream != nil {
			if stopErr := stream.Stop(); stopErr != nil {
				m.logger.Warn("failed to stop stale capture stream", slog.Any("error", stopErr))
			}
			m.logger.Debug("discarded stale capture stream", slog.Uint64("generation", gen))
		}
		return
	}

	if err == nil {
		err = m.connectMicLocked(stream)
	}
	if err != nil {
		// The previous wiring was never touched.
		m.selected = m.active
		m.mu.Unlock()

		if errors.Is(err, domain.ErrPermissionDenied) {
			m.logger.Warn("microphone permission denied", slog.Any("error", err))
		} else {
			m.logger.Warn("microphone capture failed", slog.Any("error", err))
		}
		m.bus.Publish(domain.NewMicDeniedEvent(gen, err))
		return
	}

	prev := m.active
	m.active = domain.SourceMic
	m.state = domain.GraphMicActive
	m.mu.Unlock()

	m.logger.Info("microphone connected", slog.Uint64("generation", gen))
	m.bus.Publish(domain.NewSourceChangedEvent(prev, domain.SourceMic))
}

func (m *AudioGraphManager) connectMicLocked(stream ports.CaptureStream) error {
	source, err := m.audioCtx.NewStreamSource(stream)
	if err == nil {
		err = source.Connect(m.analyser)
	}
	if err != nil {
		if stopErr := stream.Stop(); stopErr != nil {
			m.logger.Warn("failed to stop capture stream", slog.Any("error", stopErr))
		}
		return domain.NewGraphError("capture", "failed to connect capture stream", err)
	}

	m.stopMicLocked()
	if err := m.elementSource.Disconnect(m.analyser); err != nil {
		m.logger.Warn("failed to detach element from analyser", slog.Any("error", err))
	}
	m.stream = stream
	m.streamSource = source
	return nil
}

// stopMicLocked disconnects and stops the live stream, if any.
func (m *AudioGraphManager) stopMicLocked() {
	if m.streamSource != nil {
		if err := m.streamSource.Disconnect(m.analyser); err != nil {
			m.logger.Warn("failed to disconnect capture stream", slog.Any("error", err))
		}
		m.streamSource = nil
	}
	if m.stream != nil {
		if err := m.stream.Stop(); err != nil {
			m.logger.Warn("failed to stop capture stream", slog.Any("error", err))
		}
		m.stream = nil
		m.logger.Debug("microphone stopped")
	}
}

// Resume moves a suspended context to running. Failures are logged and
// returned; callers retry on the next user gesture.
func (m *AudioGraphManager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == domain.GraphDisposed {
		return domain.ErrGraphDisposed
	}
	if m.audioCtx == nil {
		return domain.ErrNotReady
	}
	if m.audioCtx.State() == domain.ContextRunning {
		return nil
	}
	if err := m.audioCtx.Resume(); err != nil {
		m.logger.Debug("context resume failed, will retry on next gesture", slog.Any("error", err))
		return err
	}
	m.logger.Debug("audio context resumed")
	return nil
}

// Buffers returns the sample buffers. The slices stay the same for the
// lifetime of the binding.
func (m *AudioGraphManager) Buffers() (domain.SampleBuffers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case domain.GraphUninitialized:
		return domain.SampleBuffers{}, domain.ErrNotReady
	case domain.GraphDisposed:
		return domain.SampleBuffers{}, domain.ErrGraphDisposed
	}
	return m.buffers, nil
}

// RefreshFrequency fills the frequency buffer from the analyser.
func (m *AudioGraphManager) RefreshFrequency() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.SourceActive() {
		return domain.ErrNotReady
	}
	m.analyser.ByteFrequencyData(m.buffers.Frequency)
	return nil
}

// RefreshTimeDomain fills the time-domain buffer from the analyser.
func (m *AudioGraphManager) RefreshTimeDomain() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.SourceActive() {
		return domain.ErrNotReady
	}
	m.analyser.ByteTimeDomainData(m.buffers.TimeDomain)
	return nil
}

// Generation returns the token of the latest source selection. A
// MicDeniedEvent carrying an older token is stale.
func (m *AudioGraphManager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// State returns the lifecycle state.
func (m *AudioGraphManager) State() domain.GraphState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveSource returns the source currently wired into the analyser.
func (m *AudioGraphManager) ActiveSource() domain.SourceKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LiveStreams returns the number of capture streams held by the manager.
func (m *AudioGraphManager) LiveStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil && m.stream.Active() {
		return 1
	}
	return 0
}

// Dispose releases the stream and the context. It is terminal and waits
// for in-flight capture requests to settle.
func (m *AudioGraphManager) Dispose() error {
	m.mu.Lock()
	if m.state == domain.GraphDisposed {
		m.mu.Unlock()
		return nil
	}
	m.generation++
	m.state = domain.GraphDisposed
	m.mu.Unlock()

	m.captureCancel()
	m.captureWg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopMicLocked()
	m.active = domain.SourceNone
	m.selected = domain.SourceNone

	if m.audioCtx == nil {
		return nil
	}
	if err := m.elementSource.Disconnect(m.analyser); err != nil {
		m.logger.Warn("failed to disconnect element", slog.Any("error", err))
	}
	if err := m.elementSource.Disconnect(m.audioCtx.Destination()); err != nil {
		m.logger.Warn("failed to disconnect element output", slog.Any("error", err))
	}
	err := m.audioCtx.Close()
	m.audioCtx = nil
	m.logger.Debug("audio graph disposed")
	if err != nil {
		return domain.NewGraphError("dispose", "failed to close audio context", err)
	}
	return nil
}

func (m *AudioGraphManager) closeContext(audioCtx ports.AudioContext) {
	if err := audioCtx.Close(); err != nil {
		m.logger.Warn("failed to close audio context", slog.Any("error", err))
	}
}
