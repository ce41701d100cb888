// Package mock provides an in-memory implementation of the audio platform ports.
// It is used by tests and by the --mock-audio mode, where no sound hardware
// is touched.
package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// Platform is a mock AudioPlatform.
// Capture requests can be held open and resolved later to reproduce
// permission races.
//
// Thread-safety: This implementation is thread-safe.
type Platform struct {
	logger *slog.Logger

	mu       sync.Mutex
	contexts []*Context
	streams  []*Stream
	pending  []*pendingCapture

	// Behavior configuration (for testing error scenarios)
	failContext bool
	failResume  bool
	denyCapture bool
	holdCapture bool
	synthetic   bool
}

type pendingCapture struct {
	result chan captureResult
}

type captureResult struct {
	stream *Stream
	err    error
}

// NewPlatform creates a new mock platform.
func NewPlatform() *Platform {
	return &Platform{}
}

// SetLogger sets the logger for this platform.
func (p *Platform) SetLogger(logger *slog.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// SetFailContext makes NewContext report a missing capability.
func (p *Platform) SetFailContext(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failContext = fail
}

// SetFailResume makes Resume fail on contexts created afterwards.
func (p *Platform) SetFailResume(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failResume = fail
}

// SetDenyCapture makes capture requests fail with ErrPermissionDenied.
func (p *Platform) SetDenyCapture(deny bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denyCapture = deny
}

// SetHoldCapture makes capture requests block until ResolveCapture or
// DenyCapture is called, like an unanswered permission prompt.
func (p *Platform) SetHoldCapture(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdCapture = hold
}

// SetSynthetic makes analysers of new contexts generate a moving test signal.
func (p *Platform) SetSynthetic(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthetic = on
}

// NewContext creates a suspended mock context.
func (p *Platform) NewContext() (ports.AudioContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failContext {
		return nil, domain.NewGraphError("new_context", "mock platform has no audio", domain.ErrCapabilityUnavailable)
	}
	c := newContext(p.failResume, p.synthetic)
	p.contexts = append(p.contexts, c)
	p.debug("context created", slog.Int("contexts", len(p.contexts)))
	return c, nil
}

// RequestCapture opens a mock stream, or blocks while captures are held.
func (p *Platform) RequestCapture(ctx context.Context) (ports.CaptureStream, error) {
	p.mu.Lock()
	if p.denyCapture {
		p.mu.Unlock()
		return nil, domain.NewGraphError("capture", "mock permission refused", domain.ErrPermissionDenied)
	}
	if !p.holdCapture {
		s := p.openStreamLocked()
		p.mu.Unlock()
		return s, nil
	}
	req := &pendingCapture{result: make(chan captureResult, 1)}
	p.pending = append(p.pending, req)
	p.mu.Unlock()

	select {
	case res := <-req.result:
		if res.err != nil {
			return nil, res.err
		}
		return res.stream, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.removePendingLocked(req)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// PendingCaptures returns the number of held capture requests.
func (p *Platform) PendingCaptures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// ResolveCapture grants the oldest held request. Returns false if none is held.
func (p *Platform) ResolveCapture() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return false
	}
	req := p.pending[0]
	p.pending = p.pending[1:]
	req.result <- captureResult{stream: p.openStreamLocked()}
	return true
}

// DenyCapture rejects the oldest held request. Returns false if none is held.
func (p *Platform) DenyCapture() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return false
	}
	req := p.pending[0]
	p.pending = p.pending[1:]
	req.result <- captureResult{err: domain.NewGraphError("capture", "mock permission refused", domain.ErrPermissionDenied)}
	return true
}

// OpenedStreams returns how many streams were ever handed out.
func (p *Platform) OpenedStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

// LiveStreams returns how many streams still hold a hardware track.
func (p *Platform) LiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	live := 0
	for _, s := range p.streams {
		if s.Active() {
			live++
		}
	}
	return live
}

// Contexts returns every context created so far.
func (p *Platform) Contexts() []*Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Context(nil), p.contexts...)
}

// LastContext returns the most recent context, or nil.
func (p *Platform) LastContext() *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.contexts) == 0 {
		return nil
	}
	return p.contexts[len(p.contexts)-1]
}

func (p *Platform) openStreamLocked() *Stream {
	s := newStream(len(p.streams) + 1)
	p.streams = append(p.streams, s)
	p.debug("capture stream opened", slog.Int("stream", s.id))
	return s
}

func (p *Platform) removePendingLocked(req *pendingCapture) {
	for i, r := range p.pending {
		if r == req {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}

func (p *Platform) debug(msg string, attrs ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, attrs...)
	}
}

var _ ports.AudioPlatform = (*Platform)(nil)
