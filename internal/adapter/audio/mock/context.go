package mock

import (
	"fmt"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// Context is a mock AudioContext. It records every node it creates so tests
// can inspect the graph topology.
type Context struct {
	mu         sync.Mutex
	state      domain.ContextState
	failResume bool
	synthetic  bool
	resumes    int

	destination *Node
	analysers   []*Analyser
	sources     []*Source
	wrapped     map[ports.MediaElement]bool
}

func newContext(failResume, synthetic bool) *Context {
	return &Context{
		state:       domain.ContextSuspended,
		failResume:  failResume,
		synthetic:   synthetic,
		destination: &Node{label: "destination"},
		wrapped:     make(map[ports.MediaElement]bool),
	}
}

// State returns the context state.
func (c *Context) State() domain.ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState forces the context state.
func (c *Context) SetState(state domain.ContextState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// SetFailResume toggles Resume failures.
func (c *Context) SetFailResume(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failResume = fail
}

// Resume moves a suspended context to running.
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resumes++
	switch {
	case c.state == domain.ContextClosed:
		return domain.NewGraphError("resume", "context closed", domain.ErrContextClosed)
	case c.failResume:
		return domain.NewGraphError("resume", "mock resume failure", domain.ErrAutoplayBlocked)
	}
	c.state = domain.ContextRunning
	return nil
}

// ResumeCalls returns how many times Resume was called.
func (c *Context) ResumeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumes
}

// NewAnalyser creates a mock analyser.
func (c *Context) NewAnalyser(fftSize int) (ports.AnalyserNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.ContextClosed {
		return nil, domain.NewGraphError("new_analyser", "context closed", domain.ErrContextClosed)
	}
	if fftSize < 32 || fftSize&(fftSize-1) != 0 {
		return nil, domain.NewGraphError("new_analyser", fmt.Sprintf("invalid fft size %d", fftSize), nil)
	}
	a := NewAnalyser(fftSize)
	if c.synthetic {
		a.UseSynthetic()
	}
	c.analysers = append(c.analysers, a)
	return a, nil
}

// NewElementSource wraps a media element. An element can be wrapped once.
func (c *Context) NewElementSource(element ports.MediaElement) (ports.SourceNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.ContextClosed {
		return nil, domain.NewGraphError("element_source", "context closed", domain.ErrContextClosed)
	}
	if element == nil {
		return nil, domain.NewGraphError("element_source", "nil element", nil)
	}
	if c.wrapped[element] {
		return nil, domain.NewGraphError("element_source", "element already wrapped", nil)
	}
	c.wrapped[element] = true
	s := newSource("element", SourceElement)
	c.sources = append(c.sources, s)
	return s, nil
}

// NewStreamSource wraps a capture stream.
func (c *Context) NewStreamSource(stream ports.CaptureStream) (ports.SourceNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.ContextClosed {
		return nil, domain.NewGraphError("stream_source", "context closed", domain.ErrContextClosed)
	}
	if stream == nil || !stream.Active() {
		return nil, domain.NewGraphError("stream_source", "stream not active", nil)
	}
	s := newSource("stream", SourceStream)
	c.sources = append(c.sources, s)
	return s, nil
}

// Destination returns the output node.
func (c *Context) Destination() ports.AudioNode {
	return c.destination
}

// Close closes the context. Closing twice is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.ContextClosed
	return nil
}

// Analyser returns the first analyser created on this context, or nil.
func (c *Context) Analyser() *Analyser {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.analysers) == 0 {
		return nil
	}
	return c.analysers[0]
}

// Sources returns every source node created on this context.
func (c *Context) Sources() []*Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Source(nil), c.sources...)
}

// ConnectedSources counts sources of kind with an edge to dst.
func (c *Context) ConnectedSources(kind SourceType, dst ports.AudioNode) int {
	n := 0
	for _, s := range c.Sources() {
		if s.kind == kind && s.ConnectedTo(dst) {
			n++
		}
	}
	return n
}

var _ ports.AudioContext = (*Context)(nil)

// Node is a plain sink node.
type Node struct {
	label string
}

// Label returns the node label.
func (n *Node) Label() string { return n.label }

// SourceType distinguishes element and stream sources.
type SourceType int

const (
	SourceElement SourceType = iota
	SourceStream
)

// Source is a mock SourceNode that records its edges.
type Source struct {
	label string
	kind  SourceType

	mu    sync.Mutex
	edges map[ports.AudioNode]bool
}

func newSource(label string, kind SourceType) *Source {
	return &Source{label: label, kind: kind, edges: make(map[ports.AudioNode]bool)}
}

// Label returns the node label.
func (s *Source) Label() string { return s.label }

// Kind returns whether the source wraps an element or a stream.
func (s *Source) Kind() SourceType { return s.kind }

// Connect adds an edge to dst.
func (s *Source) Connect(dst ports.AudioNode) error {
	if dst == nil {
		return domain.NewGraphError("connect", "nil destination", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[dst] = true
	return nil
}

// Disconnect removes the edge to dst.
func (s *Source) Disconnect(dst ports.AudioNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, dst)
	return nil
}

// ConnectedTo reports whether an edge to dst exists.
func (s *Source) ConnectedTo(dst ports.AudioNode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges[dst]
}

var _ ports.SourceNode = (*Source)(nil)

// Stream is a mock CaptureStream.
type Stream struct {
	id int

	mu     sync.Mutex
	active bool
	stops  int
}

func newStream(id int) *Stream {
	return &Stream{id: id, active: true}
}

// ID returns the order in which the platform opened the stream, from 1.
func (s *Stream) ID() int { return s.id }

// Stop releases the stream.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.stops++
	return nil
}

// Active reports whether the stream is still open.
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

var _ ports.CaptureStream = (*Stream)(nil)
