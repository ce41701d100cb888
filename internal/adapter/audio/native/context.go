package native

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tejashwikalptaru/beatify/internal/analysis"
	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// sampleSink receives audio pushed from a source.
type sampleSink interface {
	WriteInterleaved(samples []float32, channels int)
}

// tapSet is a small ordered set of sinks. Callers hold the owner's lock.
type tapSet []sampleSink

func (s *tapSet) add(t sampleSink) {
	if !slices.Contains(*s, t) {
		*s = append(*s, t)
	}
}

func (s *tapSet) remove(t sampleSink) {
	*s = slices.DeleteFunc(*s, func(x sampleSink) bool { return x == t })
}

func (s *tapSet) clear() { *s = nil }

func (s tapSet) snapshot() []sampleSink {
	return slices.Clone(s)
}

// feeder is the producing side of a source node.
type feeder interface {
	attach(t sampleSink)
	detach(t sampleSink)
	route(audible bool)
}

// Context implements ports.AudioContext over the shared output device.
type Context struct {
	platform *Platform
	logger   *slog.Logger

	mu      sync.Mutex
	state   domain.ContextState
	sources []*SourceNode
	wrapped map[*Element]bool
	dest    *destinationNode
}

var _ ports.AudioContext = (*Context)(nil)

func newContext(p *Platform) *Context {
	return &Context{
		platform: p,
		logger:   p.logger.With(slog.String("component", "audio_context")),
		state:    domain.ContextSuspended,
		wrapped:  make(map[*Element]bool),
		dest:     &destinationNode{},
	}
}

// State returns the context state.
func (c *Context) State() domain.ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resume opens the output device on first use and marks the context running.
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.ContextClosed:
		return domain.ErrContextClosed
	case domain.ContextRunning:
		return nil
	}

	if _, err := c.platform.output(); err != nil {
		return err
	}
	c.state = domain.ContextRunning
	c.logger.Debug("context resumed")
	return nil
}

// NewAnalyser creates an analyser node.
func (c *Context) NewAnalyser(fftSize int) (ports.AnalyserNode, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	a, err := analysis.New(fftSize)
	if err != nil {
		return nil, domain.NewGraphError("analyser", err.Error(), nil)
	}
	return &AnalyserNode{Analyser: a, label: fmt.Sprintf("analyser(%d)", fftSize)}, nil
}

// NewElementSource wraps a native element. Each element is wrapped once.
func (c *Context) NewElementSource(element ports.MediaElement) (ports.SourceNode, error) {
	el, ok := element.(*Element)
	if !ok {
		return nil, domain.NewGraphError("element_source", fmt.Sprintf("unsupported element %T", element), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.ContextClosed {
		return nil, domain.ErrContextClosed
	}
	if c.wrapped[el] {
		return nil, domain.NewGraphError("element_source", "element already wrapped", nil)
	}
	c.wrapped[el] = true

	node := newSourceNode(c, "element", el)
	c.sources = append(c.sources, node)
	return node, nil
}

// NewStreamSource wraps a capture stream opened by this platform.
func (c *Context) NewStreamSource(stream ports.CaptureStream) (ports.SourceNode, error) {
	cs, ok := stream.(*CaptureStream)
	if !ok {
		return nil, domain.NewGraphError("stream_source", fmt.Sprintf("unsupported stream %T", stream), nil)
	}
	if !cs.Active() {
		return nil, domain.NewGraphError("stream_source", "stream is not active", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.ContextClosed {
		return nil, domain.ErrContextClosed
	}
	node := newSourceNode(c, fmt.Sprintf("stream(%d)", cs.id), cs)
	c.sources = append(c.sources, node)
	return node, nil
}

// Destination returns the speaker node.
func (c *Context) Destination() ports.AudioNode {
	return c.dest
}

// Close disconnects every source and marks the context closed.
// The output device stays open for the process.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == domain.ContextClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.ContextClosed
	sources := c.sources
	c.sources = nil
	c.mu.Unlock()

	for _, s := range sources {
		s.disconnectAll()
	}
	c.logger.Debug("context closed", slog.Int("sources", len(sources)))
	return nil
}

func (c *Context) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.ContextClosed {
		return domain.ErrContextClosed
	}
	return nil
}

// AnalyserNode adapts analysis.Analyser to ports.AnalyserNode.
type AnalyserNode struct {
	*analysis.Analyser
	label string
}

var _ ports.AnalyserNode = (*AnalyserNode)(nil)

func (a *AnalyserNode) Label() string { return a.label }

type destinationNode struct{}

func (*destinationNode) Label() string { return "destination" }

// SourceNode routes a feeder to analysers and the destination.
type SourceNode struct {
	ctx   *Context
	label string
	feed  feeder

	mu    sync.Mutex
	edges map[ports.AudioNode]bool
}

var _ ports.SourceNode = (*SourceNode)(nil)

func newSourceNode(ctx *Context, label string, feed feeder) *SourceNode {
	return &SourceNode{ctx: ctx, label: label, feed: feed, edges: make(map[ports.AudioNode]bool)}
}

func (s *SourceNode) Label() string { return s.label }

// Connect routes the source into dst. Connecting twice is a no-op.
func (s *SourceNode) Connect(dst ports.AudioNode) error {
	if err := s.ctx.checkOpen(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edges[dst] {
		return nil
	}
	switch d := dst.(type) {
	case *destinationNode:
		s.feed.route(true)
	case *AnalyserNode:
		s.feed.attach(d)
	default:
		return domain.NewGraphError("connect", fmt.Sprintf("cannot connect %s to %T", s.label, dst), nil)
	}
	s.edges[dst] = true
	return nil
}

// Disconnect removes the edge to dst. Missing edges are ignored.
func (s *SourceNode) Disconnect(dst ports.AudioNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.edges[dst] {
		return nil
	}
	s.unlink(dst)
	delete(s.edges, dst)
	return nil
}

func (s *SourceNode) disconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for dst := range s.edges {
		s.unlink(dst)
	}
	clear(s.edges)
}

func (s *SourceNode) unlink(dst ports.AudioNode) {
	switch d := dst.(type) {
	case *destinationNode:
		s.feed.route(false)
	case *AnalyserNode:
		s.feed.detach(d)
	}
}
