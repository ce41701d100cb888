// Package native implements the audio platform on real hardware.
// Output goes through a process-wide oto context; microphone capture uses
// PortAudio. Decoding covers MP3, WAV, Ogg Vorbis and FLAC.
package native

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"github.com/tejashwikalptaru/beatify/internal/domain"
	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// Options configures the native platform.
type Options struct {
	SampleRate     int   // output and capture rate in Hz
	CaptureFrames  int   // frames per capture buffer
	CaptureDevice  int   // PortAudio input device index, -1 for the default
	MaxRemoteBytes int64 // download cap for http(s) sources, 0 for none
}

// DefaultOptions returns options for 44.1 kHz output and the default input.
func DefaultOptions() Options {
	return Options{
		SampleRate:     44100,
		CaptureFrames:  512,
		CaptureDevice:  -1,
		MaxRemoteBytes: 64 << 20,
	}
}

// The oto context can only be created once per process.
var (
	outputOnce sync.Once
	outputCtx  *oto.Context
	outputErr  error
)

func initOutput(sampleRate int) (*oto.Context, error) {
	outputOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: outputChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			outputErr = err
			return
		}
		<-ready
		outputCtx = ctx
	})
	return outputCtx, outputErr
}

// Platform implements ports.AudioPlatform on the host audio stack.
//
// Thread-safety: all methods are safe for concurrent use.
type Platform struct {
	logger *slog.Logger
	opts   Options
	client *http.Client

	// unlocked flips once a context has been resumed by a user gesture.
	unlocked atomic.Bool

	paMu   sync.Mutex
	paRefs int

	streamSeq atomic.Uint64
}

// Compile-time check.
var _ ports.AudioPlatform = (*Platform)(nil)

// NewPlatform creates a native platform. Hardware is touched lazily.
func NewPlatform(opts Options, logger *slog.Logger) *Platform {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultOptions().SampleRate
	}
	if opts.CaptureFrames <= 0 {
		opts.CaptureFrames = DefaultOptions().CaptureFrames
	}
	return &Platform{
		logger: logger,
		opts:   opts,
		client: http.DefaultClient,
	}
}

// NewContext creates a suspended context. Output is opened on Resume.
func (p *Platform) NewContext() (ports.AudioContext, error) {
	return newContext(p), nil
}

// NewElement creates a media element that plays through this platform.
func (p *Platform) NewElement() *Element {
	return newElement(p)
}

// output opens the shared output device and marks the platform unlocked.
func (p *Platform) output() (*oto.Context, error) {
	ctx, err := initOutput(p.opts.SampleRate)
	if err != nil {
		return nil, domain.NewGraphError("output", err.Error(), domain.ErrCapabilityUnavailable)
	}
	p.unlocked.Store(true)
	return ctx, nil
}

// RequestCapture opens and starts the configured input device.
// Every failure is reported as a denied permission.
func (p *Platform) RequestCapture(ctx context.Context) (ports.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewGraphError("capture", "request cancelled", err)
	}

	if err := p.acquirePortAudio(); err != nil {
		return nil, domain.NewGraphError("capture", err.Error(), domain.ErrPermissionDenied)
	}

	stream, err := openCapture(p, p.streamSeq.Add(1))
	if err != nil {
		p.releasePortAudio()
		return nil, domain.NewGraphError("capture", err.Error(), domain.ErrPermissionDenied)
	}

	// The request may have been abandoned while the device opened.
	if err := ctx.Err(); err != nil {
		_ = stream.Stop()
		return nil, domain.NewGraphError("capture", "request cancelled", err)
	}

	p.logger.Info("capture started", slog.Uint64("stream", stream.id))
	return stream, nil
}

func (p *Platform) acquirePortAudio() error {
	p.paMu.Lock()
	defer p.paMu.Unlock()

	if p.paRefs == 0 {
		if err := initializePortAudio(); err != nil {
			return err
		}
	}
	p.paRefs++
	return nil
}

func (p *Platform) releasePortAudio() {
	p.paMu.Lock()
	defer p.paMu.Unlock()

	if p.paRefs == 0 {
		return
	}
	p.paRefs--
	if p.paRefs == 0 {
		if err := terminatePortAudio(); err != nil {
			p.logger.Warn("failed to terminate portaudio", slog.Any("error", err))
		}
	}
}

// Devices lists the input-capable devices.
func (p *Platform) Devices() ([]Device, error) {
	if err := p.acquirePortAudio(); err != nil {
		return nil, err
	}
	defer p.releasePortAudio()

	return inputDevices()
}
