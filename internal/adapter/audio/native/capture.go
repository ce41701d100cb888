package native

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tejashwikalptaru/beatify/internal/ports"
)

func initializePortAudio() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

func terminatePortAudio() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Device describes an input-capable PortAudio device.
type Device struct {
	Index             int
	Name              string
	InputChannels     int
	DefaultSampleRate float64
	LowLatency        time.Duration
	HighLatency       time.Duration
}

func inputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var out []Device
	for i, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		out = append(out, Device{
			Index:             i,
			Name:              d.Name,
			InputChannels:     d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			LowLatency:        d.DefaultLowInputLatency,
			HighLatency:       d.DefaultHighInputLatency,
		})
	}
	return out, nil
}

// inputDevice returns the device at index, or the system default for -1.
func inputDevice(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if index >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", index)
	}
	if devices[index].MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d has no input channels", index)
	}
	return devices[index], nil
}

// CaptureStream is a started mono input stream. Callbacks feed the
// analysers connected through its source node.
type CaptureStream struct {
	id       uint64
	platform *Platform
	stream   *portaudio.Stream

	mu     sync.Mutex
	active bool
	taps   tapSet

	stopOnce sync.Once
	stopErr  error
}

var _ ports.CaptureStream = (*CaptureStream)(nil)

func openCapture(p *Platform, id uint64) (*CaptureStream, error) {
	device, err := inputDevice(p.opts.CaptureDevice)
	if err != nil {
		return nil, err
	}

	cs := &CaptureStream{id: id, platform: p}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.opts.SampleRate),
		FramesPerBuffer: p.opts.CaptureFrames,
	}

	stream, err := portaudio.OpenStream(params, cs.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	cs.stream = stream
	cs.active = true
	return cs, nil
}

// process runs on the PortAudio callback thread.
func (cs *CaptureStream) process(in []float32) {
	cs.mu.Lock()
	taps := cs.taps.snapshot()
	cs.mu.Unlock()

	for _, t := range taps {
		t.WriteInterleaved(in, 1)
	}
}

// Stop stops and closes the hardware stream. Stopping twice is a no-op.
func (cs *CaptureStream) Stop() error {
	cs.stopOnce.Do(func() {
		cs.mu.Lock()
		cs.active = false
		cs.taps.clear()
		cs.mu.Unlock()

		cs.stopErr = errors.Join(cs.stream.Stop(), cs.stream.Close())
		cs.platform.releasePortAudio()
		cs.platform.logger.Info("capture stopped")
	})
	return cs.stopErr
}

// Active reports whether the stream is still open.
func (cs *CaptureStream) Active() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.active
}

func (cs *CaptureStream) attach(t sampleSink) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.taps.add(t)
}

func (cs *CaptureStream) detach(t sampleSink) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.taps.remove(t)
}

// Capture streams are never routed to the speakers.
func (cs *CaptureStream) route(bool) {}
