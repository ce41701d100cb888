package mock

import (
	"math"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatify/internal/ports"
)

// Analyser is a mock AnalyserNode returning preset data.
type Analyser struct {
	fftSize int

	mu         sync.Mutex
	frequency  []byte
	timeDomain []byte
	freqReads  int
	timeReads  int
	synthetic  bool
	epoch      time.Time
	now        func() time.Time
}

// NewAnalyser creates an analyser returning silence.
func NewAnalyser(fftSize int) *Analyser {
	a := &Analyser{
		fftSize:    fftSize,
		frequency:  make([]byte, fftSize/2),
		timeDomain: make([]byte, fftSize),
		now:        time.Now,
	}
	for i := range a.timeDomain {
		a.timeDomain[i] = 128
	}
	return a
}

// Label returns the node label.
func (a *Analyser) Label() string { return "analyser" }

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount returns FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// SetFrequencyData sets the spectrum returned by ByteFrequencyData.
func (a *Analyser) SetFrequencyData(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.frequency)
	copy(a.frequency, data)
}

// SetTimeDomainData sets the waveform returned by ByteTimeDomainData.
func (a *Analyser) SetTimeDomainData(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	copy(a.timeDomain, data)
}

// FillFrequency sets every bin to v.
func (a *Analyser) FillFrequency(v byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.frequency {
		a.frequency[i] = v
	}
}

// UseSynthetic makes every read return a slowly moving test signal.
func (a *Analyser) UseSynthetic() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.synthetic = true
	a.epoch = a.now()
}

// ByteFrequencyData copies the preset spectrum into dst.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freqReads++
	if a.synthetic {
		a.synthesizeLocked()
	}
	copy(dst, a.frequency)
}

// ByteTimeDomainData copies the preset waveform into dst.
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeReads++
	if a.synthetic {
		a.synthesizeLocked()
	}
	copy(dst, a.timeDomain)
}

// Reads returns how many frequency and time-domain reads were served.
func (a *Analyser) Reads() (frequency, timeDomain int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freqReads, a.timeReads
}

// synthesizeLocked fills both buffers from a drifting spectral hump and a
// two-tone waveform.
func (a *Analyser) synthesizeLocked() {
	t := a.now().Sub(a.epoch).Seconds()
	bins := len(a.frequency)
	center := (0.5 + 0.4*math.Sin(t*0.7)) * float64(bins)
	width := float64(bins) / 6
	beat := 0.6 + 0.4*math.Abs(math.Sin(t*math.Pi*2))
	for i := range a.frequency {
		d := (float64(i) - center) / width
		v := 255 * beat * math.Exp(-d*d/2) * (1 - 0.5*float64(i)/float64(bins))
		a.frequency[i] = byte(math.Max(0, math.Min(255, v)))
	}
	n := len(a.timeDomain)
	for i := range a.timeDomain {
		x := float64(i) / float64(n)
		v := 0.6*math.Sin(2*math.Pi*(3*x+t)) + 0.25*math.Sin(2*math.Pi*(11*x-2*t))
		a.timeDomain[i] = byte(math.Max(0, math.Min(255, 128*(1+v*beat))))
	}
}

var _ ports.AnalyserNode = (*Analyser)(nil)
