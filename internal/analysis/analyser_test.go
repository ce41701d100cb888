package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyser(t *testing.T) *Analyser {
	t.Helper()
	a, err := New(256)
	require.NoError(t, err)
	return a
}

func sine(n, bin, size int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(size)))
	}
	return out
}

func TestNew_RejectsInvalidSizes(t *testing.T) {
	for _, size := range []int{0, 16, 100, 255, 65536} {
		_, err := New(size)
		assert.Error(t, err, "size %d", size)
	}
}

func TestNew_Lengths(t *testing.T) {
	a := newTestAnalyser(t)
	assert.Equal(t, 256, a.FFTSize())
	assert.Equal(t, 128, a.FrequencyBinCount())
}

func TestByteFrequencyData_Silence(t *testing.T) {
	a := newTestAnalyser(t)
	dst := make([]byte, a.FrequencyBinCount())
	for i := range dst {
		dst[i] = 7
	}

	a.ByteFrequencyData(dst)

	for i, v := range dst {
		assert.Zero(t, v, "bin %d", i)
	}
}

func TestByteFrequencyData_SinePeaksAtItsBin(t *testing.T) {
	a := newTestAnalyser(t)
	a.Write(sine(256, 8, 256, 1.0))

	dst := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(dst)

	peak := 0
	for i, v := range dst {
		if v > dst[peak] {
			peak = i
		}
	}
	assert.Equal(t, 8, peak)
	assert.Equal(t, byte(255), dst[8])
	assert.Zero(t, dst[100], "far bins carry no energy")
}

func TestByteFrequencyData_SmoothingDecays(t *testing.T) {
	a := newTestAnalyser(t)
	a.Write(sine(256, 8, 256, 0.01))

	dst := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(dst)
	first := dst[8]

	// Silence: the smoothed magnitude decays instead of dropping to zero.
	a.Write(make([]float32, 256))
	a.ByteFrequencyData(dst)
	second := dst[8]

	assert.Greater(t, first, byte(0))
	assert.Greater(t, second, byte(0))
	assert.Less(t, second, first)
}

func TestByteFrequencyData_PartialDestination(t *testing.T) {
	a := newTestAnalyser(t)
	a.Write(sine(256, 4, 256, 1.0))

	dst := make([]byte, 16)
	a.ByteFrequencyData(dst)
	assert.Equal(t, byte(255), dst[4])
}

func TestByteTimeDomainData(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   byte
	}{
		{"silence", 0, 128},
		{"half positive", 0.5, 192},
		{"half negative", -0.5, 64},
		{"clipped high", 2, 255},
		{"clipped low", -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyser(t)
			samples := make([]float32, 256)
			for i := range samples {
				samples[i] = tt.sample
			}
			a.Write(samples)

			dst := make([]byte, a.FFTSize())
			a.ByteTimeDomainData(dst)
			for i, v := range dst {
				require.Equal(t, tt.want, v, "sample %d", i)
			}
		})
	}
}

func TestByteTimeDomainData_NewestSamplesLast(t *testing.T) {
	a := newTestAnalyser(t)
	a.Write([]float32{0.5, -0.5})

	dst := make([]byte, 4)
	a.ByteTimeDomainData(dst)
	assert.Equal(t, []byte{128, 128, 192, 64}, dst)
}

func TestWriteInterleaved_MixesToMono(t *testing.T) {
	a := newTestAnalyser(t)
	a.WriteInterleaved([]float32{1, 0, 0, -1}, 2)

	dst := make([]byte, 2)
	a.ByteTimeDomainData(dst)
	assert.Equal(t, []byte{192, 64}, dst)
}

func TestWrite_LongerThanRingKeepsNewest(t *testing.T) {
	a := newTestAnalyser(t)
	samples := make([]float32, 300)
	samples[299] = 0.5

	a.Write(samples)

	dst := make([]byte, 1)
	a.ByteTimeDomainData(dst)
	assert.Equal(t, byte(192), dst[0])
}

func TestReset(t *testing.T) {
	a := newTestAnalyser(t)
	a.Write(sine(256, 8, 256, 1.0))
	a.Reset()

	freq := make([]byte, 128)
	a.ByteFrequencyData(freq)
	assert.Zero(t, freq[8])

	td := make([]byte, 256)
	a.ByteTimeDomainData(td)
	assert.Equal(t, byte(128), td[0])
}

func TestSetters_Validate(t *testing.T) {
	a := newTestAnalyser(t)
	assert.Error(t, a.SetSmoothing(1))
	assert.Error(t, a.SetSmoothing(-0.1))
	assert.NoError(t, a.SetSmoothing(0))
	assert.Error(t, a.SetDecibelRange(-30, -100))
	assert.NoError(t, a.SetDecibelRange(-90, -10))
}
