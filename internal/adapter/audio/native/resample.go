package native

import (
	"errors"
	"io"
)

const outputChannels = 2

// resampler converts a Source to stereo at a fixed rate using linear
// interpolation. Mono input is duplicated; channels past the second are dropped.
type resampler struct {
	src      Source
	inCh     int
	step     float64 // source frames per output frame
	frac     float64
	cur      [outputChannels]float32
	next     [outputChannels]float32
	primed   bool
	drained  bool
	buf      []float32
	bufStart int
	bufEnd   int
	err      error
}

func newResampler(src Source, dstRate int) *resampler {
	inCh := src.Channels()
	return &resampler{
		src:  src,
		inCh: inCh,
		step: float64(src.SampleRate()) / float64(dstRate),
		buf:  make([]float32, 1024*inCh),
	}
}

// ReadFrames fills dst with interleaved stereo samples and returns the
// number of samples written. io.EOF is returned once no samples remain.
func (r *resampler) ReadFrames(dst []float32) (int, error) {
	if !r.primed {
		if !r.readFrame(&r.cur) {
			return 0, r.endErr()
		}
		if !r.readFrame(&r.next) {
			r.next = r.cur
			r.drained = true
		}
		r.primed = true
	}

	written := 0
	for written+outputChannels <= len(dst) {
		if r.drained && r.frac > 0 {
			break
		}

		t := float32(r.frac)
		for ch := range outputChannels {
			dst[written+ch] = r.cur[ch] + (r.next[ch]-r.cur[ch])*t
		}
		written += outputChannels

		r.frac += r.step
		for r.frac >= 1 && !r.drained {
			r.frac--
			r.cur = r.next
			if !r.readFrame(&r.next) {
				r.next = r.cur
				r.drained = true
			}
		}
	}

	if written == 0 {
		return 0, r.endErr()
	}
	return written, nil
}

func (r *resampler) Close() error {
	return r.src.Close()
}

func (r *resampler) endErr() error {
	if r.err != nil && !errors.Is(r.err, io.EOF) {
		return r.err
	}
	return io.EOF
}

// readFrame pulls one source frame, refilling the chunk buffer as needed.
func (r *resampler) readFrame(dst *[outputChannels]float32) bool {
	for r.bufEnd-r.bufStart < r.inCh {
		if r.err != nil {
			return false
		}
		n, err := r.src.ReadSamples(r.buf)
		r.bufStart, r.bufEnd = 0, n-n%r.inCh
		if err != nil {
			r.err = err
		}
		if n == 0 && err == nil {
			r.err = io.ErrNoProgress
		}
	}

	frame := r.buf[r.bufStart : r.bufStart+r.inCh]
	r.bufStart += r.inCh

	dst[0] = frame[0]
	if r.inCh == 1 {
		dst[1] = frame[0]
	} else {
		dst[1] = frame[1]
	}
	return true
}
