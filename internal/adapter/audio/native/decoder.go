package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

// Source yields interleaved float32 samples in [-1, 1].
type Source interface {
	SampleRate() int
	Channels() int

	// ReadSamples fills dst with interleaved samples and returns how many
	// were written. It returns io.EOF once the stream is exhausted.
	ReadSamples(dst []float32) (int, error)

	Close() error
}

// decodeSource picks a decoder by the extension of name.
func decodeSource(name string, r io.ReadSeeker, closer io.Closer) (Source, error) {
	ext := strings.ToLower(filepath.Ext(stripQuery(name)))

	var (
		src Source
		err error
	)
	switch ext {
	case ".mp3":
		src, err = newMP3Source(r)
	case ".wav":
		src, err = newWAVSource(r)
	case ".ogg", ".oga":
		src, err = newOGGSource(r)
	case ".flac", ".fla":
		src, err = newFLACSource(r)
	default:
		return nil, domain.NewDecodeError(name, ext, "unsupported format", domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, domain.NewDecodeError(name, ext, err.Error(), domain.ErrUnsupportedFormat)
	}
	if src.SampleRate() <= 0 || src.Channels() <= 0 {
		return nil, domain.NewDecodeError(name, ext, "missing stream info", domain.ErrUnsupportedFormat)
	}

	return &closingSource{Source: src, closer: closer}, nil
}

// closingSource releases the underlying file when the decoder is closed.
type closingSource struct {
	Source
	closer io.Closer
}

func (s *closingSource) Close() error {
	err := s.Source.Close()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}

// --- MP3 ---

type mp3Source struct {
	dec *mp3.Decoder
	buf []byte
}

func newMP3Source(r io.Reader) (*mp3Source, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &mp3Source{dec: dec}, nil
}

func (s *mp3Source) SampleRate() int { return s.dec.SampleRate() }

// go-mp3 always emits 16-bit little-endian stereo.
func (s *mp3Source) Channels() int { return 2 }
func (s *mp3Source) Close() error  { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	n, err := io.ReadFull(s.dec, s.buf)
	samples := n / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(s.buf[2*i:]))) / 32768
	}
	if samples == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	return samples, nil
}

// --- WAV ---

type wavSource struct {
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	bitDepth int
	rate     int
	channels int
}

func newWAVSource(r io.ReadSeeker) (*wavSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	return &wavSource{
		dec:      dec,
		bitDepth: int(dec.BitDepth),
		rate:     rate,
		channels: channels,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: int(dec.BitDepth),
		},
	}, nil
}

func (s *wavSource) SampleRate() int { return s.rate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	// 8-bit WAV is unsigned.
	if s.bitDepth == 8 {
		for i := range n {
			dst[i] = float32(s.buf.Data[i]-128) / 128
		}
		return n, nil
	}

	scale := float32(int64(1) << (s.bitDepth - 1))
	for i := range n {
		dst[i] = float32(s.buf.Data[i]) / scale
	}
	return n, nil
}

// --- Ogg Vorbis ---

type oggSource struct {
	reader *oggvorbis.Reader
}

func newOGGSource(r io.Reader) (*oggSource, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggSource{reader: reader}, nil
}

func (s *oggSource) SampleRate() int { return s.reader.SampleRate() }
func (s *oggSource) Channels() int   { return s.reader.Channels() }
func (s *oggSource) Close() error    { return nil }

func (s *oggSource) ReadSamples(dst []float32) (int, error) {
	// Read whole frames only.
	ch := s.reader.Channels()
	dst = dst[:len(dst)/ch*ch]

	n, err := s.reader.Read(dst)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	return n, nil
}

// --- FLAC ---

type flacSource struct {
	stream   *flac.Stream
	pending  []float32
	scale    float32
	rate     int
	channels int
}

func newFLACSource(r io.Reader) (*flacSource, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}

	info := stream.Info
	return &flacSource{
		stream:   stream,
		scale:    float32(int64(1) << (info.BitsPerSample - 1)),
		rate:     int(info.SampleRate),
		channels: int(info.NChannels),
	}, nil
}

func (s *flacSource) SampleRate() int { return s.rate }
func (s *flacSource) Channels() int   { return s.channels }
func (s *flacSource) Close() error    { return s.stream.Close() }

func (s *flacSource) ReadSamples(dst []float32) (int, error) {
	written := 0
	for written < len(dst) {
		if len(s.pending) == 0 {
			frame, err := s.stream.ParseNext()
			if err != nil {
				if written > 0 && errors.Is(err, io.EOF) {
					return written, nil
				}
				return written, err
			}

			frames := int(frame.Subframes[0].NSamples)
			s.pending = s.pending[:0]
			for i := range frames {
				for ch := range s.channels {
					s.pending = append(s.pending, float32(frame.Subframes[ch].Samples[i])/s.scale)
				}
			}
		}

		n := copy(dst[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}
	return written, nil
}
