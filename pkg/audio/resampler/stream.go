package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Stream wraps an io.Reader of PCM16 audio and converts it from srcFmt to
// dstFmt as it is read. Rate conversion uses a windowed-sinc resampler
// (higher quality than the block-wise linear [Resample], at the cost of
// internal state); channel conversion uses [StereoToMono] / [MonoToStereo].
//
// Stream is intended for playback paths where the output device cannot
// consume the standard 24 kHz rate directly. It must be closed to release
// resources.
type Stream struct {
	src    io.Reader
	srcFmt Format
	dstFmt Format

	mu        sync.Mutex
	rs        resampling.Resampler
	readBuf   []byte
	leftover  []byte
	closeErr  error
	rateShift bool
}

// NewStream creates a Stream converting audio from srcFmt to dstFmt.
func NewStream(src io.Reader, srcFmt, dstFmt Format) (*Stream, error) {
	s := &Stream{
		src:       src,
		srcFmt:    srcFmt,
		dstFmt:    dstFmt,
		rateShift: srcFmt.SampleRate != dstFmt.SampleRate,
	}

	if s.rateShift {
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(srcFmt.SampleRate),
			OutputRate: float64(dstFmt.SampleRate),
			Channels:   dstFmt.channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: create stream: %w", err)
		}
		s.rs = rs
	}

	return s, nil
}

// Read fills p with converted audio. It returns whole destination frames
// only; a buffer smaller than one frame returns io.ErrShortBuffer. Read is
// safe for use by one reader at a time.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) < s.dstFmt.frameBytes() {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/s.dstFmt.frameBytes()*s.dstFmt.frameBytes()]

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}
	if s.closeErr != nil {
		return 0, s.closeErr
	}

	chunk, err := s.readConverted(len(p))
	if len(chunk) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	n := copy(p, chunk)
	if n < len(chunk) {
		s.leftover = append(s.leftover, chunk[n:]...)
	}
	return n, err
}

// readConverted pulls source audio, applies channel conversion, and rate
// conversion when needed. Returns converted bytes aligned to destination
// frames.
func (s *Stream) readConverted(want int) ([]byte, error) {
	srcWant := want
	if s.rateShift {
		ratio := float64(s.srcFmt.SampleRate) / float64(s.dstFmt.SampleRate)
		srcWant = int(float64(want)*ratio) + s.srcFmt.frameBytes()*4
	}
	if s.srcFmt.Stereo && !s.dstFmt.Stereo {
		srcWant *= 2
	}
	srcWant = srcWant / s.srcFmt.frameBytes() * s.srcFmt.frameBytes()

	if cap(s.readBuf) < srcWant {
		s.readBuf = make([]byte, srcWant)
	}
	n, readErr := io.ReadAtLeast(s.src, s.readBuf[:srcWant], s.srcFmt.frameBytes())
	if n == 0 {
		return nil, readErr
	}
	if readErr == io.ErrUnexpectedEOF {
		readErr = io.EOF
	}
	raw := s.readBuf[:n/s.srcFmt.frameBytes()*s.srcFmt.frameBytes()]

	switch {
	case s.srcFmt.Stereo && !s.dstFmt.Stereo:
		raw = StereoToMono(raw)
	case !s.srcFmt.Stereo && s.dstFmt.Stereo:
		raw = MonoToStereo(raw)
	}

	if !s.rateShift {
		return raw, readErr
	}

	// Feed the sinc resampler in normalized float64 and convert back.
	in := make([]float64, len(raw)/2)
	for i := range in {
		in[i] = float64(sampleAt(raw, i)) / 32768.0
	}
	out, err := s.rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	conv := make([]byte, len(out)*2)
	for i, f := range out {
		putSample(conv, i, clampInt16(f*32767.0))
	}
	conv = conv[:len(conv)/s.dstFmt.frameBytes()*s.dstFmt.frameBytes()]
	return conv, readErr
}

// Close releases resources. Subsequent reads return io.ErrClosedPipe.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		s.closeErr = fmt.Errorf("resampler: %w", io.ErrClosedPipe)
	}
	s.rs = nil
	return nil
}
