package resampler

// Format describes a PCM stream for the streaming converter. Samples are
// always 16-bit signed little-endian.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 16000, 24000, 48000).
	SampleRate int

	// Stereo indicates interleaved stereo if true, mono if false.
	Stereo bool
}

func (f Format) channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// frameBytes returns the byte width of one frame (all channels of one
// sample instant).
func (f Format) frameBytes() int {
	return f.channels() * 2
}
