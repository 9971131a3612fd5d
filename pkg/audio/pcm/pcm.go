// Package pcm defines the PCM audio formats used across Auralis.
//
// All audio crossing a provider boundary is 16-bit signed little-endian
// PCM, mono. Capture-bound audio is 16 kHz ([CaptureFormat]); playback-bound
// audio is 24 kHz ([PlaybackFormat]). Adapters whose backend uses a
// different native rate convert at their own boundary (see the resampler
// package); the provider facade never resamples.
package pcm

import "time"

// Format represents a PCM audio format configuration.
type Format int

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1.
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1.
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1.
	L16Mono48K
)

const (
	// CaptureFormat is the standard format for microphone capture.
	CaptureFormat = L16Mono16K
	// PlaybackFormat is the standard format for model audio playback.
	PlaybackFormat = L16Mono24K

	// CaptureRate is the standard capture sample rate in Hz.
	CaptureRate = 16000
	// PlaybackRate is the standard playback sample rate in Hz.
	PlaybackRate = 24000
	// BitsPerSample is the sample bit depth.
	BitsPerSample = 16
	// Channels is the channel count.
	Channels = 1
)

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid format")
}

// MIMEType returns the realtime-input MIME type for this format,
// e.g. "audio/pcm;rate=16000".
func (f Format) MIMEType() string {
	switch f {
	case L16Mono16K:
		return "audio/pcm;rate=16000"
	case L16Mono24K:
		return "audio/pcm;rate=24000"
	case L16Mono48K:
		return "audio/pcm;rate=48000"
	}
	panic("pcm: invalid format")
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int) int {
	return bytes * 8 / Channels / BitsPerSample
}

// Bytes returns the number of bytes occupied by the given number of samples.
func (f Format) Bytes(samples int) int {
	return samples * Channels * BitsPerSample / 8
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int {
	return int(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.Bytes(f.SamplesInDuration(d))
}

// Duration returns the playout duration of the given number of bytes.
func (f Format) Duration(bytes int) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of audio data in this format.
func (f Format) BytesRate() int {
	return f.SampleRate() * Channels * BitsPerSample / 8
}

// Silence returns a buffer of silence covering the given duration.
func (f Format) Silence(d time.Duration) []byte {
	return make([]byte, f.BytesInDuration(d))
}
