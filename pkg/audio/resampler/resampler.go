// Package resampler converts PCM audio between the formats used at
// provider boundaries.
//
// The package-level functions are pure, stateless transforms over 16-bit
// signed little-endian sample buffers. Adapters whose backend runs at a
// non-standard rate call [Resample] on their own send/receive path before
// audio crosses the provider facade. [Stream] provides a higher-quality
// streaming conversion for playback devices that cannot consume 24 kHz
// directly.
package resampler

import "math"

// Resample converts pcm from fromRate to toRate by linear interpolation.
//
// The input must be 16-bit signed little-endian mono samples. If the rates
// match, or the input holds fewer than one sample, the input is returned
// unchanged. The output holds round(inputSamples * toRate / fromRate)
// samples. Interpolated values are clamped to the 16-bit signed range.
func Resample(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || len(pcm) < 2 {
		return pcm
	}

	inSamples := len(pcm) / 2
	outSamples := int(math.Round(float64(inSamples) * float64(toRate) / float64(fromRate)))
	if outSamples < 1 {
		outSamples = 1
	}

	ratio := float64(toRate) / float64(fromRate)
	out := make([]byte, outSamples*2)

	for i := range outSamples {
		pos := float64(i) / ratio
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo >= inSamples {
			lo = inSamples - 1
		}
		if hi >= inSamples {
			hi = inSamples - 1
		}

		frac := pos - float64(lo)
		a := float64(sampleAt(pcm, lo))
		b := float64(sampleAt(pcm, hi))
		v := a + (b-a)*frac

		putSample(out, i, clampInt16(v))
	}

	return out
}

// StereoToMono downmixes interleaved stereo 16-bit samples by averaging
// the left and right channel of each frame. Trailing bytes that do not
// form a complete stereo frame are dropped.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int16(pcm[i*4]) | int16(pcm[i*4+1])<<8
		r := int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8
		m := int16((int32(l) + int32(r)) / 2)
		out[i*2] = byte(m)
		out[i*2+1] = byte(m >> 8)
	}
	return out
}

// MonoToStereo upmixes mono 16-bit samples by duplicating each sample
// into both channels.
func MonoToStereo(pcm []byte) []byte {
	samples := len(pcm) / 2
	out := make([]byte, samples*4)
	for i := range samples {
		out[i*4], out[i*4+1] = pcm[i*2], pcm[i*2+1]
		out[i*4+2], out[i*4+3] = pcm[i*2], pcm[i*2+1]
	}
	return out
}

// Float32ToInt16 converts 32-bit float samples in [-1, 1] to 16-bit
// signed little-endian PCM, scaling by 32767 so full scale is symmetric
// at ±32767. Values outside the range are clamped to full scale.
// Trailing bytes that do not form a complete float sample are dropped.
func Float32ToInt16(pcm []byte) []byte {
	samples := len(pcm) / 4
	out := make([]byte, samples*2)
	for i := range samples {
		bits := uint32(pcm[i*4]) | uint32(pcm[i*4+1])<<8 |
			uint32(pcm[i*4+2])<<16 | uint32(pcm[i*4+3])<<24
		f := math.Float32frombits(bits)

		v := int16(0)
		switch {
		case f >= 1.0:
			v = math.MaxInt16
		case f <= -1.0:
			v = -math.MaxInt16
		default:
			v = int16(f * 32767)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, v int16) {
	pcm[i*2] = byte(v)
	pcm[i*2+1] = byte(v >> 8)
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
