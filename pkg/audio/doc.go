// Package audio is the umbrella for the audio pipeline sub-packages:
//
//   - pcm: PCM16 format constants and size arithmetic for the standard
//     16 kHz capture and 24 kHz playback boundaries
//   - resampler: sample-rate conversion, channel mixing, and float to
//     int16 conversion for adapters whose native rates differ from the
//     standard boundaries
package audio
