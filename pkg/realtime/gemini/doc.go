// Package gemini implements the realtime.Provider contract over the
// Gemini Live wire protocol.
//
// The protocol is JSON frames over a single WebSocket. The client sends
// one setup frame (model, generation config, system instruction) before
// anything else; afterwards capture audio and screen frames travel as
// realtime_input media chunks and text turns as client_content. The
// server streams serverContent frames carrying model audio (inline PCM16
// at 24 kHz), text parts, interruption markers, and turn boundaries.
//
// Gemini's native rates match the standard capture/playback rates
// (16 kHz in, 24 kHz out), so this adapter never resamples.
package gemini
