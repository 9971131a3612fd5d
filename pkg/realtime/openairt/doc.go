// Package openairt implements the realtime.Provider contract over the
// OpenAI Realtime wire protocol.
//
// The protocol is typed JSON events over a single WebSocket, dispatched
// by a "type" field. Connection setup is ordered differently from the
// Gemini profile: the server announces session.created first, so the
// receive loop must be running before the client can safely send its
// session.update configuration.
//
// The backend's native audio rate is 24 kHz in both directions, so this
// adapter resamples outbound capture audio from the standard 16 kHz;
// inbound audio deltas already match the standard 24 kHz playback rate.
// Video input is not part of this profile.
package openairt
