package realtime

import "errors"

var (
	// ErrNoCredential is returned by Connect when no API key is
	// configured. The provider transitions to StateError; retrying
	// without reconfiguration will fail the same way.
	ErrNoCredential = errors.New("realtime: no credential configured")

	// ErrClosed is returned by operations on a disposed provider.
	ErrClosed = errors.New("realtime: provider closed")

	// ErrVideoUnsupported is returned by SendImage on providers without
	// a video channel.
	ErrVideoUnsupported = errors.New("realtime: provider does not support video input")

	// ErrReconnectFailed is the terminal error surfaced after the
	// reconnector exhausts its retry schedule.
	ErrReconnectFailed = errors.New("realtime: failed to reconnect after retries")
)
