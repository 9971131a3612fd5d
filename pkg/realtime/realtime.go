package realtime

import (
	"context"
	"iter"
	"time"
)

// ConnectionState is the lifecycle state of a provider connection.
// Transitions are the only way the state changes; there is no direct
// Disconnected → Connected path.
type ConnectionState int32

const (
	// StateDisconnected is the initial and terminal state.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a socket dial or setup exchange is in flight.
	StateConnecting
	// StateConnected means the setup frame has been accepted and the
	// receive loop is running.
	StateConnected
	// StateDisconnecting means a graceful teardown is in progress.
	StateDisconnecting
	// StateReconnecting means a reconnector is retrying after a dropped
	// receive loop.
	StateReconnecting
	// StateError means the connection failed; recovery requires a new
	// explicit Connect.
	StateError
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Agent is the immutable persona for a session. It is supplied once per
// Connect call and retained only so a reconnector can replay it.
type Agent struct {
	// ID uniquely identifies the agent.
	ID string

	// Name is the display name.
	Name string

	// Instructions is the system-instruction text sent in the provider's
	// setup frame.
	Instructions string
}

const (
	// ConnectTimeout is the hard ceiling on socket dial plus setup.
	ConnectTimeout = 30 * time.Second

	// CloseGrace is how long a graceful close handshake may take before
	// the socket is force-aborted.
	CloseGrace = 2 * time.Second
)

// Provider is the conversation facade consumed by the application layer.
//
// Implementations must be safe for concurrent use. Connect and Disconnect
// serialize against each other; Send methods may be called from any
// goroutine and are no-ops when the provider is not connected.
type Provider interface {
	// Connect opens the socket, performs the provider's setup exchange,
	// and starts the receive loop. It is a no-op if already connected or
	// connecting. Fails fast if no credential is configured.
	Connect(ctx context.Context, agent *Agent) error

	// Disconnect tears the connection down gracefully. Idempotent.
	Disconnect() error

	// SendAudio streams one PCM16 mono 16 kHz capture frame. No-op when
	// not connected; a write failure surfaces as a non-fatal EventError
	// and does not change connection state.
	SendAudio(pcm []byte) error

	// SendImage streams one still frame (e.g. a screen capture) with its
	// MIME type. Providers without video support return
	// ErrVideoUnsupported.
	SendImage(data []byte, mimeType string) error

	// SendText sends a user text turn and requests a model response.
	SendText(ctx context.Context, text string) error

	// SendContextualUpdate injects background text into the conversation
	// without requesting a model turn.
	SendContextualUpdate(ctx context.Context, text string) error

	// Events iterates over provider events. Iteration ends when the
	// provider is closed.
	Events() iter.Seq[*Event]

	// State returns the current connection state.
	State() ConnectionState

	// IsConnected reports whether State is StateConnected.
	IsConnected() bool

	// SupportsVideo reports whether SendImage is usable.
	SupportsVideo() bool

	// Name identifies the provider ("gemini", "openai", ...).
	Name() string

	// Close disposes the provider: disconnects, stops event delivery,
	// and releases resources. Safe to call multiple times.
	Close() error
}
