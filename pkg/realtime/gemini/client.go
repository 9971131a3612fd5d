package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/auralis-ai/auralis/pkg/audio/pcm"
	"github.com/auralis-ai/auralis/pkg/observe"
	"github.com/auralis-ai/auralis/pkg/realtime"
)

const (
	// DefaultBaseURL is the Gemini Live WebSocket endpoint.
	DefaultBaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the realtime model used when none is configured.
	DefaultModel = "models/gemini-2.0-flash-live-001"

	// DefaultVoice is the prebuilt voice used when none is configured.
	DefaultVoice = "Puck"

	// ProviderName identifies this adapter.
	ProviderName = "gemini"
)

// eventBuffer is the capacity of the event channel. A consumer that
// stops draining for longer than this stalls the receive loop.
const eventBuffer = 100

// Client is a Gemini Live realtime provider. It owns one socket, one
// state machine, and one receive loop at a time.
type Client struct {
	cfg clientConfig

	// mu serializes Connect, Disconnect, and teardown. The receive loop
	// and Send methods never hold it.
	mu    sync.Mutex
	agent *realtime.Agent

	state atomic.Int32
	sock  atomic.Pointer[socket]

	events    chan *realtime.Event
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

type clientConfig struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	metrics *observe.Metrics
}

// socket pairs a connection with its teardown flag. Sends read the
// current socket without the connect lock; a stale or nil reference is a
// no-op, never a crash.
type socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closing atomic.Bool
}

// Option configures the Client.
type Option func(*clientConfig)

// WithBaseURL overrides the WebSocket endpoint.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithModel sets the realtime model.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithVoice sets the prebuilt voice name.
func WithVoice(voice string) Option {
	return func(c *clientConfig) { c.voice = voice }
}

// WithMetrics replaces the default metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *clientConfig) { c.metrics = m }
}

// NewClient creates a Gemini Live client. An empty apiKey is accepted
// here and rejected by Connect, which fails fast to StateError.
func NewClient(apiKey string, opts ...Option) *Client {
	cfg := clientConfig{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		voice:   DefaultVoice,
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		cfg:     cfg,
		events:  make(chan *realtime.Event, eventBuffer),
		closeCh: make(chan struct{}),
	}
}

// Connect dials the endpoint, sends the setup frame, and starts the
// receive loop. The setup frame must be written before the client is
// marked connected; Gemini rejects any other frame first.
func (c *Client) Connect(ctx context.Context, agent *realtime.Agent) error {
	if c.closed.Load() {
		return realtime.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.currentState() {
	case realtime.StateConnected, realtime.StateConnecting:
		return nil
	}

	// A new attempt first releases any prior socket.
	c.teardownLocked()

	if c.cfg.apiKey == "" {
		c.setState(realtime.StateError)
		return realtime.ErrNoCredential
	}

	c.setState(realtime.StateConnecting)
	c.agent = agent

	dialCtx, cancel := context.WithTimeout(ctx, realtime.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: realtime.ConnectTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, c.cfg.baseURL+"?key="+c.cfg.apiKey, nil)
	if err != nil {
		c.setState(realtime.StateError)
		if resp != nil {
			return &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return fmt.Errorf("gemini: failed to connect: %w", err)
	}

	if err := conn.WriteJSON(c.setupFrame(agent)); err != nil {
		_ = conn.Close()
		c.setState(realtime.StateError)
		return &Error{Code: "setup_failed", Message: err.Error()}
	}

	sock := &socket{conn: conn}
	c.sock.Store(sock)
	go c.readLoop(sock)

	c.setState(realtime.StateConnected)
	return nil
}

func (c *Client) setupFrame(agent *realtime.Agent) *setupFrame {
	frame := &setupFrame{
		Setup: setupPayload{
			Model: c.cfg.model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: c.cfg.voice},
					},
				},
			},
		},
	}
	if agent != nil && agent.Instructions != "" {
		frame.Setup.SystemInstruction = &content{
			Parts: []part{{Text: agent.Instructions}},
		}
	}
	return frame
}

// Disconnect tears the connection down. Idempotent; a no-op when already
// disconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.currentState() {
	case realtime.StateDisconnected, realtime.StateDisconnecting:
		return nil
	}

	c.setState(realtime.StateDisconnecting)
	c.teardownLocked()
	c.setState(realtime.StateDisconnected)
	return nil
}

// teardownLocked releases the current socket. The swap-and-nil keeps a
// concurrent Send from double-closing. Resources are released even when
// the graceful close fails.
func (c *Client) teardownLocked() {
	sock := c.sock.Swap(nil)
	if sock == nil {
		return
	}
	sock.closing.Store(true)

	sock.writeMu.Lock()
	_ = sock.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(realtime.CloseGrace),
	)
	sock.writeMu.Unlock()

	_ = sock.conn.Close()
}

// Close disposes the client. Safe to call multiple times.
func (c *Client) Close() error {
	c.closed.Store(true)
	err := c.Disconnect()
	c.closeOnce.Do(func() { close(c.closeCh) })
	return err
}

// SendAudio streams one PCM16 mono 16 kHz capture frame.
func (c *Client) SendAudio(pcmData []byte) error {
	return c.sendMedia(pcm.CaptureFormat.MIMEType(), pcmData)
}

// SendImage streams one still frame with its MIME type.
func (c *Client) SendImage(data []byte, mimeType string) error {
	return c.sendMedia(mimeType, data)
}

func (c *Client) sendMedia(mimeType string, data []byte) error {
	return c.send(&realtimeInputFrame{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{
				MIMEType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		},
	})
}

// SendText sends a user turn and requests a model response.
func (c *Client) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.send(&clientContentFrame{
		ClientContent: clientContent{
			Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
			TurnComplete: true,
		},
	})
}

// SendContextualUpdate injects background text without requesting a
// model turn.
func (c *Client) SendContextualUpdate(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.send(&clientContentFrame{
		ClientContent: clientContent{
			Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
			TurnComplete: false,
		},
	})
}

// send writes one frame. No-op when not connected. A write failure is
// surfaced as a non-fatal EventError; state transitions are left to the
// receive loop and Disconnect so two paths never race to set StateError.
func (c *Client) send(frame any) error {
	if c.currentState() != realtime.StateConnected {
		return nil
	}
	sock := c.sock.Load()
	if sock == nil {
		return nil
	}

	sock.writeMu.Lock()
	err := sock.conn.WriteJSON(frame)
	sock.writeMu.Unlock()
	if err != nil {
		err = fmt.Errorf("gemini: write: %w", err)
		c.emit(&realtime.Event{Type: realtime.EventError, Err: err})
		return err
	}
	return nil
}

// readLoop reads frames until the socket closes or a read fails. It runs
// once per socket; a socket failure other than teardown surfaces as
// EventConnectionLost.
func (c *Client) readLoop(sock *socket) {
	for {
		_, data, err := sock.conn.ReadMessage()
		if err != nil {
			if sock.closing.Load() || c.closed.Load() {
				return
			}
			err = fmt.Errorf("gemini: read: %w", err)
			slog.Warn("receive loop ended", "provider", ProviderName, "error", err)
			c.sock.CompareAndSwap(sock, nil)
			_ = sock.conn.Close()
			c.setState(realtime.StateError)
			c.emit(&realtime.Event{Type: realtime.EventConnectionLost, Err: err})
			return
		}

		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			msg := string(data)
			if len(msg) > 1000 {
				msg = msg[:1000] + "..."
			}
			slog.Debug("received frame", "provider", ProviderName, "len", len(data), "content", msg)
		}

		events, outcome := parseServerFrame(data)
		c.cfg.metrics.FramesReceived.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("provider", ProviderName),
			attribute.String("kind", outcome.String()),
		))
		switch outcome {
		case frameMalformed:
			// Dropped; a bad frame never terminates the loop.
			slog.Warn("dropping malformed frame", "provider", ProviderName, "len", len(data))
			continue
		case frameUnknown:
			slog.Debug("ignoring unknown frame", "provider", ProviderName, "len", len(data))
			continue
		}
		for _, ev := range events {
			c.emit(ev)
		}
	}
}

// Events iterates over provider events until the client is closed.
func (c *Client) Events() iter.Seq[*realtime.Event] {
	return func(yield func(*realtime.Event) bool) {
		for {
			select {
			case <-c.closeCh:
				return
			case ev := <-c.events:
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// State returns the current connection state.
func (c *Client) State() realtime.ConnectionState {
	return c.currentState()
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.currentState() == realtime.StateConnected
}

// SupportsVideo reports true: Gemini accepts image media chunks.
func (c *Client) SupportsVideo() bool { return true }

// Name returns "gemini".
func (c *Client) Name() string { return ProviderName }

func (c *Client) currentState() realtime.ConnectionState {
	return realtime.ConnectionState(c.state.Load())
}

func (c *Client) setState(s realtime.ConnectionState) {
	if realtime.ConnectionState(c.state.Swap(int32(s))) == s {
		return
	}
	c.emit(&realtime.Event{Type: realtime.EventStateChanged, State: s})
}

func (c *Client) emit(ev *realtime.Event) {
	select {
	case c.events <- ev:
	case <-c.closeCh:
	}
}

var _ realtime.Provider = (*Client)(nil)
