package openairt

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/auralis-ai/auralis/pkg/audio/pcm"
	"github.com/auralis-ai/auralis/pkg/audio/resampler"
	"github.com/auralis-ai/auralis/pkg/observe"
	"github.com/auralis-ai/auralis/pkg/realtime"
)

const (
	// DefaultBaseURL is the realtime WebSocket endpoint.
	DefaultBaseURL = "wss://api.openai.com/v1/realtime"

	// DefaultModel is the realtime model used when none is configured.
	DefaultModel = "gpt-4o-realtime-preview"

	// DefaultVoice is the voice used when none is configured.
	DefaultVoice = "alloy"

	// ProviderName identifies this adapter.
	ProviderName = "openai"

	// nativeRate is the backend's audio rate in both directions.
	nativeRate = 24000
)

const eventBuffer = 100

// Client is an OpenAI Realtime provider. It owns one socket, one state
// machine, and one receive loop at a time.
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
	apiKey       string
	organization string
	baseURL      string
	model        string
	voice        string
	metrics      *observe.Metrics
}

// socket pairs a connection with its per-socket state. readyCh is closed
// by the receive loop when session.created arrives, or on a read failure
// before it, with readyErr set; Connect waits on it before sending
// session.update.
type socket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closing   atomic.Bool
	readyCh   chan struct{}
	readyOnce sync.Once

	// readyErr is written once, before readyCh closes.
	readyErr error

	idMu      sync.Mutex
	sessionID string
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

// WithVoice sets the output voice.
func WithVoice(voice string) Option {
	return func(c *clientConfig) { c.voice = voice }
}

// WithOrganization sets the organization ID for API requests.
func WithOrganization(orgID string) Option {
	return func(c *clientConfig) { c.organization = orgID }
}

// WithMetrics replaces the default metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *clientConfig) { c.metrics = m }
}

// NewClient creates an OpenAI Realtime client. An empty apiKey is
// accepted here and rejected by Connect, which fails fast to StateError.
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

// Connect dials the endpoint, starts the receive loop, waits for
// session.created, then sends session.update. The loop must be listening
// before session.update goes out; the server's first event would
// otherwise be lost.
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

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")
	if c.cfg.organization != "" {
		headers.Set("OpenAI-Organization", c.cfg.organization)
	}

	dialCtx, cancel := context.WithTimeout(ctx, realtime.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: realtime.ConnectTimeout}
	url := fmt.Sprintf("%s?model=%s", c.cfg.baseURL, c.cfg.model)
	conn, resp, err := dialer.DialContext(dialCtx, url, headers)
	if err != nil {
		c.setState(realtime.StateError)
		if resp != nil {
			return &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return fmt.Errorf("openairt: failed to connect: %w", err)
	}

	sock := &socket{conn: conn, readyCh: make(chan struct{})}
	c.sock.Store(sock)
	go c.readLoop(sock)

	select {
	case <-sock.readyCh:
		if err := sock.readyErr; err != nil {
			c.teardownLocked()
			c.setState(realtime.StateError)
			return &Error{Code: "setup_failed", Message: err.Error()}
		}
	case <-dialCtx.Done():
		c.teardownLocked()
		c.setState(realtime.StateError)
		return &Error{Code: "setup_timeout", Message: "session.created not received"}
	}

	if err := c.writeEvent(sock, map[string]any{
		"event_id": generateEventID(),
		"type":     eventTypeSessionUpdate,
		"session":  c.sessionConfig(agent),
	}); err != nil {
		c.teardownLocked()
		c.setState(realtime.StateError)
		return &Error{Code: "setup_failed", Message: err.Error()}
	}

	c.setState(realtime.StateConnected)
	return nil
}

func (c *Client) sessionConfig(agent *realtime.Agent) *sessionConfig {
	cfg := &sessionConfig{
		Modalities:        []string{"audio", "text"},
		Voice:             c.cfg.voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection: &turnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
		},
	}
	if agent != nil {
		cfg.Instructions = agent.Instructions
	}
	return cfg
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

// SendAudio streams one PCM16 mono 16 kHz capture frame, resampled to
// the backend's native 24 kHz.
func (c *Client) SendAudio(pcmData []byte) error {
	native := resampler.Resample(pcmData, pcm.CaptureRate, nativeRate)
	return c.send(map[string]any{
		"event_id": generateEventID(),
		"type":     eventTypeInputAudioBufferAppend,
		"audio":    base64.StdEncoding.EncodeToString(native),
	})
}

// SendImage is unsupported on this profile.
func (c *Client) SendImage(data []byte, mimeType string) error {
	return realtime.ErrVideoUnsupported
}

// SendText sends a user text turn and requests a model response.
func (c *Client) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.send(userItem("user", text)); err != nil {
		return err
	}
	return c.send(map[string]any{
		"event_id": generateEventID(),
		"type":     eventTypeResponseCreate,
	})
}

// SendContextualUpdate injects background text as a system item without
// requesting a model turn.
func (c *Client) SendContextualUpdate(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.send(userItem("system", text))
}

func userItem(role, text string) map[string]any {
	return map[string]any{
		"event_id": generateEventID(),
		"type":     eventTypeConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": role,
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	}
}

// send writes one event. No-op when not connected. A write failure is
// surfaced as a non-fatal EventError; state transitions are left to the
// receive loop and Disconnect so two paths never race to set StateError.
func (c *Client) send(event map[string]any) error {
	if c.currentState() != realtime.StateConnected {
		return nil
	}
	sock := c.sock.Load()
	if sock == nil {
		return nil
	}
	if err := c.writeEvent(sock, event); err != nil {
		err = fmt.Errorf("openairt: write: %w", err)
		c.emit(&realtime.Event{Type: realtime.EventError, Err: err})
		return err
	}
	return nil
}

func (c *Client) writeEvent(sock *socket, event map[string]any) error {
	sock.writeMu.Lock()
	defer sock.writeMu.Unlock()
	return sock.conn.WriteJSON(event)
}

// readLoop reads events until the socket closes or a read fails. It runs
// once per socket; a socket failure other than teardown surfaces as
// EventConnectionLost.
func (c *Client) readLoop(sock *socket) {
	for {
		_, data, err := sock.conn.ReadMessage()
		if err != nil {
			if sock.closing.Load() || c.closed.Load() {
				return
			}
			err = fmt.Errorf("openairt: read: %w", err)
			c.sock.CompareAndSwap(sock, nil)
			_ = sock.conn.Close()

			// A failure before session.created unblocks Connect, which
			// owns the error report during setup.
			setupFailed := false
			sock.readyOnce.Do(func() {
				sock.readyErr = err
				setupFailed = true
				close(sock.readyCh)
			})
			if setupFailed {
				return
			}

			slog.Warn("receive loop ended", "provider", ProviderName, "error", err)
			c.setState(realtime.StateError)
			c.emit(&realtime.Event{Type: realtime.EventConnectionLost, Err: err})
			return
		}

		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			msg := string(data)
			if len(msg) > 1000 {
				msg = msg[:1000] + "..."
			}
			slog.Debug("received event", "provider", ProviderName, "len", len(data), "content", msg)
		}

		ev, outcome := parseServerEvent(data)
		c.cfg.metrics.FramesReceived.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("provider", ProviderName),
			attribute.String("kind", outcome.String()),
		))
		switch outcome {
		case frameMalformed:
			// Dropped; a bad frame never terminates the loop.
			slog.Warn("dropping malformed event", "provider", ProviderName, "len", len(data))
			continue
		case frameUnknown:
			slog.Debug("ignoring unknown event", "provider", ProviderName, "type", ev.Type)
			continue
		}

		if ev.Type == eventTypeSessionCreated {
			if ev.Session != nil {
				sock.idMu.Lock()
				sock.sessionID = ev.Session.ID
				sock.idMu.Unlock()
			}
			sock.readyOnce.Do(func() { close(sock.readyCh) })
			continue
		}

		for _, out := range dispatch(ev) {
			c.emit(out)
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

// SupportsVideo reports false: this profile has no video channel.
func (c *Client) SupportsVideo() bool { return false }

// Name returns "openai".
func (c *Client) Name() string { return ProviderName }

// SessionID returns the server-assigned session ID, or "" before
// session.created.
func (c *Client) SessionID() string {
	if sock := c.sock.Load(); sock != nil {
		sock.idMu.Lock()
		defer sock.idMu.Unlock()
		return sock.sessionID
	}
	return ""
}

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

// generateEventID generates a unique client event ID.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

var _ realtime.Provider = (*Client)(nil)
