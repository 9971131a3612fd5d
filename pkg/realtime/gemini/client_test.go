package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/auralis-ai/auralis/pkg/observe"
	"github.com/auralis-ai/auralis/pkg/realtime"
)

var upgrader = websocket.Upgrader{}

// newTestServer starts a WebSocket server that runs handler for each
// connection and returns its ws:// URL.
func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drainEvents pumps the client's events into a test channel.
func drainEvents(c *Client) <-chan *realtime.Event {
	ch := make(chan *realtime.Event, 64)
	go func() {
		defer close(ch)
		for ev := range c.Events() {
			ch <- ev
		}
	}()
	return ch
}

func waitEvent(t *testing.T, ch <-chan *realtime.Event, want realtime.EventType) *realtime.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed waiting for %v", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %v", want)
		}
	}
}

func TestConnect_SendsSetupFirst(t *testing.T) {
	setupCh := make(chan setupFrame, 1)
	url := newTestServer(t, func(conn *websocket.Conn) {
		var frame setupFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		setupCh <- frame
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		// Hold the socket open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url), WithModel("models/test"), WithVoice("Kore"))
	defer c.Close()
	events := drainEvents(c)

	agent := &realtime.Agent{ID: "a1", Name: "Navigator", Instructions: "be helpful"}
	if err := c.Connect(context.Background(), agent); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("IsConnected = false after Connect")
	}

	frame := <-setupCh
	if frame.Setup.Model != "models/test" {
		t.Errorf("setup model = %q, want models/test", frame.Setup.Model)
	}
	if frame.Setup.SystemInstruction == nil || frame.Setup.SystemInstruction.Parts[0].Text != "be helpful" {
		t.Errorf("setup system instruction missing or wrong: %+v", frame.Setup.SystemInstruction)
	}
	if got := frame.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Kore" {
		t.Errorf("setup voice = %q, want Kore", got)
	}

	ev := waitEvent(t, events, realtime.EventStateChanged)
	if ev.State != realtime.StateConnecting {
		t.Errorf("first state change = %v, want connecting", ev.State)
	}
}

func TestConnect_NoCredential(t *testing.T) {
	c := NewClient("")
	defer c.Close()

	err := c.Connect(context.Background(), &realtime.Agent{})
	if !errors.Is(err, realtime.ErrNoCredential) {
		t.Fatalf("Connect error = %v, want ErrNoCredential", err)
	}
	if c.State() != realtime.StateError {
		t.Errorf("State = %v, want error", c.State())
	}
}

func TestConnect_NoOpWhenConnected(t *testing.T) {
	dials := make(chan struct{}, 4)
	url := newTestServer(t, func(conn *websocket.Conn) {
		dials <- struct{}{}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url))
	defer c.Close()

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("second Connect: %v", err)
	}

	<-dials
	select {
	case <-dials:
		t.Fatal("second Connect dialed a new socket")
	case <-time.After(200 * time.Millisecond):
	}
	if c.State() != realtime.StateConnected {
		t.Errorf("State = %v, want connected", c.State())
	}
}

func TestReceive_ServerContentDispatch(t *testing.T) {
	audio := []byte{1, 2, 3, 4, 5, 6}
	url := newTestServer(t, func(conn *websocket.Conn) {
		var setup setupFrame
		_ = conn.ReadJSON(&setup)

		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []any{
						map[string]any{"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(audio),
						}},
						map[string]any{"text": "hello there"},
					},
				},
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{"interrupted": true},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url))
	defer c.Close()
	events := drainEvents(c)

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ev := waitEvent(t, events, realtime.EventAudio)
	if string(ev.Audio) != string(audio) {
		t.Errorf("audio = %v, want %v", ev.Audio, audio)
	}
	ev = waitEvent(t, events, realtime.EventText)
	if ev.Text != "hello there" {
		t.Errorf("text = %q, want %q", ev.Text, "hello there")
	}
	waitEvent(t, events, realtime.EventInterrupted)
}

func TestReceive_UnknownAndMalformedFramesIgnored(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		var setup setupFrame
		_ = conn.ReadJSON(&setup)

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"someFutureThing":{"x":1}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json at all`))
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []any{map[string]any{"text": "still alive"}},
				},
			},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url))
	defer c.Close()
	events := drainEvents(c)

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The loop must survive both bad frames and still deliver the next
	// well-formed one.
	ev := waitEvent(t, events, realtime.EventText)
	if ev.Text != "still alive" {
		t.Errorf("text = %q, want %q", ev.Text, "still alive")
	}
}

func TestSendAudio_EncodesMediaChunk(t *testing.T) {
	frames := make(chan realtimeInputFrame, 1)
	url := newTestServer(t, func(conn *websocket.Conn) {
		var setup setupFrame
		_ = conn.ReadJSON(&setup)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame realtimeInputFrame
			if json.Unmarshal(data, &frame) == nil && len(frame.RealtimeInput.MediaChunks) > 0 {
				frames <- frame
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url))
	defer c.Close()

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	audio := []byte{10, 20, 30, 40}
	if err := c.SendAudio(audio); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case frame := <-frames:
		chunk := frame.RealtimeInput.MediaChunks[0]
		if chunk.MIMEType != "audio/pcm;rate=16000" {
			t.Errorf("mime = %q, want audio/pcm;rate=16000", chunk.MIMEType)
		}
		if chunk.Data != base64.StdEncoding.EncodeToString(audio) {
			t.Errorf("data = %q not base64 of input", chunk.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for media chunk")
	}
}

func TestSend_NoOpWhenDisconnected(t *testing.T) {
	c := NewClient("test-key")
	defer c.Close()

	if err := c.SendAudio([]byte{1, 2}); err != nil {
		t.Errorf("SendAudio while disconnected = %v, want nil no-op", err)
	}
	if err := c.SendText(context.Background(), "hi"); err != nil {
		t.Errorf("SendText while disconnected = %v, want nil no-op", err)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		var setup setupFrame
		_ = conn.ReadJSON(&setup)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url))
	defer c.Close()

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect while disconnected: %v", err)
	}

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if c.State() != realtime.StateDisconnected {
		t.Errorf("State = %v, want disconnected", c.State())
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}

func TestReceive_SocketFailureSurfacesConnectionLost(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		var setup setupFrame
		_ = conn.ReadJSON(&setup)
		// Drop the socket without a close handshake.
		_ = conn.Close()
	})

	c := NewClient("test-key", WithBaseURL(url))
	defer c.Close()
	events := drainEvents(c)

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ev := waitEvent(t, events, realtime.EventConnectionLost)
	if ev.Err == nil {
		t.Error("EventConnectionLost without error")
	}
	if c.State() != realtime.StateError {
		t.Errorf("State = %v, want error", c.State())
	}
}

func TestReceive_CountsInboundFrames(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	url := newTestServer(t, func(conn *websocket.Conn) {
		var setup setupFrame
		_ = conn.ReadJSON(&setup)

		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []any{map[string]any{"text": "first"}},
				},
			},
		})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"someFutureThing":{"x":1}}`))
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []any{map[string]any{"text": "second"}},
				},
			},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient("test-key", WithBaseURL(url), WithMetrics(metrics))
	defer c.Close()
	events := drainEvents(c)

	if err := c.Connect(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, events, realtime.EventText)
	waitEvent(t, events, realtime.EventText)

	// Unknown frames count too; they are still inbound traffic.
	if got := framesReceived(t, reader); got != 3 {
		t.Errorf("frames received = %d, want 3", got)
	}
}

func framesReceived(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "auralis.frames.received" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("frames.received data type = %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}
