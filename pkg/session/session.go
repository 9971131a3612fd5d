// Package session is the application-layer consumer of the realtime
// core: it owns one provider, pumps its events into playback and
// callbacks, gates outbound capture on echo suppression, and prefixes
// outbound chat with a budgeted context envelope.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/auralis-ai/auralis/pkg/envelope"
	"github.com/auralis-ai/auralis/pkg/observe"
	"github.com/auralis-ai/auralis/pkg/realtime"
)

// errorDebounce suppresses identical error text arriving within this
// window, to keep a flapping connection from spamming the user.
const errorDebounce = 3 * time.Second

// defaultChatBudget is the token budget for chat envelopes when the
// config leaves it zero.
const defaultChatBudget = 800

// now is replaceable in tests.
var now = time.Now

// AudioService is the platform capture/playback collaborator. Capture
// frames are PCM16 mono at 16 kHz; playback buffers are PCM16 mono at
// 24 kHz. The frame callback runs on the platform's capture thread and
// must not block.
type AudioService interface {
	StartRecording(onFrame func(pcm []byte)) error
	StopRecording() error
	PlayAudio(pcm []byte) error
	IsPlaying() bool
}

// VideoCapturer supplies screen frames for providers with a video
// channel.
type VideoCapturer interface {
	CaptureFrame(ctx context.Context) (data []byte, mimeType string, err error)
}

// History supplies the budgeting inputs for outbound chat. The session
// reads a fresh snapshot before every send.
type History interface {
	Snapshot() envelope.Inputs
}

// Config configures a Session. Provider is required; everything else is
// optional.
type Config struct {
	Provider realtime.Provider
	Audio    AudioService
	Video    VideoCapturer
	History  History

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// ChatBudget is the envelope token budget for SendChat. Defaults
	// to defaultChatBudget; clamped by the envelope engine either way.
	ChatBudget int

	// Callbacks fire on the session's event pump goroutine and must
	// not block.
	OnText        func(text string)
	OnState       func(state realtime.ConnectionState)
	OnInterrupted func()
	OnError       func(err error)
}

// Session drives one live conversation. Create with New, start with
// Start, and release with Stop. All methods are safe for concurrent
// use.
type Session struct {
	cfg     Config
	metrics *observe.Metrics

	mu        sync.Mutex
	started   bool
	lastErr   string
	lastErrAt time.Time

	// pumpOnce guards the event pump. The provider's event stream spans
	// connect cycles, so one pump serves the whole session lifetime; a
	// restart must not spawn a second one.
	pumpOnce sync.Once
	done     chan struct{}
}

// New validates the config and creates a stopped session.
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, errors.New("session: Config.Provider is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.ChatBudget <= 0 {
		cfg.ChatBudget = defaultChatBudget
	}
	return &Session{cfg: cfg, metrics: cfg.Metrics, done: make(chan struct{})}, nil
}

// Start connects the provider, starts the event pump, and begins audio
// capture when an AudioService is configured.
func (s *Session) Start(ctx context.Context, agent *realtime.Agent) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	start := now()
	if err := s.cfg.Provider.Connect(ctx, agent); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("session: connect: %w", err)
	}
	s.metrics.ConnectDuration.Record(ctx, now().Sub(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", s.cfg.Provider.Name())))
	s.metrics.ActiveSessions.Add(ctx, 1)

	s.pumpOnce.Do(func() { go s.pump() })

	if s.cfg.Audio != nil {
		if err := s.cfg.Audio.StartRecording(s.HandleCaptureFrame); err != nil {
			s.Stop()
			return fmt.Errorf("session: start recording: %w", err)
		}
	}
	return nil
}

// HandleCaptureFrame forwards one captured PCM frame to the provider,
// dropping it while playback is active so the model does not hear
// itself. Safe to call from the capture callback.
func (s *Session) HandleCaptureFrame(pcm []byte) {
	if s.cfg.Audio != nil && s.cfg.Audio.IsPlaying() {
		return
	}
	if err := s.cfg.Provider.SendAudio(pcm); err != nil {
		s.metrics.RecordSendError(context.Background(), s.cfg.Provider.Name(), "audio")
		return
	}
	s.metrics.AudioBytesSent.Add(context.Background(), int64(len(pcm)),
		metric.WithAttributes(attribute.String("provider", s.cfg.Provider.Name())))
}

// SendChat builds a context envelope from the configured history,
// prefixes it to text, and sends the result as one chat turn.
func (s *Session) SendChat(ctx context.Context, text string) error {
	var in envelope.Inputs
	if s.cfg.History != nil {
		in = s.cfg.History.Snapshot()
	}

	start := now()
	env := envelope.BuildEnvelope(now(), "chat", s.cfg.ChatBudget, in)
	s.metrics.EnvelopeBuildDuration.Record(ctx, now().Sub(start).Seconds())
	s.recordTruncations(ctx, env)

	block := envelope.FormatAsPrefixedContextBlock(env)
	if err := s.cfg.Provider.SendText(ctx, block+"\n"+text); err != nil {
		s.metrics.RecordSendError(ctx, s.cfg.Provider.Name(), "text")
		return fmt.Errorf("session: send chat: %w", err)
	}
	return nil
}

// SendContextualUpdate pushes background context without soliciting a
// response.
func (s *Session) SendContextualUpdate(ctx context.Context, text string) error {
	if err := s.cfg.Provider.SendContextualUpdate(ctx, text); err != nil {
		s.metrics.RecordSendError(ctx, s.cfg.Provider.Name(), "context")
		return fmt.Errorf("session: send contextual update: %w", err)
	}
	return nil
}

// SendFrame captures one screen frame and sends it, when both a
// capturer and a video-capable provider are configured.
func (s *Session) SendFrame(ctx context.Context) error {
	if s.cfg.Video == nil {
		return errors.New("session: no video capturer configured")
	}
	if !s.cfg.Provider.SupportsVideo() {
		return realtime.ErrVideoUnsupported
	}
	data, mimeType, err := s.cfg.Video.CaptureFrame(ctx)
	if err != nil {
		return fmt.Errorf("session: capture frame: %w", err)
	}
	if err := s.cfg.Provider.SendImage(data, mimeType); err != nil {
		s.metrics.RecordSendError(ctx, s.cfg.Provider.Name(), "image")
		return fmt.Errorf("session: send frame: %w", err)
	}
	return nil
}

// Stop halts capture and disconnects. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	if s.cfg.Audio != nil {
		if err := s.cfg.Audio.StopRecording(); err != nil {
			slog.Warn("stop recording failed", "error", err)
		}
	}
	if err := s.cfg.Provider.Disconnect(); err != nil {
		slog.Warn("disconnect failed", "error", err)
	}
	s.metrics.ActiveSessions.Add(context.Background(), -1)
}

// Close stops the session and releases the provider.
func (s *Session) Close() error {
	s.Stop()
	return s.cfg.Provider.Close()
}

// Done is closed when the provider's event stream ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// pump consumes provider events until the stream closes. Playback and
// callbacks run inline, so they must stay fast.
func (s *Session) pump() {
	defer close(s.done)
	ctx := context.Background()
	name := s.cfg.Provider.Name()

	for ev := range s.cfg.Provider.Events() {
		switch ev.Type {
		case realtime.EventAudio:
			s.metrics.AudioBytesReceived.Add(ctx, int64(len(ev.Audio)),
				metric.WithAttributes(attribute.String("provider", name)))
			if s.cfg.Audio != nil {
				if err := s.cfg.Audio.PlayAudio(ev.Audio); err != nil {
					slog.Warn("playback failed", "provider", name, "error", err)
				}
			}
		case realtime.EventText:
			if s.cfg.OnText != nil {
				s.cfg.OnText(ev.Text)
			}
		case realtime.EventStateChanged:
			if s.cfg.OnState != nil {
				s.cfg.OnState(ev.State)
			}
		case realtime.EventInterrupted:
			if s.cfg.OnInterrupted != nil {
				s.cfg.OnInterrupted()
			}
		case realtime.EventError, realtime.EventConnectionLost:
			s.surfaceError(ev.Err)
		}
	}
}

// surfaceError forwards an error to OnError unless the same text
// surfaced within the debounce window.
func (s *Session) surfaceError(err error) {
	if err == nil || s.cfg.OnError == nil {
		return
	}
	text := err.Error()

	s.mu.Lock()
	at := now()
	if text == s.lastErr && at.Sub(s.lastErrAt) < errorDebounce {
		s.mu.Unlock()
		return
	}
	s.lastErr = text
	s.lastErrAt = at
	s.mu.Unlock()

	s.cfg.OnError(err)
}

// recordTruncations counts dropped categories from the envelope's
// report, e.g. "chat: 4/5 turns; reel: 3/9 moments".
func (s *Session) recordTruncations(ctx context.Context, env *envelope.Envelope) {
	if env.TruncationReport == "none" {
		return
	}
	for _, note := range strings.Split(env.TruncationReport, "; ") {
		category, _, ok := strings.Cut(note, ":")
		if !ok {
			continue
		}
		s.metrics.EnvelopeTruncations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("category", category)))
	}
}
