package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/auralis-ai/auralis/pkg/envelope"
	"github.com/auralis-ai/auralis/pkg/realtime"
	"github.com/auralis-ai/auralis/pkg/realtime/rttest"
)

type fakeAudio struct {
	mu        sync.Mutex
	playing   atomic.Bool
	played    [][]byte
	recStarts int
	recStops  int
	frameSink func([]byte)
	startErr  error
}

func (f *fakeAudio) StartRecording(onFrame func(pcm []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.recStarts++
	f.frameSink = onFrame
	return nil
}

func (f *fakeAudio) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recStops++
	return nil
}

func (f *fakeAudio) PlayAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, append([]byte(nil), pcm...))
	return nil
}

func (f *fakeAudio) IsPlaying() bool { return f.playing.Load() }

func (f *fakeAudio) playedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

type fakeHistory struct{ in envelope.Inputs }

func (f *fakeHistory) Snapshot() envelope.Inputs { return f.in }

type fakeVideo struct{ data []byte }

func (f *fakeVideo) CaptureFrame(ctx context.Context) ([]byte, string, error) {
	return f.data, "image/jpeg", nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEchoSuppression(t *testing.T) {
	mock := rttest.NewMock()
	audio := &fakeAudio{}
	s, err := New(Config{Provider: mock, Audio: audio})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	audio.playing.Store(true)
	s.HandleCaptureFrame([]byte{1, 2, 3, 4})
	if got := len(mock.SentAudio()); got != 0 {
		t.Errorf("frames sent while playing = %d, want 0", got)
	}

	audio.playing.Store(false)
	s.HandleCaptureFrame([]byte{1, 2, 3, 4})
	if got := len(mock.SentAudio()); got != 1 {
		t.Errorf("frames sent after playback = %d, want 1", got)
	}
}

func TestSendChat_PrefixesEnvelope(t *testing.T) {
	mock := rttest.NewMock()
	hist := &fakeHistory{in: envelope.Inputs{
		ActiveTarget: "editor: main.go",
		Chat:         []envelope.ChatMessage{{Role: envelope.RoleUser, Content: "earlier question"}},
	}}
	s, err := New(Config{Provider: mock, History: hist})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.SendChat(context.Background(), "hello there"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}

	texts := mock.SentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d texts, want 1", len(texts))
	}
	sent := texts[0]
	if !strings.HasPrefix(sent, "[Context]") {
		t.Errorf("chat not prefixed with context block:\n%s", sent)
	}
	if !strings.Contains(sent, "--- Target ---\neditor: main.go") {
		t.Errorf("context block missing target:\n%s", sent)
	}
	if !strings.Contains(sent, "user: earlier question") {
		t.Errorf("context block missing chat history:\n%s", sent)
	}
	if !strings.HasSuffix(sent, "\nhello there") {
		t.Errorf("message body not appended after block:\n%s", sent)
	}
}

func TestErrorDebounce(t *testing.T) {
	clock := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	oldNow := now
	now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	defer func() { now = oldNow }()
	advance := func(d time.Duration) {
		clockMu.Lock()
		clock = clock.Add(d)
		clockMu.Unlock()
	}

	mock := rttest.NewMock()
	var mu sync.Mutex
	var surfaced []string
	s, err := New(Config{Provider: mock, OnError: func(err error) {
		mu.Lock()
		surfaced = append(surfaced, err.Error())
		mu.Unlock()
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(surfaced)
	}

	emit := func(text string) {
		mock.Emit(&realtime.Event{Type: realtime.EventError, Err: errors.New(text)})
	}

	emit("connection reset")
	waitFor(t, func() bool { return count() == 1 })

	// Identical text inside the window is suppressed.
	emit("connection reset")
	emit("connection reset")
	time.Sleep(50 * time.Millisecond)
	if got := count(); got != 1 {
		t.Fatalf("surfaced %d errors inside debounce window, want 1", got)
	}

	// Different text surfaces immediately.
	emit("credential rejected")
	waitFor(t, func() bool { return count() == 2 })

	// The original text surfaces again after the window passes.
	advance(4 * time.Second)
	emit("connection reset")
	waitFor(t, func() bool { return count() == 3 })
}

func TestSendFrame(t *testing.T) {
	mock := rttest.NewMock(rttest.WithVideo())
	s, err := New(Config{Provider: mock, Video: &fakeVideo{data: []byte{0xff, 0xd8}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.SendFrame(context.Background()); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	if got := len(mock.SentImages()); got != 1 {
		t.Errorf("sent %d images, want 1", got)
	}
}

func TestSendFrame_VideoUnsupported(t *testing.T) {
	mock := rttest.NewMock()
	s, err := New(Config{Provider: mock, Video: &fakeVideo{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.SendFrame(context.Background()); !errors.Is(err, realtime.ErrVideoUnsupported) {
		t.Errorf("SendFrame = %v, want ErrVideoUnsupported", err)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	mock := rttest.NewMock()
	audio := &fakeAudio{}
	s, err := New(Config{Provider: mock, Audio: audio})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	s.Stop()
	s.Stop()

	audio.mu.Lock()
	defer audio.mu.Unlock()
	if audio.recStarts != 1 {
		t.Errorf("StartRecording called %d times, want 1", audio.recStarts)
	}
	if audio.recStops != 1 {
		t.Errorf("StopRecording called %d times, want 1", audio.recStops)
	}
}

func TestRestart_ReusesEventPump(t *testing.T) {
	mock := rttest.NewMock()
	texts := make(chan string, 16)
	s, err := New(Config{
		Provider: mock,
		OnText:   func(text string) { texts <- text },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Start(context.Background(), &realtime.Agent{ID: "a1"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	if err := s.Start(context.Background(), &realtime.Agent{ID: "a1"}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := mock.ConnectCalls(); got != 2 {
		t.Errorf("ConnectCalls = %d, want 2", got)
	}

	// Events still flow through the original pump after a restart.
	mock.Emit(&realtime.Event{Type: realtime.EventText, Text: "back"})
	select {
	case got := <-texts:
		if got != "back" {
			t.Errorf("text = %q, want %q", got, "back")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no text event after restart")
	}

	// Ending the provider's stream finishes the session exactly once.
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("event pump did not finish after Close")
	}
}

func TestPump_PlaysInboundAudio(t *testing.T) {
	mock := rttest.NewMock()
	audio := &fakeAudio{}
	s, err := New(Config{Provider: mock, Audio: audio})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(context.Background(), &realtime.Agent{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mock.Emit(&realtime.Event{Type: realtime.EventAudio, Audio: []byte{1, 2, 3, 4}})
	waitFor(t, func() bool { return audio.playedCount() == 1 })
}
