// Package rttest provides an in-memory realtime.Provider for tests and
// offline sessions. The mock records everything sent through it and lets
// the caller script connect failures and inbound events.
package rttest

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/auralis-ai/auralis/pkg/realtime"
)

const eventBuffer = 100

// Mock is a scriptable realtime.Provider. All methods are safe for
// concurrent use.
type Mock struct {
	name          string
	supportsVideo bool

	mu          sync.Mutex
	agent       *realtime.Agent
	connectErrs []error
	connects    int
	disconnects int
	audio       [][]byte
	images      [][]byte
	texts       []string
	updates     []string

	state     atomic.Int32
	events    chan *realtime.Event
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// Option configures a Mock.
type Option func(*Mock)

// WithName sets the provider name reported by Name.
func WithName(name string) Option {
	return func(m *Mock) { m.name = name }
}

// WithVideo makes the mock accept SendImage.
func WithVideo() Option {
	return func(m *Mock) { m.supportsVideo = true }
}

// NewMock returns a disconnected mock provider.
func NewMock(opts ...Option) *Mock {
	m := &Mock{
		name:    "mock",
		events:  make(chan *realtime.Event, eventBuffer),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailConnects scripts errors for the next Connect calls, consumed in
// order. A nil entry makes that call succeed.
func (m *Mock) FailConnects(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErrs = append(m.connectErrs, errs...)
}

// Connect consumes the next scripted result, defaulting to success.
func (m *Mock) Connect(ctx context.Context, agent *realtime.Agent) error {
	if m.closed.Load() {
		return realtime.ErrClosed
	}

	m.mu.Lock()
	switch m.currentState() {
	case realtime.StateConnected, realtime.StateConnecting:
		m.mu.Unlock()
		return nil
	}
	m.connects++
	m.agent = agent
	var err error
	if len(m.connectErrs) > 0 {
		err = m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
	}
	m.mu.Unlock()

	if err != nil {
		m.setState(realtime.StateError)
		return err
	}
	m.setState(realtime.StateConnected)
	return nil
}

// Disconnect is idempotent.
func (m *Mock) Disconnect() error {
	m.mu.Lock()
	m.disconnects++
	m.mu.Unlock()
	m.setState(realtime.StateDisconnected)
	return nil
}

// Close releases the mock. Subsequent Connect calls fail.
func (m *Mock) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		_ = m.Disconnect()
		close(m.closeCh)
	})
	return nil
}

func (m *Mock) SendAudio(pcm []byte) error {
	if m.currentState() != realtime.StateConnected {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = append(m.audio, append([]byte(nil), pcm...))
	return nil
}

func (m *Mock) SendImage(data []byte, mimeType string) error {
	if !m.supportsVideo {
		return realtime.ErrVideoUnsupported
	}
	if m.currentState() != realtime.StateConnected {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, append([]byte(nil), data...))
	return nil
}

func (m *Mock) SendText(ctx context.Context, text string) error {
	if m.currentState() != realtime.StateConnected {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *Mock) SendContextualUpdate(ctx context.Context, text string) error {
	if m.currentState() != realtime.StateConnected {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, text)
	return nil
}

// Emit delivers an event to the mock's consumers, as if received from
// the wire.
func (m *Mock) Emit(ev *realtime.Event) {
	select {
	case m.events <- ev:
	case <-m.closeCh:
	}
}

// LoseConnection simulates a receive-loop socket failure: state moves to
// error and a connection-lost event is emitted.
func (m *Mock) LoseConnection(err error) {
	m.setState(realtime.StateError)
	m.Emit(&realtime.Event{Type: realtime.EventConnectionLost, Err: err})
}

// Events iterates over emitted events until the mock is closed.
func (m *Mock) Events() iter.Seq[*realtime.Event] {
	return func(yield func(*realtime.Event) bool) {
		for {
			select {
			case <-m.closeCh:
				return
			case ev := <-m.events:
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func (m *Mock) State() realtime.ConnectionState { return m.currentState() }

func (m *Mock) IsConnected() bool { return m.currentState() == realtime.StateConnected }

func (m *Mock) SupportsVideo() bool { return m.supportsVideo }

func (m *Mock) Name() string { return m.name }

// ConnectCalls reports how many times Connect proceeded past the
// no-op check.
func (m *Mock) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

// DisconnectCalls reports how many times Disconnect was called.
func (m *Mock) DisconnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// Agent returns the agent from the most recent Connect.
func (m *Mock) Agent() *realtime.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agent
}

// SentAudio returns all PCM buffers accepted by SendAudio.
func (m *Mock) SentAudio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.audio...)
}

// SentTexts returns all messages accepted by SendText.
func (m *Mock) SentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// SentUpdates returns all messages accepted by SendContextualUpdate.
func (m *Mock) SentUpdates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.updates...)
}

// SentImages returns all frames accepted by SendImage.
func (m *Mock) SentImages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.images...)
}

func (m *Mock) currentState() realtime.ConnectionState {
	return realtime.ConnectionState(m.state.Load())
}

func (m *Mock) setState(s realtime.ConnectionState) {
	if realtime.ConnectionState(m.state.Swap(int32(s))) == s {
		return
	}
	m.Emit(&realtime.Event{Type: realtime.EventStateChanged, State: s})
}

var _ realtime.Provider = (*Mock)(nil)
