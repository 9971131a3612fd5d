// Package reconnect wraps a realtime.Provider with automatic
// reconnection after receive-loop socket failures.
package reconnect

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auralis-ai/auralis/pkg/observe"
	"github.com/auralis-ai/auralis/pkg/realtime"
)

// Delays is the backoff schedule. One Connect attempt follows each
// delay; after the last one fails the reconnector gives up.
var Delays = [...]time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// Reconnector decorates a realtime.Provider. On a connection-lost event
// it retries Connect with the same agent, replaying the Delays schedule.
// A user-initiated Disconnect or Close never triggers reconnection.
// After the schedule is exhausted the reconnector surfaces
// realtime.ErrReconnectFailed, moves to the error state, and stays there
// until the caller connects again explicitly.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	inner realtime.Provider

	// after is the delay timer, replaceable in tests.
	after func(time.Duration) <-chan time.Time

	metrics *observe.Metrics

	mu    sync.Mutex
	agent *realtime.Agent

	reconnecting atomic.Bool
	events       chan *realtime.Event
	closeCh      chan struct{}
	closeOnce    sync.Once
	closed       atomic.Bool
}

// Option configures a Reconnector.
type Option func(*Reconnector)

// WithTimer replaces the delay timer. Tests use this to avoid real
// backoff waits.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(r *Reconnector) { r.after = after }
}

// WithMetrics replaces the default metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Reconnector) { r.metrics = m }
}

// Wrap decorates provider with automatic reconnection. The returned
// Reconnector owns the provider's event stream; callers must consume
// events through the Reconnector, not the wrapped provider.
func Wrap(provider realtime.Provider, opts ...Option) *Reconnector {
	r := &Reconnector{
		inner:   provider,
		after:   time.After,
		metrics: observe.DefaultMetrics(),
		events:  make(chan *realtime.Event, 100),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Connect connects the wrapped provider and retains the agent for
// reconnection replay.
func (r *Reconnector) Connect(ctx context.Context, agent *realtime.Agent) error {
	r.mu.Lock()
	r.agent = agent
	r.mu.Unlock()
	return r.inner.Connect(ctx, agent)
}

// Disconnect disconnects the wrapped provider and clears the retained
// agent so the drop is not mistaken for a failure.
func (r *Reconnector) Disconnect() error {
	r.mu.Lock()
	r.agent = nil
	r.mu.Unlock()
	return r.inner.Disconnect()
}

// Close releases the reconnector and the wrapped provider. Any
// in-flight reconnection sequence aborts.
func (r *Reconnector) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.closeCh)
		err = r.inner.Close()
	})
	return err
}

func (r *Reconnector) SendAudio(pcm []byte) error { return r.inner.SendAudio(pcm) }

func (r *Reconnector) SendImage(data []byte, mimeType string) error {
	return r.inner.SendImage(data, mimeType)
}

func (r *Reconnector) SendText(ctx context.Context, text string) error {
	return r.inner.SendText(ctx, text)
}

func (r *Reconnector) SendContextualUpdate(ctx context.Context, text string) error {
	return r.inner.SendContextualUpdate(ctx, text)
}

// Events iterates over provider events, including the reconnector's own
// state transitions, until Close.
func (r *Reconnector) Events() iter.Seq[*realtime.Event] {
	return func(yield func(*realtime.Event) bool) {
		for {
			select {
			case <-r.closeCh:
				return
			case ev := <-r.events:
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// State returns the wrapped provider's state, overridden with
// StateReconnecting while a reconnection sequence runs.
func (r *Reconnector) State() realtime.ConnectionState {
	if r.reconnecting.Load() {
		return realtime.StateReconnecting
	}
	return r.inner.State()
}

func (r *Reconnector) IsConnected() bool { return r.State() == realtime.StateConnected }

func (r *Reconnector) SupportsVideo() bool { return r.inner.SupportsVideo() }

func (r *Reconnector) Name() string { return r.inner.Name() }

// run forwards inner events, intercepting connection losses. The
// reconnection sequence runs inline so inner events produced while
// reconnecting queue up in order behind it.
func (r *Reconnector) run() {
	defer close(r.events)
	for ev := range r.inner.Events() {
		if ev.Type == realtime.EventConnectionLost && !r.closed.Load() {
			r.emit(ev)
			if agent := r.currentAgent(); agent != nil {
				r.reconnect(agent)
			}
			continue
		}
		r.emit(ev)
	}
}

// reconnect replays the Delays schedule. The wrapped provider's Connect
// tears down its prior socket before dialing, so no two sockets are
// alive at once.
func (r *Reconnector) reconnect(agent *realtime.Agent) {
	r.reconnecting.Store(true)
	defer r.reconnecting.Store(false)

	r.emit(&realtime.Event{Type: realtime.EventStateChanged, State: realtime.StateReconnecting})

	for attempt, delay := range Delays {
		select {
		case <-r.closeCh:
			return
		case <-r.after(delay):
		}
		if r.closed.Load() {
			return
		}

		slog.Info("attempting reconnection",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"max_attempts", len(Delays),
			"delay", delay,
		)

		err := r.inner.Connect(context.Background(), agent)
		if err == nil {
			r.metrics.RecordReconnectAttempt(context.Background(), r.inner.Name(), "ok")
			slog.Info("reconnection successful",
				"provider", r.inner.Name(),
				"attempt", attempt+1,
			)
			return
		}
		r.metrics.RecordReconnectAttempt(context.Background(), r.inner.Name(), "failed")
		slog.Warn("reconnection attempt failed",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"error", err,
		)
	}

	slog.Error("reconnection attempts exhausted", "provider", r.inner.Name())
	r.emit(&realtime.Event{Type: realtime.EventError, Err: realtime.ErrReconnectFailed})
	r.emit(&realtime.Event{Type: realtime.EventStateChanged, State: realtime.StateError})
}

func (r *Reconnector) currentAgent() *realtime.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agent
}

func (r *Reconnector) emit(ev *realtime.Event) {
	select {
	case r.events <- ev:
	case <-r.closeCh:
	}
}

var _ realtime.Provider = (*Reconnector)(nil)
