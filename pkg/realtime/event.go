package realtime

// EventType discriminates Event values.
type EventType int

const (
	// EventStateChanged reports a ConnectionState transition.
	EventStateChanged EventType = iota

	// EventAudio carries one chunk of model speech, PCM16 mono 24 kHz.
	EventAudio

	// EventText carries one completed piece of model text (a finished
	// transcript or text turn, not a partial delta).
	EventText

	// EventInterrupted signals that the user barged in and the backend
	// stopped generating; buffered playback should be flushed.
	EventInterrupted

	// EventError carries a non-fatal error (failed send, rejected frame).
	// Connection state is unchanged.
	EventError

	// EventConnectionLost signals that the receive loop died from a
	// socket failure. A reconnector reacts to this; without one the
	// provider is left in StateError.
	EventConnectionLost
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventAudio:
		return "audio"
	case EventText:
		return "text"
	case EventInterrupted:
		return "interrupted"
	case EventError:
		return "error"
	case EventConnectionLost:
		return "connection_lost"
	}
	return "unknown"
}

// Event is one provider notification. Exactly the fields implied by Type
// are set; the rest are zero.
type Event struct {
	Type EventType

	// State is set for EventStateChanged.
	State ConnectionState

	// Audio is set for EventAudio: PCM16 mono 24 kHz.
	Audio []byte

	// Text is set for EventText.
	Text string

	// Err is set for EventError and EventConnectionLost.
	Err error
}
