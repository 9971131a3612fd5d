package openairt

// Client event types (sent from client to server).
const (
	eventTypeSessionUpdate          = "session.update"
	eventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	eventTypeConversationItemCreate = "conversation.item.create"
	eventTypeResponseCreate         = "response.create"
)

// Server event types (received from server).
const (
	eventTypeError                         = "error"
	eventTypeSessionCreated                = "session.created"
	eventTypeSessionUpdated                = "session.updated"
	eventTypeResponseAudioDelta            = "response.audio.delta"
	eventTypeResponseAudioDone             = "response.audio.done"
	eventTypeResponseTextDone              = "response.text.done"
	eventTypeResponseAudioTranscriptDone   = "response.audio_transcript.done"
	eventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	eventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"
	eventTypeResponseCreated               = "response.created"
	eventTypeResponseDone                  = "response.done"
)

// sessionConfig is the payload of a session.update event.
type sessionConfig struct {
	Modalities        []string       `json:"modalities,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *turnDetection `json:"turn_detection,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// serverEvent is the decoded shape of an inbound event. Only the fields
// relevant to the dispatched type are populated.
type serverEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	// Delta carries base64 audio for response.audio.delta.
	Delta string `json:"delta,omitzero"`

	// Text carries the final text for response.text.done.
	Text string `json:"text,omitzero"`

	// Transcript carries the final transcript for
	// response.audio_transcript.done.
	Transcript string `json:"transcript,omitzero"`

	Session *sessionInfo `json:"session,omitzero"`
	Error   *eventError  `json:"error,omitzero"`
}

type sessionInfo struct {
	ID string `json:"id"`
}

type eventError struct {
	Type    string `json:"type,omitzero"`
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
}
