package openairt

import (
	"encoding/base64"
	"encoding/json"

	"github.com/auralis-ai/auralis/pkg/realtime"
)

// parseOutcome classifies an inbound event. Malformed and unknown events
// are dropped by the receive loop; neither ever unwinds it.
type parseOutcome int

const (
	frameParsed parseOutcome = iota
	frameUnknown
	frameMalformed
)

func (o parseOutcome) String() string {
	switch o {
	case frameParsed:
		return "parsed"
	case frameUnknown:
		return "unknown"
	default:
		return "malformed"
	}
}

// recognizedTypes are the server event types this adapter acts on.
// Lifecycle acks are recognized and ignored so they do not log as
// unknown on every turn.
var recognizedTypes = map[string]bool{
	eventTypeError:                         true,
	eventTypeSessionCreated:                true,
	eventTypeSessionUpdated:                true,
	eventTypeResponseAudioDelta:            true,
	eventTypeResponseAudioDone:             true,
	eventTypeResponseTextDone:              true,
	eventTypeResponseAudioTranscriptDone:   true,
	eventTypeInputAudioBufferSpeechStarted: true,
	eventTypeInputAudioBufferSpeechStopped: true,
	eventTypeResponseCreated:               true,
	eventTypeResponseDone:                  true,
}

// parseServerEvent decodes one inbound event.
func parseServerEvent(data []byte) (*serverEvent, parseOutcome) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
		return &ev, frameMalformed
	}
	if !recognizedTypes[ev.Type] {
		return &ev, frameUnknown
	}
	return &ev, frameParsed
}

// dispatch converts one recognized server event into zero or more
// provider events.
func dispatch(ev *serverEvent) []*realtime.Event {
	switch ev.Type {
	case eventTypeResponseAudioDelta:
		if ev.Delta == "" {
			return nil
		}
		audio, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return nil
		}
		return []*realtime.Event{{Type: realtime.EventAudio, Audio: audio}}

	case eventTypeResponseTextDone:
		if ev.Text == "" {
			return nil
		}
		return []*realtime.Event{{Type: realtime.EventText, Text: ev.Text}}

	case eventTypeResponseAudioTranscriptDone:
		if ev.Transcript == "" {
			return nil
		}
		return []*realtime.Event{{Type: realtime.EventText, Text: ev.Transcript}}

	case eventTypeInputAudioBufferSpeechStarted:
		// Server VAD detected barge-in; playback should flush.
		return []*realtime.Event{{Type: realtime.EventInterrupted}}

	case eventTypeError:
		if ev.Error == nil {
			return nil
		}
		return []*realtime.Event{{Type: realtime.EventError, Err: ev.Error.toError()}}
	}

	// Recognized lifecycle ack with no consumer payload.
	return nil
}
