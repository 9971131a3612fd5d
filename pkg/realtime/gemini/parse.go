package gemini

import (
	"encoding/base64"
	"encoding/json"

	"github.com/auralis-ai/auralis/pkg/realtime"
)

// parseOutcome classifies an inbound frame. Malformed and unknown frames
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

// parseServerFrame decodes one complete server frame into zero or more
// provider events.
func parseServerFrame(data []byte) ([]*realtime.Event, parseOutcome) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, frameMalformed
	}

	switch {
	case frame.ServerContent != nil:
		return parseServerContent(frame.ServerContent), frameParsed
	case frame.SetupComplete != nil, frame.GoAway != nil:
		// Lifecycle acks carry no payload for the consumer.
		return nil, frameParsed
	}
	return nil, frameUnknown
}

func parseServerContent(sc *serverContent) []*realtime.Event {
	var events []*realtime.Event

	if sc.Interrupted {
		events = append(events, &realtime.Event{Type: realtime.EventInterrupted})
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				// Inline audio arrives base64-encoded at the native
				// 24 kHz output rate.
				if audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data); err == nil {
					events = append(events, &realtime.Event{Type: realtime.EventAudio, Audio: audio})
				}
			}
			if p.Text != "" {
				events = append(events, &realtime.Event{Type: realtime.EventText, Text: p.Text})
			}
		}
	}

	return events
}
