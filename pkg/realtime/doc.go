// Package realtime defines the provider-agnostic contract for duplex
// voice conversations with a multimodal AI service.
//
// A [Provider] owns one connection to one backend. Two wire profiles are
// implemented in subpackages: gemini (Gemini Live style frames) and
// openairt (OpenAI Realtime style events). Both satisfy [Provider], so
// the application layer selects a backend once at construction and is
// otherwise provider-blind.
//
// # Audio format
//
// Audio sent through [Provider.SendAudio] is PCM16 mono at 16 kHz; audio
// delivered via [EventAudio] is PCM16 mono at 24 kHz. Adapters whose
// backend uses other native rates convert internally — see the resampler
// package.
//
// # Events
//
// Providers deliver state changes, media, and errors as [Event] values on
// a buffered channel consumed through [Provider.Events]. Events fire on
// the provider's receive goroutine; consumers must drain promptly and
// must not block, or backpressure will stall the receive loop.
//
// # Connecting
//
//	client := gemini.NewClient(apiKey)
//	if err := client.Connect(ctx, &realtime.Agent{
//	    ID:           "navigator",
//	    Name:         "Navigator",
//	    Instructions: "You are a helpful screen-aware assistant.",
//	}); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	for ev := range client.Events() {
//	    switch ev.Type {
//	    case realtime.EventAudio:
//	        play(ev.Audio)
//	    case realtime.EventText:
//	        fmt.Println(ev.Text)
//	    }
//	}
package realtime
