package envelope

import (
	"context"
	"strings"
)

// summaryInstruction steers the backing model toward short, factual
// compression.
const summaryInstruction = "Compress the following conversation into a short factual summary. " +
	"Keep names, decisions, and open questions. Omit pleasantries. " +
	"Answer with the summary only, no preamble."

// A Summarizer compresses aged chat history into a rolling summary
// suitable for the envelope's lowest-priority slot.
//
// Implementations call a remote model and must honor ctx cancellation.
type Summarizer interface {
	Summarize(ctx context.Context, messages []ChatMessage) (string, error)
}

// transcript renders messages into the plain-text form handed to a
// summarizing model.
func transcript(messages []ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.render())
		b.WriteByte('\n')
	}
	return b.String()
}
