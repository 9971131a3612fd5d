package envelope

import (
	"strings"
	"time"
)

// Section markers for the plain-text context block. Providers with no
// structured context channel receive exactly this framing, so the
// markers are part of the wire contract and must not change casually.
const (
	markerHeader  = "[Context]"
	markerTarget  = "--- Target ---"
	markerChat    = "--- Recent chat ---"
	markerReel    = "--- Moments ---"
	markerSummary = "--- Summary ---"
)

// FormatAsPrefixedContextBlock renders the envelope as a plain-text
// block suitable for prepending to a chat message. Empty sections are
// omitted; the truncation report is always present.
func FormatAsPrefixedContextBlock(env *Envelope) string {
	var b strings.Builder

	b.WriteString(markerHeader)
	if env.Intent != "" {
		b.WriteByte(' ')
		b.WriteString(env.Intent)
	}
	if !env.RequestTimestamp.IsZero() {
		b.WriteString(" @ ")
		b.WriteString(env.RequestTimestamp.UTC().Format(time.RFC3339))
	}
	b.WriteByte('\n')

	if env.ActiveTarget != "" {
		b.WriteString(markerTarget)
		b.WriteByte('\n')
		b.WriteString(env.ActiveTarget)
		b.WriteByte('\n')
	}
	if len(env.RecentChat) > 0 {
		b.WriteString(markerChat)
		b.WriteByte('\n')
		for _, line := range env.RecentChat {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if len(env.ReelRefs) > 0 {
		b.WriteString(markerReel)
		b.WriteByte('\n')
		for _, m := range env.ReelRefs {
			b.WriteString(m.render())
			b.WriteByte('\n')
		}
	}
	if env.RollingSummary != "" {
		b.WriteString(markerSummary)
		b.WriteByte('\n')
		b.WriteString(env.RollingSummary)
		b.WriteByte('\n')
	}

	b.WriteString("--- Truncation: ")
	b.WriteString(env.TruncationReport)
	b.WriteString(" ---\n")
	return b.String()
}
