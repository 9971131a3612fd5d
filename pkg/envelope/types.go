package envelope

import (
	"fmt"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleProactive marks messages the assistant initiated without a
	// user prompt.
	RoleProactive Role = "proactive"
)

// ChatMessage is one turn of conversation history. The application owns
// the history; budgeting reads it without mutation.
type ChatMessage struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// render is the line form a message takes inside a context block, and
// the text token estimation is applied to.
func (m ChatMessage) render() string {
	return string(m.Role) + ": " + m.Content
}

// ReelMoment references a captured visual frame. Appended by the
// capture layer; read-only here.
type ReelMoment struct {
	ID           string
	Timestamp    time.Time
	SourceTarget string
	FrameRef     string
	// Confidence is the capture layer's relevance score in [0, 1].
	Confidence float64
}

// render is the one-line description a moment contributes to a context
// block.
func (m ReelMoment) render() string {
	return fmt.Sprintf("%s at %s (confidence %.2f)",
		m.SourceTarget, m.Timestamp.UTC().Format("15:04:05"), m.Confidence)
}

// Inputs is the externally supplied history a budgeting call draws
// from. All fields are optional.
type Inputs struct {
	// ActiveTarget is the metadata block for whatever the user is
	// currently focused on.
	ActiveTarget string

	// Chat is the conversation history in chronological order.
	Chat []ChatMessage

	// Moments is the visual history, in any order.
	Moments []ReelMoment

	// RollingSummary is compressed aged history, produced by a
	// Summarizer. Lowest budgeting priority.
	RollingSummary string
}

// Envelope is a bounded context packet. Immutable once built; serialize
// it with FormatAsPrefixedContextBlock or discard it.
type Envelope struct {
	RequestTimestamp time.Time
	Intent           string

	// BudgetTokens is the effective budget the envelope was built
	// against, never above the hard ceiling.
	BudgetTokens int

	ActiveTarget string

	// RecentChat holds the included turns in chronological order.
	RecentChat []string

	// ReelRefs holds the included moments, best-first.
	ReelRefs []ReelMoment

	RollingSummary string

	// TruncationReport describes what was dropped, or "none".
	TruncationReport string

	// Confidence is the included fraction of the supplied history
	// in [0, 1].
	Confidence float64
}
