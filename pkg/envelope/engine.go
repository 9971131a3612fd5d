// Package envelope assembles bounded, priority-ordered context packets
// from chat and visual history.
//
// Budgeting is stateless per call and safe for concurrent use: every
// call reads the supplied inputs, allocates tokens in strict priority
// order (active target, then recent chat newest-first, then visual
// moments by confidence, then the rolling summary), and returns a fresh
// immutable Envelope with a truncation report for anything dropped.
package envelope

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HardTokenCeiling caps every budget request. No envelope is ever built
// against more than this many tokens.
const HardTokenCeiling = 1600

// EstimateTokens sizes text with a fixed 4-chars-per-token heuristic.
// Never returns less than 1.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// BuildEnvelope assembles a context envelope for one outbound request.
// budgetTokens is clamped to HardTokenCeiling; non-positive budgets
// yield an empty envelope.
func BuildEnvelope(requestTimestamp time.Time, intent string, budgetTokens int, in Inputs) *Envelope {
	if budgetTokens > HardTokenCeiling {
		budgetTokens = HardTokenCeiling
	}
	if budgetTokens < 0 {
		budgetTokens = 0
	}

	env := &Envelope{
		RequestTimestamp: requestTimestamp,
		Intent:           intent,
		BudgetTokens:     budgetTokens,
	}

	remaining := budgetTokens
	var notes []string
	included, total := 0, 0

	// Priority 1: active target. Included whenever any budget remains;
	// it is the one block the model must always see.
	if in.ActiveTarget != "" {
		total++
		if remaining > 0 {
			env.ActiveTarget = in.ActiveTarget
			remaining -= EstimateTokens(in.ActiveTarget)
			included++
		} else {
			notes = append(notes, "target: dropped")
		}
	}

	// Priority 2: recent chat, newest-first, each line independently
	// sized.
	if len(in.Chat) > 0 {
		total += len(in.Chat)
		var lines []string
		for i := len(in.Chat) - 1; i >= 0; i-- {
			line := in.Chat[i].render()
			cost := EstimateTokens(line)
			if cost > remaining {
				break
			}
			lines = append(lines, line)
			remaining -= cost
		}
		included += len(lines)
		// Selection ran newest-first; present chronologically.
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
		env.RecentChat = lines
		if len(lines) < len(in.Chat) {
			notes = append(notes, fmt.Sprintf("chat: %d/%d turns", len(lines), len(in.Chat)))
		}
	}

	// Priority 3: moments by confidence descending, then recency.
	if len(in.Moments) > 0 {
		total += len(in.Moments)
		moments := append([]ReelMoment(nil), in.Moments...)
		sort.SliceStable(moments, func(i, j int) bool {
			if moments[i].Confidence != moments[j].Confidence {
				return moments[i].Confidence > moments[j].Confidence
			}
			return moments[i].Timestamp.After(moments[j].Timestamp)
		})
		for _, m := range moments {
			cost := EstimateTokens(m.render())
			if cost > remaining {
				break
			}
			env.ReelRefs = append(env.ReelRefs, m)
			remaining -= cost
		}
		included += len(env.ReelRefs)
		if len(env.ReelRefs) < len(in.Moments) {
			notes = append(notes, fmt.Sprintf("reel: %d/%d moments", len(env.ReelRefs), len(in.Moments)))
		}
	}

	// Priority 4: rolling summary, the reserved lowest-priority field.
	if in.RollingSummary != "" {
		total++
		if cost := EstimateTokens(in.RollingSummary); cost <= remaining {
			env.RollingSummary = in.RollingSummary
			remaining -= cost
			included++
		} else {
			notes = append(notes, "summary: dropped")
		}
	}

	if len(notes) == 0 {
		env.TruncationReport = "none"
	} else {
		env.TruncationReport = strings.Join(notes, "; ")
	}

	if total == 0 {
		env.Confidence = 1
	} else {
		env.Confidence = float64(included) / float64(total)
	}
	return env
}
