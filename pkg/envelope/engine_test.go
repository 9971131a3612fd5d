package envelope

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"below one token", "abc", 1},
		{"exact", "abcdefgh", 2},
		{"truncating division", "abcdefghi", 2},
		{"long", strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuildEnvelope_BudgetCeiling(t *testing.T) {
	for _, requested := range []int{1601, 5000, 1 << 20} {
		env := BuildEnvelope(time.Now(), "chat", requested, Inputs{})
		if env.BudgetTokens != HardTokenCeiling {
			t.Errorf("BudgetTokens for request %d = %d, want %d", requested, env.BudgetTokens, HardTokenCeiling)
		}
	}
	env := BuildEnvelope(time.Now(), "chat", 200, Inputs{})
	if env.BudgetTokens != 200 {
		t.Errorf("BudgetTokens = %d, want 200", env.BudgetTokens)
	}
}

func TestBuildEnvelope_EmptyInputs(t *testing.T) {
	env := BuildEnvelope(time.Now(), "chat", 100, Inputs{})
	if env.TruncationReport != "none" {
		t.Errorf("TruncationReport = %q, want none", env.TruncationReport)
	}
	if env.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", env.Confidence)
	}
}

func TestBuildEnvelope_TargetBeforeChat(t *testing.T) {
	in := Inputs{ActiveTarget: "editor: main.go"}
	for i := range 50 {
		in.Chat = append(in.Chat, ChatMessage{
			Role:    RoleUser,
			Content: fmt.Sprintf("turn %02d %s", i, strings.Repeat("x", 200)),
		})
	}

	env := BuildEnvelope(time.Now(), "chat", 120, in)
	if env.ActiveTarget != "editor: main.go" {
		t.Fatal("active target dropped despite available budget")
	}
	if len(env.RecentChat) >= 50 {
		t.Fatalf("included %d turns, expected truncation", len(env.RecentChat))
	}
	want := fmt.Sprintf("chat: %d/50 turns", len(env.RecentChat))
	if env.TruncationReport != want {
		t.Errorf("TruncationReport = %q, want %q", env.TruncationReport, want)
	}
	// Greedy newest-first: whatever was included must be the tail of
	// the history, in chronological order.
	for i, line := range env.RecentChat {
		wantIdx := 50 - len(env.RecentChat) + i
		if !strings.Contains(line, fmt.Sprintf("turn %02d", wantIdx)) {
			t.Errorf("RecentChat[%d] = %.30q, want turn %02d", i, line, wantIdx)
		}
	}
}

func TestBuildEnvelope_ConcreteScenario(t *testing.T) {
	// budget 100 tokens, 40-char target, five 80-char turns: the
	// target and the four newest turns fit, the oldest is dropped.
	target := strings.Repeat("t", 40)
	in := Inputs{ActiveTarget: target}
	for i := range 5 {
		in.Chat = append(in.Chat, ChatMessage{
			Role:    RoleUser,
			Content: fmt.Sprintf("%d%s", i, strings.Repeat("c", 79)),
		})
	}

	env := BuildEnvelope(time.Now(), "chat", 100, in)
	if env.ActiveTarget != target {
		t.Error("active target not included")
	}
	if len(env.RecentChat) != 4 {
		t.Fatalf("included %d turns, want 4", len(env.RecentChat))
	}
	if !strings.Contains(env.RecentChat[0], "1") || !strings.Contains(env.RecentChat[3], "4") {
		t.Errorf("wrong turns included: %.20q .. %.20q", env.RecentChat[0], env.RecentChat[3])
	}
	if env.TruncationReport != "chat: 4/5 turns" {
		t.Errorf("TruncationReport = %q, want %q", env.TruncationReport, "chat: 4/5 turns")
	}
}

func TestBuildEnvelope_MomentOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	in := Inputs{Moments: []ReelMoment{
		{ID: "old-high", SourceTarget: "terminal", Confidence: 0.9, Timestamp: base},
		{ID: "low", SourceTarget: "browser", Confidence: 0.3, Timestamp: base.Add(2 * time.Minute)},
		{ID: "new-high", SourceTarget: "editor", Confidence: 0.9, Timestamp: base.Add(time.Minute)},
	}}

	env := BuildEnvelope(time.Now(), "voice", 500, in)
	if len(env.ReelRefs) != 3 {
		t.Fatalf("included %d moments, want 3", len(env.ReelRefs))
	}
	gotIDs := []string{env.ReelRefs[0].ID, env.ReelRefs[1].ID, env.ReelRefs[2].ID}
	wantIDs := []string{"new-high", "old-high", "low"}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("ReelRefs order = %v, want %v", gotIDs, wantIDs)
			break
		}
	}
	if env.TruncationReport != "none" {
		t.Errorf("TruncationReport = %q, want none", env.TruncationReport)
	}
}

func TestBuildEnvelope_MomentTruncation(t *testing.T) {
	in := Inputs{}
	for i := range 9 {
		in.Moments = append(in.Moments, ReelMoment{
			ID:           fmt.Sprintf("m%d", i),
			SourceTarget: strings.Repeat("w", 60),
			Confidence:   float64(i) / 10,
		})
	}

	env := BuildEnvelope(time.Now(), "voice", 60, in)
	if len(env.ReelRefs) == 0 || len(env.ReelRefs) >= 9 {
		t.Fatalf("included %d moments, expected partial inclusion", len(env.ReelRefs))
	}
	want := fmt.Sprintf("reel: %d/9 moments", len(env.ReelRefs))
	if env.TruncationReport != want {
		t.Errorf("TruncationReport = %q, want %q", env.TruncationReport, want)
	}
	// Best confidence survives truncation.
	if env.ReelRefs[0].ID != "m8" {
		t.Errorf("ReelRefs[0] = %s, want m8", env.ReelRefs[0].ID)
	}
}

func TestBuildEnvelope_SummaryLowestPriority(t *testing.T) {
	in := Inputs{
		ActiveTarget:   strings.Repeat("t", 40),
		RollingSummary: strings.Repeat("s", 400),
	}

	// Enough for the target, not for the summary.
	env := BuildEnvelope(time.Now(), "chat", 50, in)
	if env.ActiveTarget == "" {
		t.Error("target dropped")
	}
	if env.RollingSummary != "" {
		t.Error("summary included beyond budget")
	}
	if env.TruncationReport != "summary: dropped" {
		t.Errorf("TruncationReport = %q, want %q", env.TruncationReport, "summary: dropped")
	}

	// With room, the summary survives.
	env = BuildEnvelope(time.Now(), "chat", 200, in)
	if env.RollingSummary == "" {
		t.Error("summary dropped despite available budget")
	}
	if env.TruncationReport != "none" {
		t.Errorf("TruncationReport = %q, want none", env.TruncationReport)
	}
}

func TestBuildEnvelope_Confidence(t *testing.T) {
	in := Inputs{ActiveTarget: "t"}
	for range 3 {
		in.Chat = append(in.Chat, ChatMessage{Role: RoleUser, Content: strings.Repeat("c", 120)})
	}

	// Target (1 token) plus one 31-token turn fit in 40 tokens.
	env := BuildEnvelope(time.Now(), "chat", 40, in)
	if len(env.RecentChat) != 1 {
		t.Fatalf("included %d turns, want 1", len(env.RecentChat))
	}
	if got, want := env.Confidence, 0.5; got != want {
		t.Errorf("Confidence = %v, want %v", got, want)
	}
}

func TestBuildEnvelope_ZeroBudget(t *testing.T) {
	in := Inputs{
		ActiveTarget: "target",
		Chat:         []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}
	env := BuildEnvelope(time.Now(), "chat", 0, in)
	if env.ActiveTarget != "" || len(env.RecentChat) != 0 {
		t.Error("zero budget must include nothing")
	}
	if !strings.Contains(env.TruncationReport, "target: dropped") {
		t.Errorf("TruncationReport = %q, want target drop noted", env.TruncationReport)
	}
	if env.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", env.Confidence)
	}
}
