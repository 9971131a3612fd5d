package envelope

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiSummarizer implements [Summarizer] on the Gemini generateContent
// API. Stateless and safe for concurrent use.
type GeminiSummarizer struct {
	// Client is the shared Gemini client. Required.
	Client *genai.Client

	// Model is the model name (e.g. "gemini-2.0-flash"). Required.
	Model string
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(summaryInstruction)},
		},
	}
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(transcript(messages))},
	}}

	resp, err := s.Client.Models.GenerateContent(ctx, s.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("envelope: gemini summarize: %w", err)
	}
	return candidateText(resp)
}

// candidateText concatenates the text parts of the first candidate. A
// safety-blocked candidate carries no content.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("envelope: gemini summarize: no candidates")
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", errors.New("envelope: gemini summarize: candidate has no content")
	}
	var b strings.Builder
	for _, p := range content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

var _ Summarizer = (*GeminiSummarizer)(nil)
