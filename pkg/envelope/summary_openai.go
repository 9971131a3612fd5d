package envelope

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// OpenAISummarizer implements [Summarizer] on the chat completions API.
// Stateless and safe for concurrent use.
type OpenAISummarizer struct {
	// Client is the shared OpenAI client. Required.
	Client *openai.Client

	// Model is the model name (e.g. "gpt-4o-mini"). Required.
	Model string
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	resp, err := s.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summaryInstruction),
			openai.UserMessage(transcript(messages)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("envelope: openai summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("envelope: openai summarize: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ Summarizer = (*OpenAISummarizer)(nil)
