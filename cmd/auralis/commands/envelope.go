package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/auralis-ai/auralis/pkg/envelope"
)

var (
	envelopeFile   string
	envelopeBudget int
	envelopeIntent string
)

var envelopeCmd = &cobra.Command{
	Use:   "envelope",
	Short: "Build and print a context envelope from a transcript file",
	Long: `Builds a budgeted context envelope from a YAML transcript and prints
the rendered context block, for inspecting what a provider would see.

Transcript format:

  target: "editor: main.go"
  summary: "earlier the user asked about config parsing"
  messages:
    - role: user
      content: what does this function do
    - role: assistant
      content: it parses the config file
  moments:
    - id: m1
      source_target: terminal
      frame_ref: frames/0042.png
      confidence: 0.8
      timestamp: 2026-08-29T10:30:00Z`,
	RunE: runEnvelope,
}

func init() {
	envelopeCmd.Flags().StringVarP(&envelopeFile, "file", "f", "", "transcript YAML file (required)")
	envelopeCmd.Flags().IntVar(&envelopeBudget, "budget", 400, "token budget")
	envelopeCmd.Flags().StringVar(&envelopeIntent, "intent", "chat", "request intent")
	_ = envelopeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(envelopeCmd)
}

// transcriptFile is the YAML shape accepted by -f.
type transcriptFile struct {
	Target   string `yaml:"target"`
	Summary  string `yaml:"summary"`
	Messages []struct {
		Role    string `yaml:"role"`
		Content string `yaml:"content"`
	} `yaml:"messages"`
	Moments []struct {
		ID           string    `yaml:"id"`
		SourceTarget string    `yaml:"source_target"`
		FrameRef     string    `yaml:"frame_ref"`
		Confidence   float64   `yaml:"confidence"`
		Timestamp    time.Time `yaml:"timestamp"`
	} `yaml:"moments"`
}

func runEnvelope(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(envelopeFile)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	var tf transcriptFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	in := envelope.Inputs{
		ActiveTarget:   tf.Target,
		RollingSummary: tf.Summary,
	}
	for _, m := range tf.Messages {
		in.Chat = append(in.Chat, envelope.ChatMessage{
			Role:    envelope.Role(m.Role),
			Content: m.Content,
		})
	}
	for _, m := range tf.Moments {
		in.Moments = append(in.Moments, envelope.ReelMoment{
			ID:           m.ID,
			SourceTarget: m.SourceTarget,
			FrameRef:     m.FrameRef,
			Confidence:   m.Confidence,
			Timestamp:    m.Timestamp,
		})
	}

	env := envelope.BuildEnvelope(time.Now(), envelopeIntent, envelopeBudget, in)

	fmt.Fprint(cmd.OutOrStdout(), envelope.FormatAsPrefixedContextBlock(env))
	fmt.Fprintf(cmd.OutOrStdout(), "\nbudget: %d tokens\nconfidence: %.2f\n", env.BudgetTokens, env.Confidence)
	return nil
}
