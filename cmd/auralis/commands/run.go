package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/auralis-ai/auralis/cmd/auralis/internal/config"
	"github.com/auralis-ai/auralis/cmd/auralis/internal/console"
	"github.com/auralis-ai/auralis/pkg/envelope"
	"github.com/auralis-ai/auralis/pkg/observe"
	"github.com/auralis-ai/auralis/pkg/realtime"
	"github.com/auralis-ai/auralis/pkg/realtime/gemini"
	"github.com/auralis-ai/auralis/pkg/realtime/openairt"
	"github.com/auralis-ai/auralis/pkg/realtime/reconnect"
	"github.com/auralis-ai/auralis/pkg/realtime/rttest"
	"github.com/auralis-ai/auralis/pkg/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live console session against the configured provider",
	RunE:  runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "auralis"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	rc := reconnect.Wrap(provider)

	out := console.New(cmd.OutOrStdout(), console.DefaultTheme)
	hist := &chatLog{}

	sess, err := session.New(session.Config{
		Provider:   rc,
		History:    hist,
		ChatBudget: cfg.ChatBudget,
		OnText: func(text string) {
			hist.add(envelope.RoleAssistant, text)
			out.Assistant(text)
			out.Prompt()
		},
		OnState: func(state realtime.ConnectionState) {
			out.Status("connection: %s", state)
		},
		OnInterrupted: func() {
			out.Status("interrupted")
		},
		OnError: func(err error) {
			out.Error(err)
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	agent := &realtime.Agent{
		ID:           cfg.Agent.ID,
		Name:         cfg.Agent.Name,
		Instructions: cfg.Agent.Instructions,
	}
	if err := sess.Start(ctx, agent); err != nil {
		return err
	}
	out.Status("connected to %s; type a message, ctrl-c to quit", provider.Name())
	out.Prompt()

	lines := make(chan string)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		return context.Canceled
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-sess.Done():
				return errors.New("session ended")
			case line := <-lines:
				line = strings.TrimSpace(line)
				if line == "" {
					out.Prompt()
					continue
				}
				if err := sess.SendChat(ctx, line); err != nil {
					out.Error(err)
				}
				hist.add(envelope.RoleUser, line)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	out.Status("bye")
	return nil
}

// buildProvider constructs the configured adapter. Provider selection
// lives here, outside the protocol layer.
func buildProvider(cfg *config.Config) (realtime.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		var opts []gemini.Option
		if cfg.Gemini.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Gemini.Model))
		}
		if cfg.Gemini.Voice != "" {
			opts = append(opts, gemini.WithVoice(cfg.Gemini.Voice))
		}
		return gemini.NewClient(cfg.Gemini.APIKey, opts...), nil
	case "openai":
		var opts []openairt.Option
		if cfg.OpenAI.Model != "" {
			opts = append(opts, openairt.WithModel(cfg.OpenAI.Model))
		}
		if cfg.OpenAI.Voice != "" {
			opts = append(opts, openairt.WithVoice(cfg.OpenAI.Voice))
		}
		if cfg.OpenAI.Organization != "" {
			opts = append(opts, openairt.WithOrganization(cfg.OpenAI.Organization))
		}
		return openairt.NewClient(cfg.OpenAI.APIKey, opts...), nil
	case "mock":
		return rttest.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want gemini, openai, or mock)", cfg.Provider)
	}
}

// chatLog is the in-memory conversation history backing envelope
// budgeting for the console session.
type chatLog struct {
	mu       sync.Mutex
	messages []envelope.ChatMessage
}

func (l *chatLog) add(role envelope.Role, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, envelope.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

func (l *chatLog) Snapshot() envelope.Inputs {
	l.mu.Lock()
	defer l.mu.Unlock()
	return envelope.Inputs{Chat: append([]envelope.ChatMessage(nil), l.messages...)}
}
