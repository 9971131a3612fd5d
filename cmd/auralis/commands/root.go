package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/auralis-ai/auralis/cmd/auralis/internal/config"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "auralis",
	Short: "Realtime voice and screen-context AI sessions",
	Long: `auralis - stream voice and screen context to a realtime AI provider.

Providers:
  gemini   Gemini-style live protocol (audio + video)
  openai   OpenAI-style realtime protocol (audio only)
  mock     In-memory provider for offline use

Configuration lives in the OS config directory:
  macOS:   ~/Library/Application Support/auralis/config.yaml
  Linux:   ~/.config/auralis/config.yaml
  Windows: %AppData%\auralis\config.yaml

API keys may also come from GEMINI_API_KEY / OPENAI_API_KEY.

Examples:
  # Live console session with the configured provider
  auralis run

  # Inspect context budgeting for a transcript
  auralis envelope -f transcript.yaml --budget 400`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves the config path and loads it.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
