// Package config loads the auralis CLI configuration from a YAML file
// with environment-variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// appDir is the directory name under os.UserConfigDir().
const appDir = "auralis"

// Config is the root CLI configuration.
type Config struct {
	// Provider selects the adapter: "gemini", "openai", or "mock".
	Provider string `yaml:"provider"`

	Agent  AgentConfig  `yaml:"agent"`
	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`

	// ChatBudget is the envelope token budget for outbound chat.
	// Zero means the session default.
	ChatBudget int `yaml:"chat_budget"`
}

// AgentConfig describes the agent persona supplied on connect.
type AgentConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Instructions string `yaml:"instructions"`
}

// GeminiConfig configures the Gemini-style adapter.
type GeminiConfig struct {
	// APIKey may be left empty and supplied via GEMINI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	Voice  string `yaml:"voice"`
}

// OpenAIConfig configures the OpenAI-style adapter.
type OpenAIConfig struct {
	// APIKey may be left empty and supplied via OPENAI_API_KEY.
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	Voice        string `yaml:"voice"`
	Organization string `yaml:"organization"`
}

// DefaultPath returns the default config file location,
// os.UserConfigDir()/auralis/config.yaml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, "config.yaml"), nil
}

// Load reads a config file and applies environment overrides. A missing
// file yields a config with defaults only, not an error, so commands
// that need no credentials still work.
func Load(path string) (*Config, error) {
	cfg := &Config{Provider: "mock"}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("AURALIS_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	return cfg, nil
}

// Save writes the config back to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
