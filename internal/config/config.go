// Package config handles configuration loading and management for conductor.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for conductor.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Server       ServerConfig       `mapstructure:"server"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Storage      StorageConfig      `mapstructure:"storage"`
	TUI          TUIConfig          `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	UseBedrock    bool   `mapstructure:"use_bedrock"`
	BedrockRegion string `mapstructure:"bedrock_region"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
	// ReplayBuffer is how many recent events per task are kept in memory
	// for late SSE subscribers. Zero disables the buffer.
	ReplayBuffer int `mapstructure:"replay_buffer"`
}

// OrchestratorConfig holds task execution tuning.
type OrchestratorConfig struct {
	// MaxIterations caps model calls per agent run.
	MaxIterations int `mapstructure:"max_iterations"`
	// StatusUpdateLimit is the consecutive status_update calls allowed
	// before further calls are rejected.
	StatusUpdateLimit int `mapstructure:"status_update_limit"`
	// SystemPrompt overrides the built-in supervisor prompt when set.
	SystemPrompt string `mapstructure:"system_prompt"`
	// SubagentsFile points at a YAML file declaring delegatable agent
	// types. Empty means the built-in set.
	SubagentsFile string `mapstructure:"subagents_file"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// DBPath overrides the default XDG database location when set.
	DBPath string `mapstructure:"db_path"`
	// EventRetention is how long persisted events are kept before purge.
	EventRetention time.Duration `mapstructure:"event_retention"`
}

// TUIConfig holds terminal display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
	// Plain disables the interactive viewer in favor of line output.
	Plain bool `mapstructure:"plain"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CONDUCTOR_*)
// 2. Project config (.conductor.yaml in current directory or parent)
// 3. User config (~/.config/conductor/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over the user config.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CONDUCTOR")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "CONDUCTOR_MODEL")
	v.BindEnv("server.port", "CONDUCTOR_PORT")
	v.BindEnv("storage.db_path", "CONDUCTOR_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.bedrock_region", cfg.Anthropic.BedrockRegion)
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("server.replay_buffer", cfg.Server.ReplayBuffer)
	v.Set("orchestrator.max_iterations", cfg.Orchestrator.MaxIterations)
	v.Set("orchestrator.status_update_limit", cfg.Orchestrator.StatusUpdateLimit)
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("storage.event_retention", cfg.Storage.EventRetention.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.bedrock_region", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8420)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.replay_buffer", 0)

	v.SetDefault("orchestrator.max_iterations", 50)
	v.SetDefault("orchestrator.status_update_limit", 2)
	v.SetDefault("orchestrator.system_prompt", "")
	v.SetDefault("orchestrator.subagents_file", "")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.event_retention", "168h")

	v.SetDefault("tui.refresh_rate", "100ms")
	v.SetDefault("tui.plain", false)
}

// getUserConfigDir returns the XDG config directory for conductor.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conductor")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig searches for .conductor.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conductor.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8420,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:     50,
			StatusUpdateLimit: 2,
		},
		Storage: StorageConfig{
			EventRetention: 7 * 24 * time.Hour,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
