// Package config handles configuration loading for conductor. It
// supports XDG config paths, project-level overrides, and environment
// variables.
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
	LLM     LLMConfig     `mapstructure:"llm"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Session SessionConfig `mapstructure:"session"`
	Intent  IntentConfig  `mapstructure:"intent"`
	Logging LoggingConfig `mapstructure:"logging"`
	// Capabilities lists the enabled worker categories.
	Capabilities []string `mapstructure:"capabilities"`
}

// LLMConfig holds language-model gateway settings.
type LLMConfig struct {
	// Provider selects the backend: anthropic, bedrock, or mock.
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	// MaxTokens caps the response length per call.
	MaxTokens int64 `mapstructure:"max_tokens"`
	// Timeout bounds a single gateway call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the number of additional attempts after a failure.
	MaxRetries int    `mapstructure:"max_retries"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// EngineConfig holds execution-engine settings.
type EngineConfig struct {
	// MaxConcurrentTasks bounds in-flight steps across all plans.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// DefaultTimeout is the per-task timeout applied to new requests.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// MaxRetries is the retry budget applied to new requests.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoff is the base inter-attempt delay.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// SessionConfig holds session-store settings.
type SessionConfig struct {
	// DBPath is the SQLite database path. Empty selects the default
	// XDG data location; ":memory:" selects the in-memory store.
	DBPath string `mapstructure:"db_path"`
	// ActivityWindow bounds how far back a session counts as active.
	ActivityWindow time.Duration `mapstructure:"activity_window"`
	// Retention is how long idle sessions are kept before purging.
	Retention time.Duration `mapstructure:"retention"`
}

// IntentConfig holds classifier settings.
type IntentConfig struct {
	// RulesFile optionally overrides the built-in keyword table.
	RulesFile string `mapstructure:"rules_file"`
	// Fallback is the tag used when no signal is conclusive.
	Fallback string `mapstructure:"fallback"`
	// UseGateway enables the language-model refinement pass.
	UseGateway bool `mapstructure:"use_gateway"`
}

// LoggingConfig holds debug-log settings.
type LoggingConfig struct {
	// DebugLog is the debug log file path. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, AWS_REGION)
// 2. Project config (.conductor.yaml in current directory or parent)
// 3. User config (~/.config/conductor/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("llm.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.LLM.APIKey = os.ExpandEnv(cfg.LLM.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
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

	cfg.LLM.APIKey = os.ExpandEnv(cfg.LLM.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.max_tokens", cfg.LLM.MaxTokens)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("llm.max_retries", cfg.LLM.MaxRetries)
	v.Set("engine.max_concurrent_tasks", cfg.Engine.MaxConcurrentTasks)
	v.Set("engine.default_timeout", cfg.Engine.DefaultTimeout.String())
	v.Set("engine.max_retries", cfg.Engine.MaxRetries)
	v.Set("engine.retry_backoff", cfg.Engine.RetryBackoff.String())
	v.Set("session.db_path", cfg.Session.DBPath)
	v.Set("session.activity_window", cfg.Session.ActivityWindow.String())
	v.Set("session.retention", cfg.Session.Retention.String())
	v.Set("intent.rules_file", cfg.Intent.RulesFile)
	v.Set("intent.fallback", cfg.Intent.Fallback)
	v.Set("intent.use_gateway", cfg.Intent.UseGateway)
	v.Set("logging.debug_log", cfg.Logging.DebugLog)
	v.Set("capabilities", cfg.Capabilities)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path, if one
// exists in the current directory or a parent.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("engine.max_concurrent_tasks", 10)
	v.SetDefault("engine.default_timeout", "300s")
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.retry_backoff", "2s")

	v.SetDefault("session.db_path", "")
	v.SetDefault("session.activity_window", "30m")
	v.SetDefault("session.retention", "720h")

	v.SetDefault("intent.rules_file", "")
	v.SetDefault("intent.fallback", "code_generation")
	v.SetDefault("intent.use_gateway", false)

	v.SetDefault("logging.debug_log", "")

	v.SetDefault("capabilities", []string{
		"code", "infrastructure", "testing", "devops",
		"documentation", "security", "planning", "review",
	})
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

// findProjectConfig searches for .conductor.yaml in the current
// directory and parents.
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

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "anthropic",
			Model:      "claude-sonnet-4-20250514",
			MaxTokens:  4096,
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Engine: EngineConfig{
			MaxConcurrentTasks: 10,
			DefaultTimeout:     300 * time.Second,
			MaxRetries:         3,
			RetryBackoff:       2 * time.Second,
		},
		Session: SessionConfig{
			ActivityWindow: 30 * time.Minute,
			Retention:      720 * time.Hour,
		},
		Intent: IntentConfig{
			Fallback: "code_generation",
		},
		Capabilities: []string{
			"code", "infrastructure", "testing", "devops",
			"documentation", "security", "planning", "review",
		},
	}
}
