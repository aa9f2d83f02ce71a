package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentide/conductor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify conductor configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/conductor/config.yaml
Project-specific overrides can be placed in .conductor.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.LLM.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("llm.provider: %s\n", cfg.LLM.Provider)
	fmt.Printf("llm.model: %s\n", cfg.LLM.Model)
	fmt.Printf("llm.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("llm.max_tokens: %d\n", cfg.LLM.MaxTokens)
	fmt.Printf("llm.timeout: %s\n", cfg.LLM.Timeout)
	fmt.Printf("llm.max_retries: %d\n", cfg.LLM.MaxRetries)
	fmt.Printf("engine.max_concurrent_tasks: %d\n", cfg.Engine.MaxConcurrentTasks)
	fmt.Printf("engine.default_timeout: %s\n", cfg.Engine.DefaultTimeout)
	fmt.Printf("engine.max_retries: %d\n", cfg.Engine.MaxRetries)
	fmt.Printf("engine.retry_backoff: %s\n", cfg.Engine.RetryBackoff)
	fmt.Printf("session.db_path: %s\n", cfg.Session.DBPath)
	fmt.Printf("session.activity_window: %s\n", cfg.Session.ActivityWindow)
	fmt.Printf("session.retention: %s\n", cfg.Session.Retention)
	fmt.Printf("intent.rules_file: %s\n", cfg.Intent.RulesFile)
	fmt.Printf("intent.fallback: %s\n", cfg.Intent.Fallback)
	fmt.Printf("intent.use_gateway: %t\n", cfg.Intent.UseGateway)
	fmt.Printf("logging.debug_log: %s\n", cfg.Logging.DebugLog)
	fmt.Printf("capabilities: %s\n", strings.Join(cfg.Capabilities, ","))
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "llm.provider":
		return cfg.LLM.Provider, nil
	case "llm.model":
		return cfg.LLM.Model, nil
	case "llm.api_key":
		if cfg.LLM.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "llm.max_tokens":
		return strconv.FormatInt(cfg.LLM.MaxTokens, 10), nil
	case "llm.timeout":
		return cfg.LLM.Timeout.String(), nil
	case "llm.max_retries":
		return strconv.Itoa(cfg.LLM.MaxRetries), nil
	case "engine.max_concurrent_tasks":
		return strconv.Itoa(cfg.Engine.MaxConcurrentTasks), nil
	case "engine.default_timeout":
		return cfg.Engine.DefaultTimeout.String(), nil
	case "engine.max_retries":
		return strconv.Itoa(cfg.Engine.MaxRetries), nil
	case "engine.retry_backoff":
		return cfg.Engine.RetryBackoff.String(), nil
	case "session.db_path":
		return cfg.Session.DBPath, nil
	case "session.activity_window":
		return cfg.Session.ActivityWindow.String(), nil
	case "session.retention":
		return cfg.Session.Retention.String(), nil
	case "intent.rules_file":
		return cfg.Intent.RulesFile, nil
	case "intent.fallback":
		return cfg.Intent.Fallback, nil
	case "intent.use_gateway":
		return strconv.FormatBool(cfg.Intent.UseGateway), nil
	case "logging.debug_log":
		return cfg.Logging.DebugLog, nil
	case "capabilities":
		return strings.Join(cfg.Capabilities, ","), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.LLM.MaxTokens = n
	case "llm.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for llm.timeout: %w", err)
		}
		cfg.LLM.Timeout = d
	case "llm.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for llm.max_retries: %w", err)
		}
		cfg.LLM.MaxRetries = n
	case "engine.max_concurrent_tasks":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrent_tasks: %w", err)
		}
		cfg.Engine.MaxConcurrentTasks = n
	case "engine.default_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for engine.default_timeout: %w", err)
		}
		cfg.Engine.DefaultTimeout = d
	case "engine.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for engine.max_retries: %w", err)
		}
		cfg.Engine.MaxRetries = n
	case "engine.retry_backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for engine.retry_backoff: %w", err)
		}
		cfg.Engine.RetryBackoff = d
	case "session.db_path":
		cfg.Session.DBPath = value
	case "session.activity_window":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for session.activity_window: %w", err)
		}
		cfg.Session.ActivityWindow = d
	case "session.retention":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for session.retention: %w", err)
		}
		cfg.Session.Retention = d
	case "intent.rules_file":
		cfg.Intent.RulesFile = value
	case "intent.fallback":
		cfg.Intent.Fallback = value
	case "intent.use_gateway":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for intent.use_gateway: %w", err)
		}
		cfg.Intent.UseGateway = b
	case "logging.debug_log":
		cfg.Logging.DebugLog = value
	case "capabilities":
		cfg.Capabilities = strings.Split(value, ",")
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
