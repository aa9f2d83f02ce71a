package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected default model %q", cfg.LLM.Model)
	}
	if cfg.Engine.MaxConcurrentTasks != 10 {
		t.Errorf("expected max_concurrent_tasks 10, got %d", cfg.Engine.MaxConcurrentTasks)
	}
	if cfg.Engine.DefaultTimeout != 300*time.Second {
		t.Errorf("expected default timeout 300s, got %v", cfg.Engine.DefaultTimeout)
	}
	if cfg.Engine.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Engine.MaxRetries)
	}
	if cfg.Session.ActivityWindow != 30*time.Minute {
		t.Errorf("expected activity window 30m, got %v", cfg.Session.ActivityWindow)
	}
	if len(cfg.Capabilities) != 8 {
		t.Errorf("expected 8 default capabilities, got %d", len(cfg.Capabilities))
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
llm:
  provider: mock
  model: test-model
  timeout: 10s
engine:
  max_concurrent_tasks: 3
  retry_backoff: 500ms
session:
  db_path: ":memory:"
capabilities:
  - code
  - testing
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.LLM.Provider != "mock" || cfg.LLM.Model != "test-model" {
		t.Errorf("llm config not loaded: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.LLM.Timeout)
	}
	if cfg.Engine.MaxConcurrentTasks != 3 {
		t.Errorf("max_concurrent_tasks = %d, want 3", cfg.Engine.MaxConcurrentTasks)
	}
	if cfg.Engine.RetryBackoff != 500*time.Millisecond {
		t.Errorf("retry_backoff = %v, want 500ms", cfg.Engine.RetryBackoff)
	}
	if cfg.Session.DBPath != ":memory:" {
		t.Errorf("db_path = %q, want :memory:", cfg.Session.DBPath)
	}
	if len(cfg.Capabilities) != 2 {
		t.Errorf("capabilities = %v, want [code testing]", cfg.Capabilities)
	}
	// Unset keys keep their defaults.
	if cfg.Engine.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want the default 3", cfg.Engine.MaxRetries)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestAPIKeyEnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("CONDUCTOR_TEST_KEY", "sk-ant-test123")
	content := "llm:\n  api_key: ${CONDUCTOR_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-ant-test123" {
		t.Errorf("api key = %q, env reference not expanded", cfg.LLM.APIKey)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.LLM.Provider = "mock"
	cfg.Engine.MaxConcurrentTasks = 5
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.LLM.Provider != "mock" || loaded.Engine.MaxConcurrentTasks != 5 {
		t.Errorf("saved values lost: %+v", loaded)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("llm:\n  provider: mock\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var latest atomic.Pointer[Config]
	reloaded := make(chan struct{}, 4)
	w, err := Watch(configPath, func(cfg *Config) {
		latest.Store(cfg)
		reloaded <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(configPath, []byte("llm:\n  provider: bedrock\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
	if cfg := latest.Load(); cfg == nil || cfg.LLM.Provider != "bedrock" {
		t.Errorf("reloaded config = %+v, want provider bedrock", latest.Load())
	}
}
