package main

import (
	"fmt"

	"github.com/agentide/conductor/internal/config"
	"github.com/agentide/conductor/internal/engine"
	"github.com/agentide/conductor/internal/intent"
	"github.com/agentide/conductor/internal/llm"
	"github.com/agentide/conductor/internal/orchestrator"
	"github.com/agentide/conductor/internal/registry"
	"github.com/agentide/conductor/internal/session"
	"github.com/agentide/conductor/internal/version"
	"github.com/agentide/conductor/internal/worker"
	"github.com/agentide/conductor/pkg/models"
)

// buildOrchestrator assembles the full orchestration stack from
// configuration: gateway, workers, registry, classifier, session store.
func buildOrchestrator(cfg *config.Config, workspacePath string) (*orchestrator.Orchestrator, error) {
	gateway, err := llm.New(llm.Config{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		MaxTokens:  cfg.LLM.MaxTokens,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		AWSRegion:  cfg.LLM.AWSRegion,
		AWSProfile: cfg.LLM.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm gateway: %w", err)
	}

	reg, err := buildRegistry(cfg, gateway)
	if err != nil {
		return nil, err
	}

	classifier, err := buildClassifier(cfg, gateway)
	if err != nil {
		return nil, err
	}

	store, err := openSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	logger := orchestrator.NopLogger()
	if cfg.Logging.DebugLog != "" {
		logger, err = orchestrator.NewDebugLogger(cfg.Logging.DebugLog)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
	} else if workspacePath != "" {
		logger = orchestrator.NewDebugLoggerForWorkspace(workspacePath)
	}

	engineCfg := engine.Config{
		MaxConcurrentTasks: cfg.Engine.MaxConcurrentTasks,
		RetryBackoff:       cfg.Engine.RetryBackoff,
	}

	return orchestrator.New(classifier, reg, store, engineCfg,
		orchestrator.WithLogger(logger),
		orchestrator.WithVersion(version.Get()),
		orchestrator.WithActivityWindow(cfg.Session.ActivityWindow),
		orchestrator.WithTaskDefaults(cfg.Engine.DefaultTimeout, cfg.Engine.MaxRetries),
	), nil
}

// buildRegistry registers one language-model worker per enabled
// capability.
func buildRegistry(cfg *config.Config, gateway llm.Gateway) (*registry.Registry, error) {
	reg := registry.New()
	for _, name := range cfg.Capabilities {
		capability := models.CapabilityType(name)
		if !capability.Valid() {
			return nil, fmt.Errorf("unknown capability %q in configuration", name)
		}
		reg.Register(worker.NewLLMWorker(capability, gateway, cfg.LLM.Model))
	}
	if reg.Count() == 0 {
		return nil, fmt.Errorf("no capabilities enabled in configuration")
	}
	return reg, nil
}

func buildClassifier(cfg *config.Config, gateway llm.Gateway) (*intent.Classifier, error) {
	var opts []intent.Option

	if cfg.Intent.RulesFile != "" {
		rules, err := intent.LoadRules(cfg.Intent.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load intent rules: %w", err)
		}
		opts = append(opts, intent.WithRules(rules))
	}
	if cfg.Intent.Fallback != "" {
		fallback := models.IntentType(cfg.Intent.Fallback)
		if !fallback.Valid() {
			return nil, fmt.Errorf("unknown fallback intent %q in configuration", cfg.Intent.Fallback)
		}
		opts = append(opts, intent.WithFallback(fallback))
	}
	if cfg.Intent.UseGateway {
		opts = append(opts, intent.WithGateway(gateway))
	}

	return intent.New(opts...), nil
}

// openSessionStore selects the store backend from the configured path:
// ":memory:" keeps sessions in process, anything else opens SQLite.
func openSessionStore(cfg *config.Config) (session.SessionStore, error) {
	if cfg.Session.DBPath == ":memory:" {
		return session.NewMemory(), nil
	}

	path := cfg.Session.DBPath
	if path == "" {
		path = session.DefaultDBPath()
	}

	store, err := session.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate session store: %w", err)
	}
	if cfg.Session.Retention > 0 {
		// Best effort; stale rows do not block startup.
		store.PurgeOldSessions(cfg.Session.Retention)
	}
	return store, nil
}
