package config

import (
	"fmt"

	"github.com/altowierigge/maestro/internal/core"
)

// Validate fails fast on configuration defects, before any phase runs.
func Validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("unknown log level %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "", "auto", "text", "json":
	default:
		return core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("unknown log format %q", cfg.Log.Format))
	}

	if cfg.Cache.Root == "" {
		return core.ErrConfiguration(core.CodeInvalidConfig, "cache root is empty")
	}
	if cfg.Cache.DefaultExpiryHours < 0 {
		return core.ErrConfiguration(core.CodeInvalidConfig, "cache expiry cannot be negative")
	}

	switch cfg.Docs.Backend {
	case "", "json", "sqlite":
	default:
		return core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("unknown docs backend %q", cfg.Docs.Backend))
	}

	if cfg.Workflow.MaxConcurrentAgents <= 0 {
		return core.ErrConfiguration(core.CodeInvalidConfig, "max_concurrent_agents must be positive")
	}

	for name, agent := range map[string]AgentConfig{
		"openai":    cfg.Agents.OpenAI,
		"anthropic": cfg.Agents.Anthropic,
		"google":    cfg.Agents.Google,
	} {
		if !agent.Enabled {
			continue
		}
		if agent.MaxTokens <= 0 {
			return core.ErrConfiguration(core.CodeInvalidConfig,
				fmt.Sprintf("agent %s: max_tokens must be positive", name))
		}
		if agent.TimeoutSeconds <= 0 {
			return core.ErrConfiguration(core.CodeInvalidConfig,
				fmt.Sprintf("agent %s: timeout must be positive", name))
		}
		if agent.RequestsPerMinute <= 0 || agent.RequestsPerHour <= 0 {
			return core.ErrConfiguration(core.CodeInvalidConfig,
				fmt.Sprintf("agent %s: rate limits must be positive", name))
		}
	}
	return nil
}
