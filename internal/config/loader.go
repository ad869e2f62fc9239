package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/altowierigge/maestro/internal/core"
)

// Load reads configuration from the given file (optional), environment
// variables, and defaults, in ascending precedence of defaults < file <
// environment. API keys are taken from the conventional provider
// variables when not set explicitly.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".maestro")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MAESTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, core.ErrConfiguration(core.CodeInvalidConfig,
				fmt.Sprintf("reading config file %s", v.ConfigFileUsed())).WithCause(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig, "config file does not match schema").WithCause(err)
	}

	// Provider API keys follow the conventional environment variables.
	bindAPIKey(&cfg.Agents.OpenAI, v, "OPENAI_API_KEY")
	bindAPIKey(&cfg.Agents.Anthropic, v, "ANTHROPIC_API_KEY")
	bindAPIKey(&cfg.Agents.Google, v, "GOOGLE_API_KEY")

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindAPIKey(agent *AgentConfig, v *viper.Viper, envVar string) {
	if agent.APIKey != "" {
		return
	}
	_ = v.BindEnv(envVar, envVar)
	if key := strings.TrimSpace(v.GetString(envVar)); key != "" {
		agent.APIKey = key
	}
}

func setDefaults(v *viper.Viper, defaults Config) {
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("cache.root", defaults.Cache.Root)
	v.SetDefault("cache.default_expiry_hours", defaults.Cache.DefaultExpiryHours)
	v.SetDefault("cache.cost_input_per_1k", defaults.Cache.CostInputPer1K)
	v.SetDefault("cache.cost_output_per_1k", defaults.Cache.CostOutputPer1K)
	v.SetDefault("cache.avg_tokens_per_call", defaults.Cache.AvgTokensPerCall)
	v.SetDefault("docs.root", defaults.Docs.Root)
	v.SetDefault("docs.backend", defaults.Docs.Backend)
	v.SetDefault("workflow.path", defaults.Workflow.Path)
	v.SetDefault("workflow.max_concurrent_agents", defaults.Workflow.MaxConcurrentAgents)
	v.SetDefault("workflow.session_timeout", defaults.Workflow.SessionTimeout)
	v.SetDefault("workflow.enable_voting", defaults.Workflow.EnableVoting)
	v.SetDefault("workflow.require_consensus", defaults.Workflow.RequireConsensus)
	v.SetDefault("workflow.allow_tie_breaking", defaults.Workflow.AllowTieBreaking)
	v.SetDefault("server.addr", defaults.Server.Addr)

	for name, agent := range map[string]AgentConfig{
		"openai":    defaults.Agents.OpenAI,
		"anthropic": defaults.Agents.Anthropic,
		"google":    defaults.Agents.Google,
	} {
		prefix := "agents." + name + "."
		v.SetDefault(prefix+"enabled", agent.Enabled)
		v.SetDefault(prefix+"model", agent.Model)
		v.SetDefault(prefix+"base_url", agent.BaseURL)
		v.SetDefault(prefix+"max_tokens", agent.MaxTokens)
		v.SetDefault(prefix+"timeout", agent.TimeoutSeconds)
		v.SetDefault(prefix+"max_retries", agent.MaxRetries)
		v.SetDefault(prefix+"retry_strategy", agent.RetryStrategy)
		v.SetDefault(prefix+"base_delay", agent.BaseDelaySeconds)
		v.SetDefault(prefix+"max_delay", agent.MaxDelaySeconds)
		v.SetDefault(prefix+"requests_per_minute", agent.RequestsPerMinute)
		v.SetDefault(prefix+"requests_per_hour", agent.RequestsPerHour)
	}
}
