package config

// Defaults returns the default configuration. Per-agent limits mirror
// the providers' published tiers.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Cache: CacheConfig{
			Root:               ".maestro/cache",
			DefaultExpiryHours: 72,
			CostInputPer1K:     0.03,
			CostOutputPer1K:    0.06,
			AvgTokensPerCall:   2000,
		},
		Docs: DocsConfig{
			Root:    ".maestro/docs",
			Backend: "json",
		},
		Workflow: WorkflowConfig{
			Path:                "workflows/default.yaml",
			MaxConcurrentAgents: 4,
			SessionTimeout:      "1h",
			EnableVoting:        true,
			RequireConsensus:    true,
			AllowTieBreaking:    true,
		},
		Agents: AgentsConfig{
			OpenAI: AgentConfig{
				Enabled:           true,
				Model:             "gpt-4",
				BaseURL:           "https://api.openai.com/v1",
				MaxTokens:         4000,
				TimeoutSeconds:    60,
				MaxRetries:        3,
				RetryStrategy:     "exponential",
				BaseDelaySeconds:  1,
				MaxDelaySeconds:   30,
				RequestsPerMinute: 500,
				RequestsPerHour:   10000,
			},
			Anthropic: AgentConfig{
				Enabled:           true,
				Model:             "claude-3-5-sonnet-20241022",
				BaseURL:           "https://api.anthropic.com",
				MaxTokens:         4000,
				TimeoutSeconds:    60,
				MaxRetries:        3,
				RetryStrategy:     "exponential",
				BaseDelaySeconds:  1,
				MaxDelaySeconds:   30,
				RequestsPerMinute: 50,
				RequestsPerHour:   1000,
			},
			Google: AgentConfig{
				Enabled:           false,
				Model:             "gemini-1.5-pro",
				BaseURL:           "https://generativelanguage.googleapis.com/v1beta",
				MaxTokens:         4000,
				TimeoutSeconds:    60,
				MaxRetries:        3,
				RetryStrategy:     "exponential",
				BaseDelaySeconds:  1,
				MaxDelaySeconds:   30,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8764",
		},
	}
}
