// Package config loads and validates application configuration from
// file, environment, and flags via viper.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Docs     DocsConfig     `mapstructure:"docs"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	Root               string  `mapstructure:"root"`
	DefaultExpiryHours int     `mapstructure:"default_expiry_hours"`
	CostInputPer1K     float64 `mapstructure:"cost_input_per_1k"`
	CostOutputPer1K    float64 `mapstructure:"cost_output_per_1k"`
	AvgTokensPerCall   int     `mapstructure:"avg_tokens_per_call"`
}

// DocsConfig configures the documentation recorder.
type DocsConfig struct {
	Root    string `mapstructure:"root"`
	Backend string `mapstructure:"backend"` // json, sqlite
}

// WorkflowConfig configures workflow execution.
type WorkflowConfig struct {
	Path                string `mapstructure:"path"`
	MaxConcurrentAgents int    `mapstructure:"max_concurrent_agents"`
	SessionTimeout      string `mapstructure:"session_timeout"`
	EnableVoting        bool   `mapstructure:"enable_voting"`
	RequireConsensus    bool   `mapstructure:"require_consensus"`
	AllowTieBreaking    bool   `mapstructure:"allow_tie_breaking"`
}

// SessionTimeoutDuration parses the session timeout, defaulting to one
// hour.
func (w WorkflowConfig) SessionTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(w.SessionTimeout)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// AgentsConfig configures the available agents.
type AgentsConfig struct {
	OpenAI    AgentConfig `mapstructure:"openai"`
	Anthropic AgentConfig `mapstructure:"anthropic"`
	Google    AgentConfig `mapstructure:"google"`
}

// AgentConfig configures a single agent endpoint.
type AgentConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	TimeoutSeconds    int     `mapstructure:"timeout"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryStrategy     string  `mapstructure:"retry_strategy"`
	BaseDelaySeconds  float64 `mapstructure:"base_delay"`
	MaxDelaySeconds   float64 `mapstructure:"max_delay"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	RequestsPerHour   int     `mapstructure:"requests_per_hour"`
}

// ServerConfig configures the monitoring HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}
