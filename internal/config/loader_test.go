package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altowierigge/maestro/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 72, cfg.Cache.DefaultExpiryHours)
	assert.Equal(t, "json", cfg.Docs.Backend)
	assert.Equal(t, "gpt-4", cfg.Agents.OpenAI.Model)
	assert.Equal(t, 500, cfg.Agents.OpenAI.RequestsPerMinute)
	assert.Equal(t, 50, cfg.Agents.Anthropic.RequestsPerMinute)
	assert.False(t, cfg.Agents.Google.Enabled)
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log:
  level: debug
cache:
  default_expiry_hours: 24
agents:
  openai:
    model: gpt-4-turbo
    requests_per_minute: 100
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 24, cfg.Cache.DefaultExpiryHours)
	assert.Equal(t, "gpt-4-turbo", cfg.Agents.OpenAI.Model)
	assert.Equal(t, 100, cfg.Agents.OpenAI.RequestsPerMinute)
	// Untouched defaults survive partial overrides.
	assert.Equal(t, 10000, cfg.Agents.OpenAI.RequestsPerHour)
}

func TestLoad_APIKeysFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("ANTHROPIC_API_KEY", " sk-ant-padded ")

	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Agents.OpenAI.APIKey)
	assert.Equal(t, "sk-ant-padded", cfg.Agents.Anthropic.APIKey, "keys are trimmed")
}

func TestLoad_ExplicitKeyWinsOverEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load(writeConfig(t, `
agents:
  openai:
    api_key: sk-explicit
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", cfg.Agents.OpenAI.APIKey)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"bad log level":    "log:\n  level: loud\n",
		"bad docs backend": "docs:\n  backend: oracle\n",
		"bad concurrency":  "workflow:\n  max_concurrent_agents: 0\n",
		"bad rate limit":   "agents:\n  openai:\n    requests_per_minute: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatConfig))
		})
	}
}

func TestLoad_DisabledAgentSkipsValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `
agents:
  google:
    enabled: false
    requests_per_minute: -5
`))
	assert.NoError(t, err, "disabled agents are not validated")
}

func TestSessionTimeoutDuration(t *testing.T) {
	w := WorkflowConfig{SessionTimeout: "30m"}
	assert.Equal(t, "30m0s", w.SessionTimeoutDuration().String())

	w = WorkflowConfig{SessionTimeout: "garbage"}
	assert.Equal(t, "1h0m0s", w.SessionTimeoutDuration().String())
}
