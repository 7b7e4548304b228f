package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Bind)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "gemini", cfg.LLM.Default)
	assert.Equal(t, []string{"openai", "demo"}, cfg.LLM.Fallbacks)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Gemini.Model)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.True(t, cfg.Appointments.AppointmentsEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Bind)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  bind: 0.0.0.0:9090
logging:
  level: debug
storage:
  backend: sqlite
llm:
  default: openai
  openai:
    apiKey: sk-test
    model: gpt-4o
    baseUrl: http://localhost:8080/v1
search:
  maxResults: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Bind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "openai", cfg.LLM.Default)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.LLM.OpenAI.BaseURL)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	// Untouched sections keep their defaults.
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Gemini.Model)
	assert.Equal(t, 3, cfg.Appointments.MaxConcurrent)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PATIENTHERO_SERVER_BIND", "127.0.0.1:12345")
	t.Setenv("PATIENTHERO_LOG_LEVEL", "TRACE")
	t.Setenv("PATIENTHERO_GEMINI_API_KEY", "gm-key")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:12345", cfg.Server.Bind)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "gm-key", cfg.LLM.Gemini.APIKey)
}

func TestExpandSensitiveFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
llm:
  gemini:
    apiKey: ${TEST_GEMINI_KEY}
search:
  exaApiKey: ${TEST_UNSET_KEY_XYZ}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("TEST_GEMINI_KEY", "resolved-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "resolved-key", cfg.LLM.Gemini.APIKey)
	// Unresolvable reference collapses to empty, which selects demo mode.
	assert.Equal(t, "", cfg.Search.ExaAPIKey)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"server": map[string]any{
			"bind": "127.0.0.1:9999",
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"server", "bind"})
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1:9999", val)
}
