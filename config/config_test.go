package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pharmaintel/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pharmaintel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() *Config {
	return &Config{
		AgentTimeout: time.Minute,
		Provider:     ProviderStatic,
		EventBuffer:  16,
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.AgentTimeout)
	assert.Equal(t, ProviderStatic, cfg.Provider)
	assert.Equal(t, 64, cfg.EventBuffer)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Archive.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	t.Setenv("PHARMA_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
agent_timeout: 30s
provider: anthropic
model: claude-test
event_buffer: 8
anthropic:
  api_key: ${PHARMA_TEST_KEY}
log:
  level: debug
  format: json
archive:
  path: /tmp/sessions.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.AgentTimeout)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-test", cfg.Model)
	assert.Equal(t, 8, cfg.EventBuffer)
	assert.Equal(t, "sk-from-env", cfg.Anthropic.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/sessions.db", cfg.Archive.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "provider: static\n")
	t.Setenv("PHARMAINTEL_AGENT_TIMEOUT", "5s")
	t.Setenv("PHARMAINTEL_PROVIDER", "openai")
	t.Setenv("PHARMAINTEL_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.AgentTimeout)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"provider", func(c *Config) { c.Provider = "bard" }},
		{"timeout", func(c *Config) { c.AgentTimeout = -time.Second }},
		{"buffer", func(c *Config) { c.EventBuffer = 0 }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrConfiguration)
		})
	}

	path := writeConfig(t, "provider: bard\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
