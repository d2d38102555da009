// Package config loads pharmaintel configuration from an optional YAML file
// and PHARMAINTEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
)

// EnvPrefix prefixes every environment override, e.g. PHARMAINTEL_AGENT_TIMEOUT.
const EnvPrefix = "PHARMAINTEL"

// Supported model providers.
const (
	ProviderStatic    = "static"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all configuration for the CLI.
type Config struct {
	AgentTimeout time.Duration `mapstructure:"agent_timeout"`
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	Catalog      string        `mapstructure:"catalog"`
	EventBuffer  int           `mapstructure:"event_buffer"`
	Anthropic    APIConfig     `mapstructure:"anthropic"`
	OpenAI       APIConfig     `mapstructure:"openai"`
	Log          LogConfig     `mapstructure:"log"`
	Archive      ArchiveConfig `mapstructure:"archive"`
}

// APIConfig holds provider credentials. Empty keys fall back to the SDK's own
// environment lookup.
type APIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ArchiveConfig selects the session archive. An empty path keeps sessions in memory.
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from path, or from pharmaintel.yaml in the working
// directory or the user config directory when path is empty. A missing
// default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pharmaintel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(UserConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = os.ExpandEnv(cfg.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports a core.ConfigurationError for unusable settings.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderStatic, ProviderAnthropic, ProviderOpenAI:
	default:
		return core.NewConfigurationError("unknown provider %q", c.Provider)
	}
	if c.AgentTimeout < 0 {
		return core.NewConfigurationError("agent_timeout must not be negative, got %s", c.AgentTimeout)
	}
	if c.EventBuffer < 1 {
		return core.NewConfigurationError("event_buffer must be at least 1, got %d", c.EventBuffer)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return core.NewConfigurationError("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Logger builds the pipeline logger described by the log settings.
func (c *Config) Logger(out io.Writer) *logging.PipelineLogger {
	return logging.NewPipelineLogger(&logging.Config{
		Level:  logging.ParseLevel(c.Log.Level),
		Format: c.Log.Format,
		Output: out,
	})
}

// UserConfigDir returns the XDG config directory for pharmaintel.
func UserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pharmaintel")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "pharmaintel")
	}
	return filepath.Join(home, ".config", "pharmaintel")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent_timeout", "2m")
	v.SetDefault("provider", ProviderStatic)
	v.SetDefault("model", "")
	v.SetDefault("catalog", "")
	v.SetDefault("event_buffer", 64)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("openai.api_key", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("archive.path", "")
}
