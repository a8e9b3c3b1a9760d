// Package config loads bookdeck configuration from file, environment, and
// defaults, in that precedence order.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
}

// ProvidersConfig holds the external service settings.
type ProvidersConfig struct {
	OpenAI  OpenAIConfig  `mapstructure:"openai" yaml:"openai"`
	Runware RunwareConfig `mapstructure:"runware" yaml:"runware"`
}

// OpenAIConfig configures the text-enrichment service.
type OpenAIConfig struct {
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`
	Model     string  `mapstructure:"model" yaml:"model"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutS  int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// RunwareConfig configures the image-generation service.
type RunwareConfig struct {
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`
	Model     string  `mapstructure:"model" yaml:"model"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutS  int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// PipelineConfig configures the enrichment run.
type PipelineConfig struct {
	Workers        int    `mapstructure:"workers" yaml:"workers"`
	RetryAttempts  uint   `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryBaseDelay string `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	MaxQuotes      int    `mapstructure:"max_quotes" yaml:"max_quotes"`
	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`
}

// RetryBaseDelayDuration parses the configured delay, falling back to the
// default on malformed input.
func (p PipelineConfig) RetryBaseDelayDuration() time.Duration {
	d, err := time.ParseDuration(p.RetryBaseDelay)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
}

// Load reads configuration from cfgFile (or the default search path), the
// BOOKDECK_* environment, and the built-in defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("providers", structToMap(defaults.Providers))
	v.SetDefault("pipeline", structToMap(defaults.Pipeline))
	v.SetDefault("cache", structToMap(defaults.Cache))

	v.SetEnvPrefix("BOOKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bookdeck")
	}

	if err := v.ReadInConfig(); err != nil {
		// An explicitly named file must exist; the default search path is
		// optional.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Providers.OpenAI.APIKey = ResolveEnvVars(cfg.Providers.OpenAI.APIKey)
	cfg.Providers.Runware.APIKey = ResolveEnvVars(cfg.Providers.Runware.APIKey)

	return &cfg, nil
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := []byte(`# bookdeck configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx RUNWARE_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

// structToMap round-trips a config struct through yaml so viper can use it
// as a nested default.
func structToMap(v any) map[string]any {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
