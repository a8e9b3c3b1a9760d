package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:    "${OPENAI_API_KEY}",
				Model:     "gpt-4o-mini",
				RateLimit: 2.0,
				TimeoutS:  120,
			},
			Runware: RunwareConfig{
				APIKey:    "${RUNWARE_API_KEY}",
				Model:     "runware:101@1",
				RateLimit: 1.0,
				TimeoutS:  180,
			},
		},
		Pipeline: PipelineConfig{
			Workers:        4,
			RetryAttempts:  3,
			RetryBaseDelay: "2s",
			MaxQuotes:      5,
			OutputDir:      ".",
		},
		Cache: CacheConfig{
			Dir: filepath.Join(home, ".bookdeck", "cache"),
		},
	}
}
