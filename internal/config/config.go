// Package config loads CLI configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the CLI needs to run.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// FuzzyThreshold overrides the default similarity cutoff (0-100).
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	// Categorizer selects "gemini" or "static".
	Categorizer string `yaml:"categorizer"`
	// GeminiModel names the model used by the gemini categorizer.
	GeminiModel string `yaml:"gemini_model"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DBPath:         "finledger.db",
		FuzzyThreshold: 70,
		Categorizer:    "static",
	}
}

// Load reads the YAML config at path, merged over defaults, after loading
// a .env file if one exists (for the categorizer API key). An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy_threshold must be in [0, 100], got %v", c.FuzzyThreshold)
	}
	switch c.Categorizer {
	case "", "static", "gemini":
	default:
		return fmt.Errorf("unknown categorizer %q (want static or gemini)", c.Categorizer)
	}
	return nil
}
