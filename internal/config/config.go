package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level ledgerfeed.yaml configuration.
type Config struct {
	Import   ImportConfig   `yaml:"import"`
	Matching MatchingConfig `yaml:"matching"`
}

// ImportConfig bounds what a single upload may contain. These limits are
// enforced before the pipeline is invoked.
type ImportConfig struct {
	MaxFileBytes    int64  `yaml:"max_file_bytes"`
	MaxRows         int    `yaml:"max_rows"`
	ErrorSample     int    `yaml:"error_sample"`
	DefaultCurrency string `yaml:"default_currency"`
}

// MatchingConfig tunes the enrichment matchers.
type MatchingConfig struct {
	RecipientSimilarity   float64 `yaml:"recipient_similarity"`
	TransferMinConfidence float64 `yaml:"transfer_min_confidence"`
}

// Load reads a ledgerfeed.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			MaxFileBytes:    5 << 20,
			MaxRows:         10000,
			ErrorSample:     10,
			DefaultCurrency: "EUR",
		},
		Matching: MatchingConfig{
			RecipientSimilarity:   0.85,
			TransferMinConfidence: 0.5,
		},
	}
}
