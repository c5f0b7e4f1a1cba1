package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSchemaVersion is stamped onto a config created by Init when none is
// specified on disk.
const DefaultSchemaVersion = 1

// Load reads and parses a repository configuration from the given YAML file
// path, then applies defaults for anything left unset.
func Load(path string) (*RepositoryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg RepositoryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault loads <svcsDir>/config.yaml, or <svcsDir>/config.json when
// there is no YAML file (yaml.v3 parses JSON too), or returns a defaulted
// config if neither file exists yet (a freshly-initialized repository).
func LoadDefault(svcsDir string) (*RepositoryConfig, error) {
	for _, name := range []string{"config.yaml", "config.json"} {
		path := filepath.Join(svcsDir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := &RepositoryConfig{}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes cfg to <svcsDir>/config.yaml.
func Save(svcsDir string, cfg *RepositoryConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(svcsDir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyDefaults fills in zero-value fields with their repository defaults.
func applyDefaults(cfg *RepositoryConfig) {
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = DefaultSchemaVersion
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.0-flash"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 30
	}
}
