package config

// RepositoryConfig is the top-level structure parsed from a repository's
// .svcs/config.yaml (spec §6.4: "repository name, schema version, optional
// LLM settings").
type RepositoryConfig struct {
	Name          string        `yaml:"name"`
	SchemaVersion int           `yaml:"schema_version"`
	LLM           LLMConfig     `yaml:"llm"`
	Logging       LoggingConfig `yaml:"logging"`
}

// LLMConfig controls the layer 5b abstract-change detector. APIKey is
// normally left empty here and sourced from SVCS_LLM_API_KEY (§6.5); a
// config value is honored only as a fallback for non-interactive setups
// where the environment can't be relied on (e.g. a server-side bare repo).
type LLMConfig struct {
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Disabled       bool   `yaml:"disabled"`
}

// LoggingConfig controls the structured logger (§4.9 "Quiet mode", §6.5).
type LoggingConfig struct {
	Level string `yaml:"level"`
	Quiet bool   `yaml:"quiet"`
}
