package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `
name: my-repo
schema_version: 1
llm:
  model: gemini-2.0-flash
  timeout_seconds: 30
logging:
  level: info
  quiet: false
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Name != "my-repo" {
		t.Errorf("Name = %q, want %q", cfg.Name, "my-repo")
	}
	if cfg.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", cfg.SchemaVersion)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "gemini-2.0-flash")
	}
}

func TestLoadDefaultsAppliedOnMissingFields(t *testing.T) {
	path := writeTestConfig(t, "name: minimal\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SchemaVersion != DefaultSchemaVersion {
		t.Errorf("SchemaVersion = %d, want default %d", cfg.SchemaVersion, DefaultSchemaVersion)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.LLM.TimeoutSeconds != 30 {
		t.Errorf("LLM.TimeoutSeconds = %d, want 30", cfg.LLM.TimeoutSeconds)
	}
}

func TestLoadDefaultMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadDefault(dir)
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.SchemaVersion != DefaultSchemaVersion {
		t.Errorf("SchemaVersion = %d, want default %d", cfg.SchemaVersion, DefaultSchemaVersion)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &RepositoryConfig{Name: "roundtrip", SchemaVersion: 1}
	applyDefaults(cfg)
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := LoadDefault(dir)
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if loaded.Name != "roundtrip" {
		t.Errorf("Name = %q, want %q", loaded.Name, "roundtrip")
	}
}

func TestValidateRejectsBadSchemaVersion(t *testing.T) {
	cfg := &RepositoryConfig{Name: "x", SchemaVersion: 0}
	errs := Validate(cfg)
	if len(errs) == 0 {
		t.Fatal("expected a validation error for schema_version 0")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &RepositoryConfig{Name: "x", SchemaVersion: 1, Logging: LoggingConfig{Level: "verbose"}}
	errs := Validate(cfg)
	found := false
	for _, e := range errs {
		if e.Field == "logging.level" {
			found = true
		}
	}
	if !found {
		t.Error("expected a validation error for logging.level")
	}
}
