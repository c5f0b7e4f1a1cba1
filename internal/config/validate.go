package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedLevels = map[string]bool{
	"error": true, "warn": true, "info": true, "debug": true,
}

// Validate checks a RepositoryConfig for structural and semantic errors. It
// returns every error found (empty if valid).
func Validate(cfg *RepositoryConfig) []ValidationError {
	var errs []ValidationError

	if cfg.SchemaVersion <= 0 {
		errs = append(errs, ValidationError{Field: "schema_version", Message: "must be a positive integer"})
	}
	if cfg.Logging.Level != "" && !recognizedLevels[cfg.Logging.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unrecognized level %q (want error|warn|info|debug)", cfg.Logging.Level),
		})
	}
	if cfg.LLM.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{Field: "llm.timeout_seconds", Message: "must not be negative"})
	}

	return errs
}
