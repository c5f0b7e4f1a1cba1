package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesLogDirAndFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{SVCSDir: dir, Quiet: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	logPath := filepath.Join(dir, "logs", "svcs.log")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file at %s: %v", logPath, err)
	}
}

func TestNewWithNoSVCSDirAndQuietReturnsNop(t *testing.T) {
	logger, err := New(Options{Quiet: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	// Should not panic even though there is nowhere to write.
	logger.Info("discarded")
}

func TestLevelZapLevelMapping(t *testing.T) {
	cases := map[Level]bool{
		LevelError: true,
		LevelWarn:  true,
		LevelInfo:  true,
		LevelDebug: true,
		Level("bogus"): true,
	}
	for lvl := range cases {
		// zapLevel must not panic for any input, including unrecognized
		// levels (falls back to info per LevelFromEnv's documented default).
		_ = lvl.zapLevel()
	}
}

func TestLevelFromEnvDefaultsToInfo(t *testing.T) {
	t.Setenv("SVCS_LOG_LEVEL", "")
	if got := LevelFromEnv(); got != LevelInfo {
		t.Errorf("LevelFromEnv() = %q, want %q", got, LevelInfo)
	}
}

func TestLevelFromEnvRecognizesValidLevels(t *testing.T) {
	t.Setenv("SVCS_LOG_LEVEL", "debug")
	if got := LevelFromEnv(); got != LevelDebug {
		t.Errorf("LevelFromEnv() = %q, want %q", got, LevelDebug)
	}
}

func TestLevelFromEnvFallsBackOnUnknown(t *testing.T) {
	t.Setenv("SVCS_LOG_LEVEL", "verbose")
	if got := LevelFromEnv(); got != LevelInfo {
		t.Errorf("LevelFromEnv() = %q, want %q", got, LevelInfo)
	}
}

func TestFirstNonZero(t *testing.T) {
	if got := firstNonZero(0, 5); got != 5 {
		t.Errorf("firstNonZero(0, 5) = %d, want 5", got)
	}
	if got := firstNonZero(3, 5); got != 3 {
		t.Errorf("firstNonZero(3, 5) = %d, want 3", got)
	}
}
