// Package logging wires structured logging for every SVCS component.
//
// All components log through a single *zap.Logger built from the process's
// SVCS_LOG_LEVEL setting. Output is split two ways: a JSON sink rotated by
// lumberjack under <repo>/.svcs/logs/svcs.log, and (unless quiet mode is on)
// a console-encoded sink on stderr for interactive invocations.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors the SVCS_LOG_LEVEL vocabulary from §6.5.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

func (l Level) zapLevel() zapcore.Level {
	switch Level(strings.ToLower(string(l))) {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options controls how New builds a logger.
type Options struct {
	// SVCSDir is the repository's .svcs directory; logs/svcs.log is rotated under it.
	SVCSDir string
	// Level is the minimum level to emit; defaults to info.
	Level Level
	// Quiet suppresses the stderr console sink (hooks run in quiet mode by default, §4.9).
	Quiet bool
	// MaxSizeMB, MaxBackups, MaxAgeDays configure the lumberjack rotation policy.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a *zap.Logger per Options. The returned logger must be Sync'd
// before process exit; callers typically `defer logger.Sync()`.
func New(opts Options) (*zap.Logger, error) {
	level := opts.Level
	if level == "" {
		level = LevelInfo
	}
	zapLevel := level.zapLevel()

	var cores []zapcore.Core

	if opts.SVCSDir != "" {
		logDir := filepath.Join(opts.SVCSDir, "logs")
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", logDir, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "svcs.log"),
			MaxSize:    firstNonZero(opts.MaxSizeMB, 10),
			MaxBackups: firstNonZero(opts.MaxBackups, 5),
			MaxAge:     firstNonZero(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), zapLevel)
		cores = append(cores, fileCore)
	}

	if !opts.Quiet {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), zapLevel)
		cores = append(cores, consoleCore)
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// LevelFromEnv reads SVCS_LOG_LEVEL, defaulting to info on absence or an
// unrecognized value.
func LevelFromEnv() Level {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SVCS_LOG_LEVEL")))
	switch Level(v) {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return Level(v)
	default:
		return LevelInfo
	}
}

func firstNonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
