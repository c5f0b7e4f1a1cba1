package svcsctx

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the CLI's exit-code mapping (spec §7, §6.3):
// 0 success, 1 recoverable/environment, 2 misuse, >2 reserved.
type Kind int

const (
	// KindUser marks misuse: not a git repo, malformed filters, bad arguments.
	KindUser Kind = iota
	// KindEnvironment marks an environment error: git missing, disk full,
	// notes ref locked.
	KindEnvironment
)

// Error wraps an underlying error with the Kind the CLI needs to pick an
// exit code, without forcing every internal package to import svcsctx.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// UserError wraps err as a misuse error (exit code 2).
func UserError(format string, args ...interface{}) error {
	return &Error{Kind: KindUser, Err: fmt.Errorf(format, args...)}
}

// EnvironmentError wraps err as an environment error (exit code 1).
func EnvironmentError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindEnvironment, Err: err}
}

// ExitCode maps err to the exit code the CLI should use (spec §6.3/§7).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var svcsErr *Error
	if errors.As(err, &svcsErr) {
		switch svcsErr.Kind {
		case KindUser:
			return 2
		default:
			return 1
		}
	}
	return 1
}
