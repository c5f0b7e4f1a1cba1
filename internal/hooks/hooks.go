// Package hooks implements the hook orchestrator (C9, spec §4.9): installs
// small shell shims into .git/hooks (or hooks/ in a bare repo) that locate
// and invoke the SVCS executable at each git lifecycle point, preserving
// whatever hooks were already there.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// backupSuffix marks a pre-existing, non-SVCS hook moved aside during
// install (spec §4.9 "Pre-existing hook policy").
const backupSuffix = ".svcs-backup"

// marker identifies a shim this package wrote, so uninstall/reinstall never
// mistakes a user's own hook for ours.
const marker = "# svcs-managed-hook"

// ClientHooks are installed in a normal working clone.
var ClientHooks = []string{"post-commit", "post-merge", "post-checkout", "pre-push"}

// ServerHooks are installed in a bare repository.
var ServerHooks = []string{"post-receive", "update"}

// shimBody returns the shell script content for a named hook. Every shim
// is a thin dispatcher to `svcs hook <name>`, passing through hook args and
// stdin (git feeds ref update lines to post-receive/update on stdin).
func shimBody(hookName, svcsExecutable string) string {
	return fmt.Sprintf(`#!/bin/sh
%s
exec %q hook %s "$@"
`, marker, svcsExecutable, hookName)
}

// Install writes shims for every hook in names under hooksDir, backing up
// any pre-existing, non-SVCS hook first. svcsExecutable is the absolute
// path to the SVCS binary the shim should invoke.
func Install(hooksDir, svcsExecutable string, names []string) error {
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("create hooks directory %s: %w", hooksDir, err)
	}
	for _, name := range names {
		if err := installOne(hooksDir, name, svcsExecutable); err != nil {
			return err
		}
	}
	return nil
}

func installOne(hooksDir, name, svcsExecutable string) error {
	path := filepath.Join(hooksDir, name)

	existing, err := os.ReadFile(path)
	if err == nil && !isOurs(string(existing)) {
		backupPath := path + backupSuffix
		if err := os.Rename(path, backupPath); err != nil {
			return fmt.Errorf("back up existing hook %s: %w", name, err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read existing hook %s: %w", name, err)
	}

	if err := os.WriteFile(path, []byte(shimBody(name, svcsExecutable)), 0o755); err != nil {
		return fmt.Errorf("write hook shim %s: %w", name, err)
	}
	return nil
}

// Uninstall removes every SVCS-managed shim in names under hooksDir,
// restoring any backed-up pre-existing hook (spec §4.9: "on uninstall,
// restore the backup").
func Uninstall(hooksDir string, names []string) error {
	for _, name := range names {
		if err := uninstallOne(hooksDir, name); err != nil {
			return err
		}
	}
	return nil
}

func uninstallOne(hooksDir, name string) error {
	path := filepath.Join(hooksDir, name)
	backupPath := path + backupSuffix

	current, err := os.ReadFile(path)
	switch {
	case err == nil && isOurs(string(current)):
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove hook shim %s: %w", name, err)
		}
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("read hook %s: %w", name, err)
	}

	if _, err := os.Stat(backupPath); err == nil {
		if err := os.Rename(backupPath, path); err != nil {
			return fmt.Errorf("restore backed-up hook %s: %w", name, err)
		}
	}
	return nil
}

func isOurs(content string) bool {
	return strings.Contains(content, marker)
}
