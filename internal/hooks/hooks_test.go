package hooks

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstallWritesShimsForEveryName(t *testing.T) {
	dir := t.TempDir()
	if err := Install(dir, "/usr/local/bin/svcs", ClientHooks); err != nil {
		t.Fatalf("Install: %v", err)
	}
	for _, name := range ClientHooks {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read hook %s: %v", name, err)
		}
		if !isOurs(string(content)) {
			t.Errorf("hook %s missing marker: %s", name, content)
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode()&0o100 == 0 {
			t.Errorf("hook %s is not executable: %v", name, info.Mode())
		}
	}
}

func TestInstallBacksUpPreexistingForeignHook(t *testing.T) {
	dir := t.TempDir()
	foreign := "#!/bin/sh\necho 'custom hook'\n"
	if err := os.WriteFile(filepath.Join(dir, "post-commit"), []byte(foreign), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Install(dir, "/usr/local/bin/svcs", []string{"post-commit"}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	backup, err := os.ReadFile(filepath.Join(dir, "post-commit.svcs-backup"))
	if err != nil {
		t.Fatalf("expected a backup of the foreign hook: %v", err)
	}
	if string(backup) != foreign {
		t.Errorf("backup content = %q, want %q", backup, foreign)
	}
	current, err := os.ReadFile(filepath.Join(dir, "post-commit"))
	if err != nil {
		t.Fatal(err)
	}
	if !isOurs(string(current)) {
		t.Error("expected the installed hook to be ours after install")
	}
}

func TestInstallReinstallOverSVCSHookDoesNotBackup(t *testing.T) {
	dir := t.TempDir()
	if err := Install(dir, "/usr/local/bin/svcs", []string{"post-commit"}); err != nil {
		t.Fatal(err)
	}
	if err := Install(dir, "/usr/local/bin/svcs", []string{"post-commit"}); err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "post-commit.svcs-backup")); !os.IsNotExist(err) {
		t.Error("expected no backup to be created when reinstalling over our own hook")
	}
}

func TestUninstallRemovesShimAndRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	foreign := "#!/bin/sh\necho 'custom hook'\n"
	if err := os.WriteFile(filepath.Join(dir, "post-commit"), []byte(foreign), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Install(dir, "/usr/local/bin/svcs", []string{"post-commit"}); err != nil {
		t.Fatal(err)
	}
	if err := Uninstall(dir, []string{"post-commit"}); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	restored, err := os.ReadFile(filepath.Join(dir, "post-commit"))
	if err != nil {
		t.Fatalf("expected the foreign hook to be restored: %v", err)
	}
	if string(restored) != foreign {
		t.Errorf("restored content = %q, want %q", restored, foreign)
	}
	if _, err := os.Stat(filepath.Join(dir, "post-commit.svcs-backup")); !os.IsNotExist(err) {
		t.Error("expected the backup file to be consumed by restore")
	}
}

func TestUninstallWithNoBackupJustRemoves(t *testing.T) {
	dir := t.TempDir()
	if err := Install(dir, "/usr/local/bin/svcs", []string{"post-commit"}); err != nil {
		t.Fatal(err)
	}
	if err := Uninstall(dir, []string{"post-commit"}); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "post-commit")); !os.IsNotExist(err) {
		t.Error("expected the hook file to be gone with no backup to restore")
	}
}

func TestUninstallLeavesForeignHookUntouchedIfNeverInstalled(t *testing.T) {
	dir := t.TempDir()
	foreign := "#!/bin/sh\necho 'custom hook'\n"
	if err := os.WriteFile(filepath.Join(dir, "post-commit"), []byte(foreign), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Uninstall(dir, []string{"post-commit"}); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	current, err := os.ReadFile(filepath.Join(dir, "post-commit"))
	if err != nil {
		t.Fatal(err)
	}
	if string(current) != foreign {
		t.Errorf("expected a never-installed foreign hook to be left alone, got %q", current)
	}
}
