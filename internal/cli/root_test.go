package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	t.Setenv("SVCS_DISABLE_LAYER_5B", "1")
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("def f():\n    return 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("a.py"); err != nil {
		t.Fatal(err)
	}
	sig := object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Now()}
	if _, err := wt.Commit("initial commit", &git.CommitOptions{Author: &sig}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelpListsSubcommands(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sub := range []string{"init", "uninstall", "status", "analyze", "hook", "events", "branches", "stats", "sync", "prune", "purge", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}

func TestInitAndStatusRoundTrip(t *testing.T) {
	dir := initTestRepo(t)

	out, err := executeCommand("init", "--repo", dir)
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "initialized") {
		t.Errorf("init output = %q", out)
	}

	out, err = executeCommand("status", "--repo", dir, "--format", "json")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"commit_count"`) && !strings.Contains(out, "CommitCount") {
		t.Errorf("expected status JSON to describe commit count, got %s", out)
	}
}

func TestStatusOnUninitializedNonGitDirFails(t *testing.T) {
	dir := t.TempDir()
	_, err := executeCommand("status", "--repo", dir)
	if err == nil {
		t.Error("expected an error for a non-git directory")
	}
}

func TestAnalyzeAndEventsRoundTrip(t *testing.T) {
	dir := initTestRepo(t)
	if _, err := executeCommand("init", "--repo", dir); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := executeCommand("analyze", "--repo", dir, "HEAD")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}

	out, err = executeCommand("events", "list", "--repo", dir, "--format", "json")
	if err != nil {
		t.Fatalf("events list: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) == "" || strings.TrimSpace(out) == "[]" || strings.TrimSpace(out) == "null" {
		t.Errorf("expected events after analyzing a root commit, got %q", out)
	}
}

func TestPurgeRequiresConfirmationWithoutYesFlag(t *testing.T) {
	dir := initTestRepo(t)
	if _, err := executeCommand("init", "--repo", dir); err != nil {
		t.Fatalf("init: %v", err)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader("no\n"))
	rootCmd.SetArgs([]string{"purge", "--repo", dir})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("purge: %v\n%s", err, buf.String())
	}
	if strings.Contains(buf.String(), "purged") {
		t.Errorf("expected purge to be declined without explicit 'yes', got %q", buf.String())
	}
}
