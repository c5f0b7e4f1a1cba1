package svcsctx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) string {
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
	commitFile(t, dir, wt, "a.py", "def f():\n    return 1\n", "initial commit")
	return dir
}

func commitFile(t *testing.T, dir string, wt *git.Worktree, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	sig := object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Now()}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: &sig}); err != nil {
		t.Fatal(err)
	}
}

func TestInitCreatesSVCSDirAndHooks(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Init(dir, "my-repo")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer ctx.Close()

	if _, err := os.Stat(filepath.Join(dir, SVCSDirName, "config.yaml")); err != nil {
		t.Errorf("expected a config.yaml: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "hooks", "post-commit")); err != nil {
		t.Errorf("expected a post-commit hook shim: %v", err)
	}
}

func TestOpenFailsOnNonGitDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err == nil {
		t.Error("expected an error opening a non-git directory")
	}
}

func TestStatusReportsCommitAndEventCounts(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Init(dir, "my-repo")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer ctx.Close()

	st, err := ctx.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.RepositoryName != "my-repo" {
		t.Errorf("RepositoryName = %q", st.RepositoryName)
	}
	if st.CommitCount != 0 {
		t.Errorf("CommitCount = %d, want 0 before any AnalyzeCommit", st.CommitCount)
	}
	if st.LLMEnabled {
		t.Error("expected LLMEnabled=false with SVCS_DISABLE_LAYER_5B set")
	}
}

func TestAnalyzeCommitPersistsEventsAndAdvancesStatus(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Init(dir, "my-repo")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer ctx.Close()

	head, err := ctx.repo.HeadHash()
	if err != nil {
		t.Fatal(err)
	}

	evs, err := ctx.AnalyzeCommit(context.Background(), head)
	if err != nil {
		t.Fatalf("AnalyzeCommit: %v", err)
	}
	if len(evs) == 0 {
		t.Error("expected at least one event for a root commit adding a.py")
	}

	st, err := ctx.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CommitCount != 1 {
		t.Errorf("CommitCount = %d, want 1", st.CommitCount)
	}
	if st.EventCount != len(evs) {
		t.Errorf("EventCount = %d, want %d", st.EventCount, len(evs))
	}
}

func TestAnalyzeCommitIsIdempotent(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Init(dir, "my-repo")
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	head, err := ctx.repo.HeadHash()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.AnalyzeCommit(context.Background(), head); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.AnalyzeCommit(context.Background(), head); err != nil {
		t.Fatalf("second AnalyzeCommit: %v", err)
	}
	st, err := ctx.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.CommitCount != 1 {
		t.Errorf("CommitCount = %d, want 1 (idempotent re-analysis)", st.CommitCount)
	}
}

func TestUninstallRestoresPreexistingHook(t *testing.T) {
	dir := initRepo(t)
	foreign := "#!/bin/sh\necho preexisting\n"
	hookPath := filepath.Join(dir, ".git", "hooks", "post-commit")
	if err := os.WriteFile(hookPath, []byte(foreign), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, err := Init(dir, "my-repo")
	if err != nil {
		t.Fatal(err)
	}
	ctx.Close()

	if err := Uninstall(dir); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	restored, err := os.ReadFile(hookPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != foreign {
		t.Errorf("restored hook = %q, want %q", restored, foreign)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Init(dir, "my-repo")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx.Close()

	configPath := filepath.Join(dir, SVCSDirName, "config.yaml")
	malformed := "schema_version: 1\nlogging:\n  level: bogus\n"
	if err := os.WriteFile(configPath, []byte(malformed), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Open(dir)
	if err == nil {
		t.Fatal("expected Open to reject a config with an unrecognized logging level")
	}
	if got := ExitCode(err); got != 2 {
		t.Errorf("ExitCode(Open error) = %d, want 2 (misuse)", got)
	}
}

func TestExitCodeMapping(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("expected exit code 0 for nil error")
	}
	if got := ExitCode(UserError("bad args")); got != 2 {
		t.Errorf("ExitCode(UserError) = %d, want 2", got)
	}
	if got := ExitCode(EnvironmentError(os.ErrNotExist)); got != 1 {
		t.Errorf("ExitCode(EnvironmentError) = %d, want 1", got)
	}
	if got := ExitCode(os.ErrNotExist); got != 1 {
		t.Errorf("ExitCode(plain error) = %d, want 1", got)
	}
}
