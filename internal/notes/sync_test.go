package notes

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/gitrepo"
	"github.com/svcs-project/svcs/internal/store"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// newClonePair creates a bare "origin" repo plus a working clone, returning the
// clone as a *gitrepo.Repo and the bare repo's path as a remote URL usable
// by git fetch/push.
func newClonePair(t *testing.T) (*gitrepo.Repo, string) {
	t.Helper()
	if !gitrepo.GitBinaryAvailable() {
		t.Skip("git binary not available")
	}
	origin := t.TempDir()
	runGit(t, origin, "init", "--bare", "-q")

	clone := t.TempDir()
	runGit(t, filepath.Dir(clone), "clone", "-q", origin, clone)
	runGit(t, clone, "commit", "--allow-empty", "-q", "-m", "initial")
	runGit(t, clone, "push", "-q", "origin", "HEAD:refs/heads/main")

	r, err := gitrepo.Open(clone)
	if err != nil {
		t.Fatalf("gitrepo.Open: %v", err)
	}
	return r, origin
}

func openTestStoreWithCommit(t *testing.T, commitHash string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "semantic.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureCommit(store.CommitRow{Hash: commitHash, Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSyncerWritePersistsNoteReadableViaGitrepo(t *testing.T) {
	r, _ := newClonePair(t)
	head, err := r.ResolveCommit("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	st := openTestStoreWithCommit(t, head.Hash)

	syncer := New(r, st, WithClock(func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }))
	evs := []events.Event{{EventID: "e1", NodeID: "func:f", EventType: events.TypeNodeAdded}}
	if err := syncer.Write(head.Hash, evs); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, found, err := r.ReadNote(gitrepo.NotesRef, head.Hash)
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if !found {
		t.Fatal("expected a note to have been written")
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.SemanticEvents) != 1 || decoded.SemanticEvents[0].EventID != "e1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestSyncerFetchAndMergeImportsRemoteNotesIntoStore(t *testing.T) {
	pusher, origin := newClonePair(t)
	head, err := pusher.ResolveCommit("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	pusherStore := openTestStoreWithCommit(t, head.Hash)
	pusherSyncer := New(pusher, pusherStore)
	evs := []events.Event{{EventID: "e1", NodeID: "func:f", EventType: events.TypeNodeAdded}}
	if err := pusherSyncer.Write(head.Hash, evs); err != nil {
		t.Fatal(err)
	}
	if err := pusher.PushNotesRef("origin"); err != nil {
		t.Fatalf("PushNotesRef: %v", err)
	}

	// Second clone of the same origin: has the commit, but no local note yet.
	puller := t.TempDir()
	runGit(t, filepath.Dir(puller), "clone", "-q", origin, puller)
	pr, err := gitrepo.Open(puller)
	if err != nil {
		t.Fatal(err)
	}
	pullerStore := openTestStoreWithCommit(t, head.Hash)
	pullerSyncer := New(pr, pullerStore)

	importedCommits, importedEvents, err := pullerSyncer.FetchAndMerge("origin")
	if err != nil {
		t.Fatalf("FetchAndMerge: %v", err)
	}
	if importedCommits != 1 || importedEvents != 1 {
		t.Errorf("importedCommits=%d importedEvents=%d, want 1,1", importedCommits, importedEvents)
	}

	out, err := pullerStore.QueryEvents(store.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].EventID != "e1" {
		t.Errorf("out = %+v", out)
	}
}

func TestSyncerPushFailureIsNonFatal(t *testing.T) {
	r, _ := newClonePair(t)
	head, err := r.ResolveCommit("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	st := openTestStoreWithCommit(t, head.Hash)
	syncer := New(r, st)
	if err := syncer.Write(head.Hash, []events.Event{{EventID: "e1"}}); err != nil {
		t.Fatal(err)
	}
	// "doesnotexist" is not a configured remote: Push must return the error
	// rather than panic, leaving the caller free to treat it as a warning.
	if err := syncer.Push("doesnotexist"); err == nil {
		t.Error("expected an error pushing to a nonexistent remote")
	}
}
