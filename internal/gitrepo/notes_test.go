package gitrepo

import (
	"fmt"
	"testing"
)

// fakeRunner lets tests drive notes.go's plumbing without a real git binary.
type fakeRunner struct {
	calls [][]string
	out   map[string]string // joined args -> output
	err   map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{out: map[string]string{}, err: map[string]error{}}
}

func (f *fakeRunner) Run(dir string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	key := fmt.Sprint(args)
	return f.out[key], f.err[key]
}

func TestListNotesParsesLines(t *testing.T) {
	r, _, _ := initRepo(t)
	fr := newFakeRunner()
	r.SetRunner(fr)
	fr.out[fmt.Sprint([]string{"notes", "--ref=" + NotesRef, "list"})] = "blobhash1 commithash1\nblobhash2 commithash2\n"

	entries, err := r.ListNotes(NotesRef)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].NoteBlobHash != "blobhash1" || entries[0].CommitHash != "commithash1" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
}

func TestListNotesMissingRefReturnsEmptyNotError(t *testing.T) {
	r, _, _ := initRepo(t)
	fr := newFakeRunner()
	r.SetRunner(fr)
	fr.err[fmt.Sprint([]string{"notes", "--ref=" + NotesRef, "list"})] = fmt.Errorf("No note ref found")

	entries, err := r.ListNotes(NotesRef)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}

func TestReadNoteNotFoundIsNotAnError(t *testing.T) {
	r, _, _ := initRepo(t)
	fr := newFakeRunner()
	r.SetRunner(fr)
	fr.err[fmt.Sprint([]string{"notes", "--ref=" + NotesRef, "show", "deadbeef"})] = fmt.Errorf("error: no note found for object deadbeef.")

	_, found, err := r.ReadNote(NotesRef, "deadbeef")
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if found {
		t.Error("expected found=false")
	}
}

func TestHookShimPathJoinsHooksDir(t *testing.T) {
	r, _, _ := initRepo(t)
	got := r.HookShimPath("post-commit")
	want := r.HooksDir() + "/post-commit"
	if got != want {
		t.Errorf("HookShimPath = %q, want %q", got, want)
	}
}
