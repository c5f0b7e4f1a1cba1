package gitrepo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// RemoteTrackingNotesRef is where a fetch lands the remote's notes before
// the merge logic in internal/notes reconciles it with the local ref
// (spec §4.8: "never by overwriting").
const RemoteTrackingNotesRef = "refs/notes/svcs-semantic-remote"

// NoteEntry is one line of `git notes list`: a note blob paired with the
// commit it annotates.
type NoteEntry struct {
	NoteBlobHash string
	CommitHash   string
}

// ListNotes enumerates every note under ref.
func (r *Repo) ListNotes(ref string) ([]NoteEntry, error) {
	out, err := r.run("notes", "--ref="+ref, "list")
	if err != nil {
		if strings.Contains(err.Error(), "No note ref") || strings.Contains(err.Error(), "does not exist") {
			return nil, nil
		}
		return nil, fmt.Errorf("list notes on %s: %w", ref, err)
	}
	var entries []NoteEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		entries = append(entries, NoteEntry{NoteBlobHash: fields[0], CommitHash: fields[1]})
	}
	return entries, nil
}

// ReadNote returns the note payload attached to commitHash under ref.
// found is false when no note exists (not an error).
func (r *Repo) ReadNote(ref, commitHash string) (payload string, found bool, err error) {
	out, runErr := r.run("notes", "--ref="+ref, "show", commitHash)
	if runErr != nil {
		if strings.Contains(runErr.Error(), "no note found") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read note for %s on %s: %w", commitHash, ref, runErr)
	}
	return out, true, nil
}

// WriteNote attaches payload to commitHash under ref, replacing any
// existing note (spec §4.8 write protocol: "An existing note is replaced,
// not merged").
func (r *Repo) WriteNote(ref, commitHash, payload string) error {
	tmp, err := os.CreateTemp("", "svcs-note-*.json")
	if err != nil {
		return fmt.Errorf("create temp note file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.WriteString(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp note file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp note file: %w", err)
	}
	if _, err := r.run("notes", "--ref="+ref, "add", "-f", "-F", tmpPath, commitHash); err != nil {
		return fmt.Errorf("write note for %s on %s: %w", commitHash, ref, err)
	}
	return nil
}

// RemoveNote detaches any note from commitHash under ref. Used when a
// reconciled payload ends up with zero events.
func (r *Repo) RemoveNote(ref, commitHash string) error {
	if _, err := r.run("notes", "--ref="+ref, "remove", "--ignore-missing", commitHash); err != nil {
		return fmt.Errorf("remove note for %s on %s: %w", commitHash, ref, err)
	}
	return nil
}

// FetchNotesRef fetches remote's notes ref into RemoteTrackingNotesRef
// without touching the local notes ref, so the merge logic in
// internal/notes can reconcile instead of overwrite (spec §4.8).
func (r *Repo) FetchNotesRef(remote string) error {
	refspec := fmt.Sprintf("+%s:%s", NotesRef, RemoteTrackingNotesRef)
	if _, err := r.run("fetch", remote, refspec); err != nil {
		return fmt.Errorf("fetch notes ref from %s: %w", remote, err)
	}
	return nil
}

// PushNotesRef pushes the local notes ref to remote. Per spec §4.8's push
// protocol, failure here must never be fatal to the caller; callers are
// expected to log and continue rather than propagate a hard error up
// through a git hook.
func (r *Repo) PushNotesRef(remote string) error {
	refspec := fmt.Sprintf("%s:%s", NotesRef, NotesRef)
	if _, err := r.run("push", remote, refspec); err != nil {
		return fmt.Errorf("push notes ref to %s: %w", remote, err)
	}
	return nil
}

// HasRemoteTrackingNotes reports whether a prior FetchNotesRef landed
// anything to reconcile.
func (r *Repo) HasRemoteTrackingNotes() (bool, error) {
	out, err := r.run("show-ref", "--verify", "--quiet", RemoteTrackingNotesRef)
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) != "" || true, nil
}

// GitBinaryAvailable reports whether the `git` executable can be invoked at
// all, used by the CLI to distinguish environment errors (§7) from misuse.
func GitBinaryAvailable() bool {
	_, err := (&ExecRunner{}).Run("", "--version")
	return err == nil
}

// HookShimPath returns the path a named hook script should live at.
func (r *Repo) HookShimPath(name string) string {
	return filepath.Join(r.HooksDir(), name)
}

// NotesAtCommit reads every note payload in the notes tree rooted at
// commitHash directly from the object database, bypassing `git notes`
// (whose --ref flag resolves unqualified names under refs/notes/ and so
// cannot address an arbitrary commit object, the shape the server-side
// update hook receives for an incoming ref value). Notes trees may use a
// fanout of 2-hex-char prefix directories once they grow large, so entries
// are walked recursively and reassembled into the annotated commit's full
// hex hash.
func (r *Repo) NotesAtCommit(commitHash string) (map[string]string, error) {
	hash := plumbing.NewHash(commitHash)
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load notes commit %s: %w", commitHash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load notes tree for %s: %w", commitHash, err)
	}

	out := make(map[string]string)
	if err := r.walkNotesTree(tree, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) walkNotesTree(tree *object.Tree, prefix string, out map[string]string) error {
	for _, entry := range tree.Entries {
		if entry.Mode.IsFile() {
			fullHash := prefix + entry.Name
			if !looksLikeHexHash(fullHash) {
				continue // not a note entry (e.g. a stray file at the tree root)
			}
			blob, err := r.repo.BlobObject(entry.Hash)
			if err != nil {
				return fmt.Errorf("load note blob %s: %w", entry.Hash, err)
			}
			reader, err := blob.Reader()
			if err != nil {
				return fmt.Errorf("open note blob reader %s: %w", entry.Hash, err)
			}
			data, err := io.ReadAll(reader)
			reader.Close()
			if err != nil {
				return fmt.Errorf("read note blob %s: %w", entry.Hash, err)
			}
			out[fullHash] = string(data)
			continue
		}
		subtree, err := r.repo.TreeObject(entry.Hash)
		if err != nil {
			return fmt.Errorf("load notes subtree %s: %w", entry.Hash, err)
		}
		if err := r.walkNotesTree(subtree, prefix+entry.Name, out); err != nil {
			return err
		}
	}
	return nil
}

func looksLikeHexHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}
