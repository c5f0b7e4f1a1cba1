package gitrepo

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

const (
	merkletrieInsert = merkletrie.Insert
	merkletrieDelete = merkletrie.Delete
)

// coalesceRenames pairs a delete+insert of the same blob into a single
// ChangeRenamed entry, per spec §4.6 ("Renames without content change: emit
// a single file_renamed event with both paths").
func coalesceRenames(changes []FileChange) []FileChange {
	var deletes, inserts, rest []FileChange
	for _, c := range changes {
		switch c.Type {
		case ChangeDeleted:
			deletes = append(deletes, c)
		case ChangeAdded:
			inserts = append(inserts, c)
		default:
			rest = append(rest, c)
		}
	}
	usedInsert := make(map[int]bool)
	var out []FileChange
	for _, d := range deletes {
		matched := false
		for i, ins := range inserts {
			if usedInsert[i] {
				continue
			}
			// A rename is confirmed by exact blob-hash equality between the
			// deleted and inserted side, not by path heuristics: two unrelated
			// files that happen to share a base name (e.g. two different
			// directories each adding/removing their own types.go) must stay
			// as separate file_added/file_removed events.
			if d.blobHash != (plumbing.Hash{}) && d.blobHash == ins.blobHash {
				out = append(out, FileChange{Type: ChangeRenamed, Path: ins.Path, OldPath: d.Path})
				usedInsert[i] = true
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, d)
		}
	}
	for i, ins := range inserts {
		if !usedInsert[i] {
			out = append(out, ins)
		}
	}
	out = append(out, rest...)
	return out
}
