// Package gitrepo is SVCS's Git abstraction (spec §9): a typed wrapper that
// isolates every other component from git plumbing. Reads (commit/tree/blob
// traversal, first-parent diff discovery) go through go-git; notes and
// hook-adjacent writes shell out to the git binary the way the teacher
// repo's worktree.GitRunner and context.ExecGit do, because go-git has no
// notes support.
package gitrepo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// NotesRef is the canonical git notes reference SVCS attaches semantic
// payloads to (spec §4.8, §6.1).
const NotesRef = "refs/notes/svcs-semantic"

// Runner executes arbitrary git subcommands. It exists so tests can supply a
// fake instead of shelling out, exactly like the teacher's GitRunner/CmdRunner
// interfaces in worktree.go and github.go.
type Runner interface {
	Run(dir string, args ...string) (string, error)
}

// ExecRunner runs git via os/exec, with the default 30s timeout spec §5
// requires for all subprocess calls.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns an ExecRunner with the default 30s timeout.
func NewExecRunner() *ExecRunner { return &ExecRunner{Timeout: 30 * time.Second} }

func (r *ExecRunner) Run(dir string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Stdin = nil // never inherit the parent's stdin (spec §5)
	done := make(chan struct{})
	var out []byte
	var err error
	go func() {
		out, err = cmd.CombinedOutput()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return "", fmt.Errorf("git %s: timed out after %s", strings.Join(args, " "), timeout)
	}
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Repo wraps a single repository (working clone or bare) for both the
// go-git read path and the exec write path.
type Repo struct {
	path   string // working-tree root, or the bare repo path
	gitDir string // .git directory, or the bare repo path itself
	bare   bool
	repo   *git.Repository
	runner Runner
}

// Open opens the repository rooted at path (or locates it by walking up from
// path, the way `git rev-parse --show-toplevel` does).
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", path, err)
	}
	wt, wtErr := repo.Worktree()
	bare := wtErr != nil

	r := &Repo{path: path, bare: bare, repo: repo, runner: NewExecRunner()}
	if !bare && wt != nil {
		r.path = wt.Filesystem.Root()
	}

	gitDir, err := resolveGitDir(r.path, bare)
	if err != nil {
		return nil, err
	}
	r.gitDir = gitDir
	return r, nil
}

func resolveGitDir(path string, bare bool) (string, error) {
	if bare {
		return path, nil
	}
	candidate := filepath.Join(path, ".git")
	info, err := os.Stat(candidate)
	if err != nil {
		return "", fmt.Errorf("locate .git directory under %s: %w", path, err)
	}
	if info.IsDir() {
		return candidate, nil
	}
	// .git is a file (worktree or submodule) pointing at the real gitdir.
	data, err := os.ReadFile(candidate)
	if err != nil {
		return "", fmt.Errorf("read .git file: %w", err)
	}
	line := strings.TrimSpace(string(data))
	if strings.HasPrefix(line, "gitdir: ") {
		dir := strings.TrimPrefix(line, "gitdir: ")
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(path, dir)
		}
		return dir, nil
	}
	return candidate, nil
}

// Path returns the working-tree root (or the bare repo's path).
func (r *Repo) Path() string { return r.path }

// GitDir returns the .git directory (or the bare repo's root).
func (r *Repo) GitDir() string { return r.gitDir }

// IsBare reports whether this is a bare repository (spec §4.9 server side).
func (r *Repo) IsBare() bool { return r.bare }

// HooksDir returns where git hook shims belong: .git/hooks, or hooks/ at the
// root of a bare repo (spec §6.4).
func (r *Repo) HooksDir() string { return filepath.Join(r.gitDir, "hooks") }

// SetRunner overrides the Runner used for exec-based git operations (tests).
func (r *Repo) SetRunner(runner Runner) { r.runner = runner }

// run executes a git subcommand rooted at the repository's git-dir-aware
// working directory.
func (r *Repo) run(args ...string) (string, error) {
	dir := r.path
	if r.bare {
		dir = r.gitDir
	}
	return r.runner.Run(dir, args...)
}

// HeadHash returns the commit hash HEAD currently points to.
func (r *Repo) HeadHash() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// CurrentBranch returns the short branch name HEAD points to, or "" when
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !ref.Name().IsBranch() {
		return "", nil
	}
	return ref.Name().Short(), nil
}

// Commit is the subset of a git commit object SVCS needs.
type Commit struct {
	Hash    string
	Author  string
	Message string
	When    time.Time
	commit  *object.Commit
}

// ResolveCommit resolves a commit-ish (hash, branch, tag) to a Commit.
func (r *Repo) ResolveCommit(commitish string) (*Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(commitish))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %s: %w", commitish, err)
	}
	obj, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash, err)
	}
	return fromObject(obj), nil
}

func fromObject(obj *object.Commit) *Commit {
	return &Commit{
		Hash:    obj.Hash.String(),
		Author:  fmt.Sprintf("%s <%s>", obj.Author.Name, obj.Author.Email),
		Message: obj.Message,
		When:    obj.Author.When,
		commit:  obj,
	}
}

// FirstParent returns c's first parent, or nil for a root commit (spec §4.6).
func (r *Repo) FirstParent(c *Commit) (*Commit, error) {
	if c.commit.NumParents() == 0 {
		return nil, nil
	}
	parent, err := c.commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("load parent of %s: %w", c.Hash, err)
	}
	return fromObject(parent), nil
}

// SecondParent returns c's second parent for merge commits, or nil.
func (r *Repo) SecondParent(c *Commit) (*Commit, error) {
	if c.commit.NumParents() < 2 {
		return nil, nil
	}
	parent, err := c.commit.Parent(1)
	if err != nil {
		return nil, fmt.Errorf("load second parent of %s: %w", c.Hash, err)
	}
	return fromObject(parent), nil
}

// ChangeType classifies how a path differs between two trees.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// FileChange describes one changed path between a commit and its comparison
// point (spec §4.6).
type FileChange struct {
	Type    ChangeType
	Path    string // new path (or the only path, for add/modify/delete)
	OldPath string // populated only for renames

	// blobHash is the content hash on the side that still exists (the "to"
	// side for an add, the "from" side for a delete); coalesceRenames uses
	// it to confirm a delete+insert pair is the same content before folding
	// them into a rename, rather than guessing from the path's base name.
	blobHash plumbing.Hash
}

// ChangedFiles returns the set of paths that differ between base and c
// (base may be nil for a root commit, meaning "diff against an empty tree").
func (r *Repo) ChangedFiles(base, c *Commit) ([]FileChange, error) {
	var baseTree, tree *object.Tree
	var err error
	tree, err = c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree for %s: %w", c.Hash, err)
	}
	if base != nil {
		baseTree, err = base.commit.Tree()
		if err != nil {
			return nil, fmt.Errorf("load tree for %s: %w", base.Hash, err)
		}
	}

	changes, err := object.DiffTree(baseTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diff trees for %s: %w", c.Hash, err)
	}

	var out []FileChange
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, fmt.Errorf("classify change in %s: %w", c.Hash, err)
		}
		fc := FileChange{}
		switch action {
		case merkletrieInsert:
			fc.Type = ChangeAdded
			fc.Path = ch.To.Name
			fc.blobHash = ch.To.TreeEntry.Hash
		case merkletrieDelete:
			fc.Type = ChangeDeleted
			fc.Path = ch.From.Name
			fc.blobHash = ch.From.TreeEntry.Hash
		default:
			fc.Type = ChangeModified
			fc.Path = ch.To.Name
		}
		out = append(out, fc)
	}
	out = coalesceRenames(out)
	return out, nil
}

// BlobAt reads a path's content as of commit c from the git object database
// (never the working tree, per spec §4.6). A missing path returns nil, nil
// (the "file doesn't exist on this side" case used for add/delete pairs).
func (r *Repo) BlobAt(c *Commit, path string) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	file, err := c.commit.File(path)
	if err != nil {
		if err == object.ErrFileNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("read blob %s@%s: %w", path, c.Hash, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob reader %s@%s: %w", path, c.Hash, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read blob bytes %s@%s: %w", path, c.Hash, err)
	}
	return data, nil
}

// IsBinary applies the NUL-byte heuristic of §4.6.
func IsBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0
}

// ReachableCommits returns the set of commit hashes reachable from every
// local branch and tag, used by prune_orphans (spec §4.7, P4).
func (r *Repo) ReachableCommits() (map[string]struct{}, error) {
	reachable := make(map[string]struct{})
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer refs.Close()

	var heads []plumbing.Hash
	if err := refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		if name.IsBranch() || name.IsTag() || name == plumbing.HEAD {
			heads = append(heads, ref.Hash())
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk references: %w", err)
	}

	for _, h := range heads {
		commit, err := r.repo.CommitObject(h)
		if err != nil {
			continue // tag or non-commit object; skip
		}
		iter := object.NewCommitIterBSF(commit, nil, nil)
		if err := iter.ForEach(func(c *object.Commit) error {
			reachable[c.Hash.String()] = struct{}{}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("walk commit ancestry from %s: %w", h, err)
		}
	}
	return reachable, nil
}
