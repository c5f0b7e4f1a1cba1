package svcsctx

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/svcs-project/svcs/internal/notes"
)

// DefaultRemote is the remote name hooks sync notes against when the caller
// doesn't specify one (spec §4.9 client hooks run against the repository's
// configured upstream, which is almost always "origin").
const DefaultRemote = "origin"

// RunHook dispatches one git lifecycle hook invocation (spec §4.9). stdin is
// only read by post-receive, which git feeds ref update lines on stdin;
// update takes its ref and hashes from args, and the other hooks ignore
// stdin. Output is quiet-mode (spec
// §4.9 "Quiet mode"): at most one summary line to stdout, everything else to
// the SVCS log.
func (c *Context) RunHook(ctx context.Context, name string, args []string, stdin io.Reader) error {
	switch name {
	case "post-commit":
		return c.hookPostCommit(ctx)
	case "post-merge":
		return c.hookPostMerge(ctx)
	case "post-checkout":
		return c.hookPostCheckout(ctx)
	case "pre-push":
		return c.hookPrePush(ctx)
	case "post-receive":
		return c.hookPostReceive(ctx, stdin)
	case "update":
		return c.hookUpdate(ctx, args)
	default:
		return UserError("unknown hook %q", name)
	}
}

func (c *Context) hookPostCommit(ctx context.Context) error {
	head, err := c.repo.HeadHash()
	if err != nil {
		return EnvironmentError(err)
	}
	evs, err := c.AnalyzeCommit(ctx, head)
	if err != nil {
		c.log.Warn("post-commit analysis failed", zap.Error(err))
		return nil // hooks never block the user's git command (spec §7)
	}
	fmt.Printf("svcs: recorded %d semantic event(s) for %s\n", len(evs), head[:minInt(8, len(head))])
	return nil
}

func (c *Context) hookPostMerge(ctx context.Context) error {
	if _, _, err := c.SyncNotesFetch(DefaultRemote); err != nil {
		c.log.Warn("post-merge notes fetch failed", zap.Error(err))
	}
	head, err := c.repo.HeadHash()
	if err != nil {
		c.log.Warn("post-merge head resolution failed", zap.Error(err))
		return nil
	}
	evs, err := c.AnalyzeCommit(ctx, head)
	if err != nil {
		c.log.Warn("post-merge analysis failed", zap.Error(err))
		return nil
	}
	fmt.Printf("svcs: recorded %d semantic event(s) for merge %s\n", len(evs), head[:minInt(8, len(head))])
	return nil
}

func (c *Context) hookPostCheckout(ctx context.Context) error {
	_ = ctx
	commits, imported, err := c.SyncNotesFetch(DefaultRemote)
	if err != nil {
		c.log.Warn("post-checkout notes fetch failed", zap.Error(err))
		return nil
	}
	branch, err := c.repo.CurrentBranch()
	if err == nil && branch != "" {
		head, headErr := c.repo.HeadHash()
		if headErr == nil {
			if err := c.store.UpdateBranchHead(branch, head); err != nil {
				c.log.Warn("record branch switch failed", zap.Error(err))
			}
		}
	}
	fmt.Printf("svcs: synced notes for %d commit(s), %d event(s)\n", commits, imported)
	return nil
}

func (c *Context) hookPrePush(ctx context.Context) error {
	_ = ctx
	if err := c.SyncNotesPush(DefaultRemote); err != nil {
		c.log.Warn("pre-push notes push failed, continuing", zap.Error(err))
	}
	return nil // never block the code push (spec §4.8, §4.9)
}

func (c *Context) hookPostReceive(ctx context.Context, stdin io.Reader) error {
	scanner := bufio.NewScanner(stdin)
	var analyzed int
	for scanner.Scan() {
		fields := splitRefLine(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		newHash := fields[1]
		if newHash == zeroHash {
			continue // branch deletion
		}
		if _, err := c.AnalyzeCommit(ctx, newHash); err != nil {
			c.log.Warn("post-receive analysis failed", zap.String("commit", newHash), zap.Error(err))
			continue
		}
		analyzed++
	}
	fmt.Printf("svcs: analyzed %d updated ref(s)\n", analyzed)
	return nil
}

// maxNotePayloadBytes bounds an individual note payload the update hook
// will accept (spec §4.9: "validate incoming note payload schema_version
// and size; reject malformed").
const maxNotePayloadBytes = 1 << 20 // 1 MiB

// hookUpdate validates every note reachable from the incoming ref value
// before git accepts the push. args is (refname, oldValue, newValue) as git
// passes to the update hook; a non-nil return rejects the push.
func (c *Context) hookUpdate(ctx context.Context, args []string) error {
	_ = ctx
	if len(args) != 3 || args[0] != noteRefName {
		return nil // not a notes-ref update this hook cares about
	}
	newValue := args[2]
	if newValue == zeroHash {
		return nil // ref deletion, nothing to validate
	}

	payloads, err := c.repo.NotesAtCommit(newValue)
	if err != nil {
		c.log.Warn("update hook: could not enumerate incoming notes, allowing push", zap.Error(err))
		return nil
	}
	for commitHash, raw := range payloads {
		if len(raw) > maxNotePayloadBytes {
			return UserError("note for commit %s exceeds %d bytes", commitHash, maxNotePayloadBytes)
		}
		payload, err := notes.Decode(raw)
		if err != nil {
			return UserError("note for commit %s is malformed: %v", commitHash, err)
		}
		if payload.SchemaVersion != notes.SchemaVersion {
			return UserError("note for commit %s has unsupported schema_version %d", commitHash, payload.SchemaVersion)
		}
	}
	return nil
}

const zeroHash = "0000000000000000000000000000000000000000"
const noteRefName = "refs/notes/svcs-semantic"

func splitRefLine(line string) []string {
	var fields []string
	start := 0
	for i, r := range line {
		if r == ' ' {
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	fields = append(fields, line[start:])
	return fields
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
