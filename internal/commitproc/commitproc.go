// Package commitproc implements the commit processor (C6, spec §4.6): it
// turns one git commit into (file, before, after) triples and drives the
// analysis orchestrator (C5) over each, honoring binary/rename/merge edge
// cases.
package commitproc

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/svcs-project/svcs/internal/analysis"
	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/gitrepo"
)

// defaultConcurrency bounds per-file analysis fan-out within one commit
// (spec §5: "analyses ... may run concurrently").
const defaultConcurrency = 8

// ProcessedCommit is the result of running C6 over one commit: the full
// event set, ready for C7 to persist.
type ProcessedCommit struct {
	CommitHash string
	Branch     string
	Author     string
	Timestamp  int64
	Events     []events.Event
}

// Processor drives C5 over every file a commit touches.
type Processor struct {
	repo        *gitrepo.Repo
	orchestrator *analysis.Orchestrator
	concurrency int
	log         *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency overrides the default per-commit analysis fan-out.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger attaches a logger; a nil logger leaves the no-op default.
func WithLogger(log *zap.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// New constructs a Processor over repo using orchestrator for per-file
// analysis.
func New(repo *gitrepo.Repo, orchestrator *analysis.Orchestrator, opts ...Option) *Processor {
	p := &Processor{
		repo:         repo,
		orchestrator: orchestrator,
		concurrency:  defaultConcurrency,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessCommit runs C6's full protocol for commitHash, diffing against its
// first parent (or an empty tree for a root commit). branch is recorded on
// every emitted event (spec §3's SemanticEvent.branch).
func (p *Processor) ProcessCommit(ctx context.Context, commitHash, branch string) (ProcessedCommit, error) {
	commit, err := p.repo.ResolveCommit(commitHash)
	if err != nil {
		return ProcessedCommit{}, fmt.Errorf("resolve commit %s: %w", commitHash, err)
	}
	parent, err := p.repo.FirstParent(commit)
	if err != nil {
		return ProcessedCommit{}, fmt.Errorf("resolve first parent of %s: %w", commitHash, err)
	}

	result := ProcessedCommit{
		CommitHash: commit.Hash,
		Branch:     branch,
		Author:     commit.Author,
		Timestamp:  commit.When.Unix(),
	}

	changes, err := p.repo.ChangedFiles(parent, commit)
	if err != nil {
		return ProcessedCommit{}, fmt.Errorf("diff commit %s: %w", commitHash, err)
	}

	perFile := make([][]events.Event, len(changes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, change := range changes {
		i, change := i, change
		g.Go(func() error {
			evs, err := p.processChange(gctx, commit, parent, change)
			if err != nil {
				p.log.Warn("file analysis failed", zap.String("path", change.Path), zap.Error(err))
				return nil // one file's failure must not abort the whole commit
			}
			perFile[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProcessedCommit{}, fmt.Errorf("process commit %s: %w", commitHash, err)
	}

	for _, evs := range perFile {
		for j := range evs {
			evs[j].Branch = branch
		}
		result.Events = append(result.Events, evs...)
	}
	return result, nil
}

// processChange handles one FileChange, honoring the binary/rename edge
// cases of §4.6.
func (p *Processor) processChange(ctx context.Context, commit, parent *gitrepo.Commit, change gitrepo.FileChange) ([]events.Event, error) {
	switch change.Type {
	case gitrepo.ChangeAdded:
		return p.processAddedOrModified(ctx, commit, parent, change, true)
	case gitrepo.ChangeDeleted:
		return p.processDeleted(ctx, commit, parent, change)
	case gitrepo.ChangeRenamed:
		return p.processRenamed(ctx, commit, parent, change)
	default: // ChangeModified
		return p.processAddedOrModified(ctx, commit, parent, change, false)
	}
}

func (p *Processor) processAddedOrModified(ctx context.Context, commit, parent *gitrepo.Commit, change gitrepo.FileChange, added bool) ([]events.Event, error) {
	afterSrc, err := p.repo.BlobAt(commit, change.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", change.Path, commit.Hash, err)
	}
	if gitrepo.IsBinary(afterSrc) {
		return nil, nil
	}

	var beforeSrc []byte
	if !added {
		beforeSrc, err = p.repo.BlobAt(parent, change.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s at %s: %w", change.Path, parent.Hash, err)
		}
	}

	var out []events.Event
	if added {
		out = append(out, moduleEvent(change.Path, events.TypeFileAdded, commit.Hash, commit.Author, commit.When.Unix(), fmt.Sprintf("%s added", change.Path)))
	}

	fileEvents := p.orchestrator.AnalyzeFile(ctx, analysis.FileContext{
		Path:       change.Path,
		BeforeSrc:  beforeSrc,
		AfterSrc:   afterSrc,
		CommitHash: commit.Hash,
		Author:     commit.Author,
		Timestamp:  commit.When.Unix(),
	})
	out = append(out, fileEvents...)
	return out, nil
}

func (p *Processor) processDeleted(ctx context.Context, commit, parent *gitrepo.Commit, change gitrepo.FileChange) ([]events.Event, error) {
	beforeSrc, err := p.repo.BlobAt(parent, change.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", change.Path, parent.Hash, err)
	}
	if gitrepo.IsBinary(beforeSrc) {
		return nil, nil
	}

	out := []events.Event{
		moduleEvent(change.Path, events.TypeFileRemoved, commit.Hash, commit.Author, commit.When.Unix(), fmt.Sprintf("%s removed", change.Path)),
	}
	fileEvents := p.orchestrator.AnalyzeFile(ctx, analysis.FileContext{
		Path:       change.Path,
		BeforeSrc:  beforeSrc,
		AfterSrc:   nil,
		CommitHash: commit.Hash,
		Author:     commit.Author,
		Timestamp:  commit.When.Unix(),
	})
	out = append(out, fileEvents...)
	return out, nil
}

func (p *Processor) processRenamed(ctx context.Context, commit, parent *gitrepo.Commit, change gitrepo.FileChange) ([]events.Event, error) {
	afterSrc, err := p.repo.BlobAt(commit, change.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", change.Path, commit.Hash, err)
	}
	beforeSrc, err := p.repo.BlobAt(parent, change.OldPath)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", change.OldPath, parent.Hash, err)
	}

	renameEvent := moduleEvent(change.Path, events.TypeFileRenamed, commit.Hash, commit.Author, commit.When.Unix(),
		fmt.Sprintf("renamed from %s to %s", change.OldPath, change.Path))
	out := []events.Event{renameEvent}

	if gitrepo.IsBinary(afterSrc) || gitrepo.IsBinary(beforeSrc) || string(afterSrc) == string(beforeSrc) {
		return out, nil // rename without content change: no other events (§4.6)
	}

	fileEvents := p.orchestrator.AnalyzeFile(ctx, analysis.FileContext{
		Path:       change.Path,
		BeforeSrc:  beforeSrc,
		AfterSrc:   afterSrc,
		CommitHash: commit.Hash,
		Author:     commit.Author,
		Timestamp:  commit.When.Unix(),
	})
	out = append(out, fileEvents...)
	return out, nil
}

func moduleEvent(path string, eventType events.Type, commitHash, author string, timestamp int64, details string) events.Event {
	moduleID := "module:" + path
	e := events.Event{
		EventType:        eventType,
		NodeID:           moduleID,
		Location:         path,
		Details:          details,
		Layer:            events.LayerCore,
		LayerDescription: events.LayerDescriptionFor(events.LayerCore),
		CommitHash:       commitHash,
		Author:           author,
		Timestamp:        timestamp,
	}
	return e.WithOrdinal(0)
}
