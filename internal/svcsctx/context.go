// Package svcsctx implements the RepositoryContext (spec §6.3, §9): the
// single entry point that wires the git abstraction, analysis pipeline,
// semantic store, and notes sync together for one repository, and exposes
// the core command surface the CLI (and git hooks) call into. No part of
// this package depends on a terminal or a particular invocation shape —
// every method takes and returns plain values.
package svcsctx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/svcs-project/svcs/internal/analysis"
	"github.com/svcs-project/svcs/internal/commitproc"
	"github.com/svcs-project/svcs/internal/config"
	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/gitrepo"
	"github.com/svcs-project/svcs/internal/hooks"
	"github.com/svcs-project/svcs/internal/llmchange"
	"github.com/svcs-project/svcs/internal/logging"
	"github.com/svcs-project/svcs/internal/notes"
	"github.com/svcs-project/svcs/internal/parser"
	"github.com/svcs-project/svcs/internal/store"
)

// SVCSDirName is the per-repository data directory (spec §6.4).
const SVCSDirName = ".svcs"

// Context bundles every component over one repository.
type Context struct {
	repo      *gitrepo.Repo
	store     *store.Store
	cfg       *config.RepositoryConfig
	log       *zap.Logger
	svcsDir   string
	processor *commitproc.Processor
	syncer    *notes.Syncer
}

// svcsDirFor returns <repoRoot>/.svcs — the working-tree root for a normal
// clone, or the bare repo's own root (spec §6.4).
func svcsDirFor(r *gitrepo.Repo) string {
	return filepath.Join(r.Path(), SVCSDirName)
}

// Open opens an already-initialized repository's context. Returns a user
// error if repoPath is not a git repository.
func Open(repoPath string) (*Context, error) {
	repo, err := gitrepo.Open(repoPath)
	if err != nil {
		return nil, UserError("not a git repository at %s: %v", repoPath, err)
	}
	svcsDir := svcsDirFor(repo)

	cfg, err := config.LoadDefault(svcsDir)
	if err != nil {
		return nil, EnvironmentError(fmt.Errorf("load config: %w", err))
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, UserError("invalid config at %s: %s", filepath.Join(svcsDir, "config.yaml"), joinValidationErrors(errs))
	}

	log, err := logging.New(logging.Options{
		SVCSDir: svcsDir,
		Level:   logging.Level(cfg.Logging.Level),
		Quiet:   cfg.Logging.Quiet,
	})
	if err != nil {
		return nil, EnvironmentError(fmt.Errorf("build logger: %w", err))
	}

	dbPath, err := store.DefaultPath(svcsDir)
	if err != nil {
		return nil, EnvironmentError(err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, EnvironmentError(fmt.Errorf("open semantic store: %w", err))
	}

	llm, err := buildLLMDetector(cfg, log)
	if err != nil {
		st.Close()
		return nil, EnvironmentError(err)
	}

	orchestrator := analysis.New(parser.Default(), llm)
	processor := commitproc.New(repo, orchestrator, commitproc.WithLogger(log))
	syncer := notes.New(repo, st, notes.WithLogger(log))

	return &Context{
		repo:      repo,
		store:     st,
		cfg:       cfg,
		log:       log,
		svcsDir:   svcsDir,
		processor: processor,
		syncer:    syncer,
	}, nil
}

// joinValidationErrors renders config.Validate's findings into one message
// for UserError, the way the CLI layer joins its own flag-parsing errors.
func joinValidationErrors(errs []config.ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func buildLLMDetector(cfg *config.RepositoryConfig, log *zap.Logger) (*llmchange.Detector, error) {
	apiKey := os.Getenv("SVCS_LLM_API_KEY")
	if apiKey == "" {
		apiKey = cfg.LLM.APIKey
	}
	if cfg.LLM.Disabled {
		apiKey = ""
	}
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	return llmchange.New(context.Background(), apiKey, cfg.LLM.Model, timeout, log)
}

// Close releases the store handle and flushes logs.
func (c *Context) Close() error {
	c.log.Sync() //nolint:errcheck // stderr sync failures are not actionable
	return c.store.Close()
}

// Init initializes SVCS in repoPath: creates .svcs/, writes a default
// config, opens the store, and installs git hooks (spec §6.3 "init").
func Init(repoPath, repositoryName string) (*Context, error) {
	repo, err := gitrepo.Open(repoPath)
	if err != nil {
		return nil, UserError("not a git repository at %s: %v", repoPath, err)
	}
	svcsDir := svcsDirFor(repo)
	if err := os.MkdirAll(svcsDir, 0o755); err != nil {
		return nil, EnvironmentError(fmt.Errorf("create %s: %w", svcsDir, err))
	}

	cfg := &config.RepositoryConfig{Name: repositoryName, SchemaVersion: config.DefaultSchemaVersion}
	if err := config.Save(svcsDir, cfg); err != nil {
		return nil, EnvironmentError(err)
	}

	executable, err := os.Executable()
	if err != nil {
		return nil, EnvironmentError(fmt.Errorf("locate svcs executable: %w", err))
	}
	hookNames := hooks.ClientHooks
	if repo.IsBare() {
		hookNames = hooks.ServerHooks
	}
	if err := hooks.Install(repo.HooksDir(), executable, hookNames); err != nil {
		return nil, EnvironmentError(err)
	}

	ctx, err := Open(repoPath)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.store.EnsureRepositoryID(repositoryName); err != nil {
		ctx.Close()
		return nil, EnvironmentError(fmt.Errorf("assign repository id: %w", err))
	}
	return ctx, nil
}

// Uninstall removes SVCS's git hooks (restoring any pre-existing hook) from
// repoPath. The semantic store and its data are left untouched; use Purge
// to remove them explicitly (spec §6.3 "uninstall").
func Uninstall(repoPath string) error {
	repo, err := gitrepo.Open(repoPath)
	if err != nil {
		return UserError("not a git repository at %s: %v", repoPath, err)
	}
	hookNames := append(append([]string{}, hooks.ClientHooks...), hooks.ServerHooks...)
	if err := hooks.Uninstall(repo.HooksDir(), hookNames); err != nil {
		return EnvironmentError(err)
	}
	return nil
}

// Status describes a repository's current SVCS state (spec §6.3 "status").
type Status struct {
	RepositoryName string
	HeadHash       string
	Branch         string
	CommitCount    int
	EventCount     int
	LLMEnabled     bool
}

// Status reports the repository's current SVCS state.
func (c *Context) Status() (Status, error) {
	head, err := c.repo.HeadHash()
	if err != nil {
		return Status{}, EnvironmentError(err)
	}
	branch, err := c.repo.CurrentBranch()
	if err != nil {
		return Status{}, EnvironmentError(err)
	}
	allEvents, err := c.store.QueryEvents(store.Filters{})
	if err != nil {
		return Status{}, EnvironmentError(err)
	}
	commitCount, err := c.store.CommitCount()
	if err != nil {
		return Status{}, EnvironmentError(err)
	}
	return Status{
		RepositoryName: c.cfg.Name,
		HeadHash:       head,
		Branch:         branch,
		CommitCount:    commitCount,
		EventCount:     len(allEvents),
		LLMEnabled:     os.Getenv("SVCS_LLM_API_KEY") != "" && os.Getenv("SVCS_DISABLE_LAYER_5B") == "",
	}, nil
}

// AnalyzeCommit runs C6 over commitHash, persists the resulting events
// (§4.7), and writes the notes payload (§4.8) — in that order, so a crash
// between the two leaves only a re-runnable gap (spec §5 "Ordering
// guarantees").
func (c *Context) AnalyzeCommit(ctx context.Context, commitHash string) ([]events.Event, error) {
	branch, err := c.repo.CurrentBranch()
	if err != nil {
		return nil, EnvironmentError(err)
	}
	processed, err := c.processor.ProcessCommit(ctx, commitHash, branch)
	if err != nil {
		return nil, EnvironmentError(err)
	}

	if err := c.store.EnsureCommit(store.CommitRow{
		Hash:      processed.CommitHash,
		Author:    processed.Author,
		Branch:    processed.Branch,
		Timestamp: processed.Timestamp,
	}); err != nil {
		return nil, EnvironmentError(err)
	}
	if err := c.store.InsertEvents(processed.Events); err != nil {
		return nil, EnvironmentError(err)
	}
	if err := c.syncer.Write(processed.CommitHash, processed.Events); err != nil {
		c.log.Warn("failed to write notes for commit", zap.String("commit", processed.CommitHash), zap.Error(err))
	}
	return processed.Events, nil
}

// ListEvents runs query_events (spec §4.7/§6.3).
func (c *Context) ListEvents(f store.Filters) ([]events.Event, error) {
	evs, err := c.store.QueryEvents(f)
	if err != nil {
		return nil, EnvironmentError(err)
	}
	return evs, nil
}

// NodeEvolution runs node_evolution (spec §4.7/§6.3).
func (c *Context) NodeEvolution(nodeID string, f store.Filters) ([]events.Event, error) {
	evs, err := c.store.NodeEvolution(nodeID, f)
	if err != nil {
		return nil, EnvironmentError(err)
	}
	return evs, nil
}

// CompareBranches runs compare_branches (spec §4.7/§6.3).
func (c *Context) CompareBranches(a, b string) (store.BranchComparison, error) {
	cmp, err := c.store.CompareBranches(a, b)
	if err != nil {
		return store.BranchComparison{}, EnvironmentError(err)
	}
	return cmp, nil
}

// Stats runs stats (spec §4.7/§6.3).
func (c *Context) Stats(groupBy store.GroupBy, since, until *int64) ([]store.StatBucket, error) {
	buckets, err := c.store.Stats(groupBy, since, until)
	if err != nil {
		return nil, EnvironmentError(err)
	}
	return buckets, nil
}

// SyncNotesFetch runs the fetch/merge protocol against remote (spec §4.8,
// §6.3 "sync_notes_fetch").
func (c *Context) SyncNotesFetch(remote string) (importedCommits, importedEvents int, err error) {
	importedCommits, importedEvents, err = c.syncer.FetchAndMerge(remote)
	if err != nil {
		return 0, 0, EnvironmentError(err)
	}
	return importedCommits, importedEvents, nil
}

// SyncNotesPush runs the push protocol against remote. Failure is logged
// and returned, but callers invoked from a hook must treat it as non-fatal
// (spec §4.8 "Push protocol").
func (c *Context) SyncNotesPush(remote string) error {
	return c.syncer.Push(remote)
}

// Prune runs prune_orphans against the repository's actual reachability
// (spec §4.7 "prune_orphans", P4).
func (c *Context) Prune() (prunedCommits, prunedEvents int, err error) {
	reachable, err := c.repo.ReachableCommits()
	if err != nil {
		return 0, 0, EnvironmentError(err)
	}
	prunedCommits, prunedEvents, err = c.store.PruneOrphans(reachable)
	if err != nil {
		return 0, 0, EnvironmentError(err)
	}
	return prunedCommits, prunedEvents, nil
}

// Purge removes every row for this repository from the semantic store
// (spec §4.7 "purge_repository", §6.3 "purge").
func (c *Context) Purge() error {
	if err := c.store.PurgeRepository(); err != nil {
		return EnvironmentError(err)
	}
	return nil
}
