package notes

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/gitrepo"
	"github.com/svcs-project/svcs/internal/store"
)

// Syncer drives the write/fetch-merge/push protocols of §4.8 over one
// repository's notes ref and semantic store.
type Syncer struct {
	repo  *gitrepo.Repo
	store *store.Store
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger attaches a logger; a nil logger leaves the no-op default.
func WithLogger(log *zap.Logger) Option {
	return func(s *Syncer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source used to stamp created_at (tests only;
// production callers get time.Now).
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Syncer over repo and store.
func New(repo *gitrepo.Repo, st *store.Store, opts ...Option) *Syncer {
	s := &Syncer{repo: repo, store: st, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write attaches commitHash's events as a note on the canonical ref,
// replacing any existing note (spec §4.8 "Write protocol": "called after
// C7 persists events for a commit").
func (s *Syncer) Write(commitHash string, evs []events.Event) error {
	payload, err := Encode(commitHash, evs, s.now())
	if err != nil {
		return err
	}
	if err := s.repo.WriteNote(gitrepo.NotesRef, commitHash, payload); err != nil {
		return fmt.Errorf("write note for %s: %w", commitHash, err)
	}
	return nil
}

// FetchAndMerge implements §4.8's "Fetch/merge protocol": fetch the remote's
// notes ref into the non-destructive tracking ref, reconcile every note that
// exists on both sides by taking the union of events (never overwriting),
// write the reconciled payload back to the canonical ref, then import every
// note's events into the store (idempotent on event_id, so safe to re-run).
func (s *Syncer) FetchAndMerge(remote string) (importedCommits int, importedEvents int, err error) {
	if err := s.repo.FetchNotesRef(remote); err != nil {
		return 0, 0, err
	}

	remoteEntries, err := s.repo.ListNotes(gitrepo.RemoteTrackingNotesRef)
	if err != nil {
		return 0, 0, fmt.Errorf("list fetched notes: %w", err)
	}

	for _, entry := range remoteEntries {
		remoteRaw, found, err := s.repo.ReadNote(gitrepo.RemoteTrackingNotesRef, entry.CommitHash)
		if err != nil {
			return importedCommits, importedEvents, fmt.Errorf("read remote note for %s: %w", entry.CommitHash, err)
		}
		if !found {
			continue
		}
		remotePayload, err := Decode(remoteRaw)
		if err != nil {
			s.log.Warn("skipping malformed remote note", zap.String("commit", entry.CommitHash), zap.Error(err))
			continue
		}

		localRaw, localFound, err := s.repo.ReadNote(gitrepo.NotesRef, entry.CommitHash)
		if err != nil {
			return importedCommits, importedEvents, fmt.Errorf("read local note for %s: %w", entry.CommitHash, err)
		}

		merged := remotePayload
		if localFound {
			localPayload, err := Decode(localRaw)
			if err != nil {
				s.log.Warn("local note unreadable, trusting remote", zap.String("commit", entry.CommitHash), zap.Error(err))
			} else {
				merged = Merge(localPayload, remotePayload, s.now())
			}
		}

		encoded, err := Encode(merged.CommitHash, merged.SemanticEvents, s.now())
		if err != nil {
			return importedCommits, importedEvents, err
		}
		if err := s.repo.WriteNote(gitrepo.NotesRef, entry.CommitHash, encoded); err != nil {
			return importedCommits, importedEvents, fmt.Errorf("write merged note for %s: %w", entry.CommitHash, err)
		}

		// Event.CommitHash is not part of the encoded event, so decoded events
		// take it from the note's commit before they are stored.
		for i := range merged.SemanticEvents {
			merged.SemanticEvents[i].CommitHash = entry.CommitHash
		}
		if len(merged.SemanticEvents) > 0 {
			// semantic_events.commit_hash references commits(hash); a note
			// fetched before its commit was ever locally analyzed (e.g. a
			// teammate's push reaching us before we pull the commit itself)
			// still needs a row to satisfy the foreign key (spec I1).
			first := merged.SemanticEvents[0]
			if err := s.store.EnsureCommit(store.CommitRow{
				Hash:      entry.CommitHash,
				Author:    first.Author,
				Branch:    first.Branch,
				Timestamp: first.Timestamp,
			}); err != nil {
				return importedCommits, importedEvents, fmt.Errorf("ensure commit %s for imported note: %w", entry.CommitHash, err)
			}
		}
		if err := s.store.InsertEvents(merged.SemanticEvents); err != nil {
			return importedCommits, importedEvents, fmt.Errorf("import events for %s: %w", entry.CommitHash, err)
		}
		importedCommits++
		importedEvents += len(merged.SemanticEvents)
	}
	return importedCommits, importedEvents, nil
}

// Push pushes the local notes ref to remote. Per §4.8's push protocol,
// failure is non-fatal: the caller (typically a pre-push hook) should warn
// and continue rather than block the underlying code push.
func (s *Syncer) Push(remote string) error {
	if err := s.repo.PushNotesRef(remote); err != nil {
		s.log.Warn("push notes ref failed, continuing", zap.String("remote", remote), zap.Error(err))
		return err
	}
	return nil
}
