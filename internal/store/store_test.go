package store

import (
	"path/filepath"
	"testing"

	"github.com/svcs-project/svcs/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semantic.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func float64p(f float64) *float64 { return &f }

func sampleEvent(eventID, commitHash, nodeID string, eventType events.Type) events.Event {
	return events.Event{
		EventID:    eventID,
		CommitHash: commitHash,
		Branch:     "main",
		Author:     "a@example.com",
		Timestamp:  1000,
		EventType:  eventType,
		NodeID:     nodeID,
		Location:   "a.py",
		Layer:      events.LayerCore,
	}
}

func TestOpenAppliesSchemaAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semantic.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer s2.Close()
	if s2.Path() != path {
		t.Errorf("Path() = %q, want %q", s2.Path(), path)
	}
}

func TestEnsureRepositoryIDStableAcrossCalls(t *testing.T) {
	s := openTestStore(t)
	id1, err := s.EnsureRepositoryID("myrepo")
	if err != nil {
		t.Fatalf("EnsureRepositoryID: %v", err)
	}
	if id1 == "" {
		t.Fatal("expected a non-empty repository id")
	}
	id2, err := s.EnsureRepositoryID("myrepo-renamed")
	if err != nil {
		t.Fatalf("EnsureRepositoryID (2nd call): %v", err)
	}
	if id1 != id2 {
		t.Errorf("repository id changed across calls: %q vs %q", id1, id2)
	}
}

func TestEnsureCommitAndCommitCount(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatalf("EnsureCommit: %v", err)
	}
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatalf("EnsureCommit (repeat): %v", err)
	}
	n, err := s.CommitCount()
	if err != nil {
		t.Fatalf("CommitCount: %v", err)
	}
	if n != 1 {
		t.Errorf("CommitCount() = %d, want 1 (idempotent insert)", n)
	}
}

func TestInsertEventsIsIdempotentAndQueryable(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	e := sampleEvent("e1", "c1", "func:f", events.TypeNodeAdded)
	e.Confidence = float64p(0.9)

	if err := s.InsertEvents([]events.Event{e}); err != nil {
		t.Fatalf("InsertEvents: %v", err)
	}
	if err := s.InsertEvents([]events.Event{e}); err != nil {
		t.Fatalf("InsertEvents (repeat): %v", err)
	}

	out, err := s.QueryEvents(Filters{})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Confidence == nil || *out[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", out[0].Confidence)
	}
}

func TestInsertEventsAllOrNothingOnFKViolation(t *testing.T) {
	s := openTestStore(t)
	// commit "missing" was never ensured: the FK constraint should reject
	// the whole batch (spec §4.7 "insert_events" is per-commit all-or-nothing).
	e := sampleEvent("e1", "missing", "func:f", events.TypeNodeAdded)
	if err := s.InsertEvents([]events.Event{e}); err == nil {
		t.Fatal("expected an error inserting an event for an unknown commit")
	}
	out, err := s.QueryEvents(Filters{})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no events to be inserted on FK failure, got %v", out)
	}
}

func TestQueryEventsFiltersByEventType(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	e1 := sampleEvent("e1", "c1", "func:f", events.TypeNodeAdded)
	e2 := sampleEvent("e2", "c1", "func:g", events.TypeNodeRemoved)
	if err := s.InsertEvents([]events.Event{e1, e2}); err != nil {
		t.Fatal(err)
	}

	out, err := s.QueryEvents(Filters{EventTypes: []events.Type{events.TypeNodeAdded}})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "e1" {
		t.Errorf("out = %+v, want just e1", out)
	}
}

func TestNodeEvolutionOrdersByTimestampAscending(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCommit(CommitRow{Hash: "c2", Author: "a", Branch: "main", Timestamp: 2}); err != nil {
		t.Fatal(err)
	}
	e1 := sampleEvent("e1", "c2", "func:f", events.TypeNodeAdded)
	e1.Timestamp = 200
	e2 := sampleEvent("e2", "c1", "func:f", events.TypeSignatureChanged)
	e2.Timestamp = 100
	if err := s.InsertEvents([]events.Event{e1, e2}); err != nil {
		t.Fatal(err)
	}

	out, err := s.NodeEvolution("func:f", Filters{})
	if err != nil {
		t.Fatalf("NodeEvolution: %v", err)
	}
	if len(out) != 2 || out[0].EventID != "e2" || out[1].EventID != "e1" {
		t.Errorf("out = %+v, want [e2, e1] oldest-first", out)
	}
}

func TestQueryEventsOrderDescTiesBreakByEventTypeThenEventID(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	// Same timestamp on every event: order_by=timestamp alone can't
	// distinguish them, so the tie-break (event_type asc, event_id asc;
	// spec §8 P7) must fully determine the order regardless of OrderDesc.
	removed := sampleEvent("e2", "c1", "func:f", events.TypeNodeRemoved)
	addedLo := sampleEvent("e1", "c1", "func:g", events.TypeNodeAdded)
	addedHi := sampleEvent("e3", "c1", "func:h", events.TypeNodeAdded)
	if err := s.InsertEvents([]events.Event{removed, addedLo, addedHi}); err != nil {
		t.Fatal(err)
	}

	out, err := s.QueryEvents(Filters{OrderBy: OrderByTimestamp, OrderDesc: true})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	gotIDs := []string{out[0].EventID, out[1].EventID, out[2].EventID}
	wantIDs := []string{"e1", "e3", "e2"} // node_added(e1) < node_added(e3) < node_removed(e2)
	for i, want := range wantIDs {
		if gotIDs[i] != want {
			t.Errorf("out[%d].EventID = %q, want %q (full order %v)", i, gotIDs[i], want, gotIDs)
		}
	}
}

func TestCompareBranchesBucketsOnlyAAndOnlyB(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCommit(CommitRow{Hash: "c2", Author: "a", Branch: "feature", Timestamp: 2}); err != nil {
		t.Fatal(err)
	}
	eA := sampleEvent("eA", "c1", "func:f", events.TypeNodeAdded)
	eA.Branch = "main"
	eB := sampleEvent("eB", "c2", "func:g", events.TypeNodeAdded)
	eB.Branch = "feature"
	if err := s.InsertEvents([]events.Event{eA, eB}); err != nil {
		t.Fatal(err)
	}

	cmp, err := s.CompareBranches("main", "feature")
	if err != nil {
		t.Fatalf("CompareBranches: %v", err)
	}
	if len(cmp.OnlyInA) != 1 || len(cmp.OnlyInB) != 1 || len(cmp.CommonWithDiff) != 0 {
		t.Errorf("cmp = %+v", cmp)
	}
}

func TestCompareBranchesOmitsIdenticalKeys(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCommit(CommitRow{Hash: "c2", Author: "a", Branch: "feature", Timestamp: 2}); err != nil {
		t.Fatal(err)
	}
	eA := sampleEvent("eA", "c1", "func:f", events.TypeNodeAdded)
	eA.Branch = "main"
	eA.Details = "same"
	eB := sampleEvent("eB", "c2", "func:f", events.TypeNodeAdded)
	eB.Branch = "feature"
	eB.Details = "same"
	if err := s.InsertEvents([]events.Event{eA, eB}); err != nil {
		t.Fatal(err)
	}

	cmp, err := s.CompareBranches("main", "feature")
	if err != nil {
		t.Fatalf("CompareBranches: %v", err)
	}
	if len(cmp.OnlyInA) != 0 || len(cmp.OnlyInB) != 0 || len(cmp.CommonWithDiff) != 0 {
		t.Errorf("expected identical keys to be entirely omitted, got %+v", cmp)
	}
}

func TestStatsGroupsAndCounts(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "alice", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	e1 := sampleEvent("e1", "c1", "func:f", events.TypeNodeAdded)
	e1.Author = "alice"
	e2 := sampleEvent("e2", "c1", "func:g", events.TypeNodeAdded)
	e2.Author = "alice"
	e3 := sampleEvent("e3", "c1", "func:h", events.TypeNodeRemoved)
	e3.Author = "alice"
	if err := s.InsertEvents([]events.Event{e1, e2, e3}); err != nil {
		t.Fatal(err)
	}

	out, err := s.Stats(GroupByEventType, nil, nil)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Key != string(events.TypeNodeAdded) || out[0].Count != 2 {
		t.Errorf("out[0] = %+v, want node_added with count 2 (highest count first)", out[0])
	}
}

func TestStatsRejectsUnknownGroupBy(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Stats(GroupBy("bogus"), nil, nil); err == nil {
		t.Error("expected an error for an unsupported group_by")
	}
}

func TestPruneOrphansRemovesUnreachableCommitsAndEvents(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCommit(CommitRow{Hash: "orphan", Author: "a", Branch: "deleted-branch", Timestamp: 2}); err != nil {
		t.Fatal(err)
	}
	e1 := sampleEvent("e1", "c1", "func:f", events.TypeNodeAdded)
	eOrphan := sampleEvent("e2", "orphan", "func:g", events.TypeNodeAdded)
	if err := s.InsertEvents([]events.Event{e1, eOrphan}); err != nil {
		t.Fatal(err)
	}

	prunedCommits, prunedEvents, err := s.PruneOrphans(map[string]struct{}{"c1": {}})
	if err != nil {
		t.Fatalf("PruneOrphans: %v", err)
	}
	if prunedCommits != 1 || prunedEvents != 1 {
		t.Errorf("prunedCommits=%d prunedEvents=%d, want 1,1", prunedCommits, prunedEvents)
	}
	n, err := s.CommitCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CommitCount() after prune = %d, want 1", n)
	}
}

func TestPurgeRepositoryRemovesEverything(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureCommit(CommitRow{Hash: "c1", Author: "a", Branch: "main", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	e1 := sampleEvent("e1", "c1", "func:f", events.TypeNodeAdded)
	if err := s.InsertEvents([]events.Event{e1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EnsureRepositoryID("repo"); err != nil {
		t.Fatal(err)
	}

	if err := s.PurgeRepository(); err != nil {
		t.Fatalf("PurgeRepository: %v", err)
	}
	n, err := s.CommitCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CommitCount() after purge = %d, want 0", n)
	}
	out, err := s.QueryEvents(Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("expected no events after purge, got %v", out)
	}
}
