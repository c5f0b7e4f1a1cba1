package notes

import (
	"strings"
	"testing"
	"time"

	"github.com/svcs-project/svcs/internal/events"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	evs := []events.Event{
		{EventID: "e1", NodeID: "func:b", EventType: events.TypeNodeAdded},
		{EventID: "e2", NodeID: "func:a", EventType: events.TypeNodeRemoved},
	}
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	raw, err := Encode("c1", evs, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(raw, `"commit_hash": "c1"`) {
		t.Errorf("encoded payload missing commit_hash: %s", raw)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.CommitHash != "c1" || len(decoded.SemanticEvents) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	// sortedEvents orders by node_id first: func:a before func:b.
	if decoded.SemanticEvents[0].NodeID != "func:a" {
		t.Errorf("expected canonical node_id ordering, got %+v", decoded.SemanticEvents)
	}
}

func TestEncodeIsDeterministicForFixedInput(t *testing.T) {
	evs := []events.Event{{EventID: "e1", NodeID: "func:a", EventType: events.TypeNodeAdded}}
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	raw1, _ := Encode("c1", evs, now)
	raw2, _ := Encode("c1", evs, now)
	if raw1 != raw2 {
		t.Errorf("Encode is not deterministic:\n%s\nvs\n%s", raw1, raw2)
	}
}

func TestDecodeAssignsIDToEventsMissingOne(t *testing.T) {
	raw := `{"schema_version":1,"commit_hash":"c1","created_at":"2026-07-31T00:00:00Z","semantic_events":[{"node_id":"func:a","event_type":"node_added"}]}`
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.SemanticEvents) != 1 || decoded.SemanticEvents[0].EventID == "" {
		t.Errorf("expected a synthesized event_id, got %+v", decoded.SemanticEvents)
	}
}

func TestDecodeMalformedJSONFails(t *testing.T) {
	if _, err := Decode("not json"); err == nil {
		t.Error("expected an error decoding malformed JSON")
	}
}

func TestMergeUnionsByEventID(t *testing.T) {
	a := Payload{CommitHash: "c1", SemanticEvents: []events.Event{
		{EventID: "e1", NodeID: "func:a", EventType: events.TypeNodeAdded},
	}}
	b := Payload{CommitHash: "c1", SemanticEvents: []events.Event{
		{EventID: "e1", NodeID: "func:a", EventType: events.TypeNodeAdded},
		{EventID: "e2", NodeID: "func:b", EventType: events.TypeNodeRemoved},
	}}
	merged := Merge(a, b, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	if merged.CommitHash != "c1" {
		t.Errorf("CommitHash = %q", merged.CommitHash)
	}
	if len(merged.SemanticEvents) != 2 {
		t.Fatalf("len(SemanticEvents) = %d, want 2 (deduplicated by event_id)", len(merged.SemanticEvents))
	}
}

func TestMergeFallsBackToBsCommitHash(t *testing.T) {
	a := Payload{SemanticEvents: nil}
	b := Payload{CommitHash: "c2", SemanticEvents: []events.Event{{EventID: "e1"}}}
	merged := Merge(a, b, time.Now())
	if merged.CommitHash != "c2" {
		t.Errorf("CommitHash = %q, want c2 from b when a has none", merged.CommitHash)
	}
}
