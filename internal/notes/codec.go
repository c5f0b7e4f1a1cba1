// Package notes implements the notes codec and sync protocol (C8, spec
// §4.8): rendering a commit's semantic events as a canonical JSON payload
// attached to refs/notes/svcs-semantic, and reconciling that payload across
// clones without ever silently overwriting a peer's events.
package notes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/svcs-project/svcs/internal/events"
)

// SchemaVersion is the payload's schema_version field.
const SchemaVersion = 1

// Payload is one note's structured document (spec §4.8 "Note payload
// format"): every SemanticEvent field except repository_id, which is
// context-bound to the reading repository rather than the commit.
type Payload struct {
	SchemaVersion  int             `json:"schema_version"`
	CommitHash     string          `json:"commit_hash"`
	CreatedAt      string          `json:"created_at"`
	SemanticEvents []events.Event  `json:"semantic_events"`
}

// Encode renders evs for commitHash into the canonical UTF-8, sorted-key,
// line-wrapped JSON payload (spec §4.8: "canonical encoding is UTF-8 with
// sorted object keys for determinism"). createdAt should be the current
// instant in UTC; callers supply it so encoding stays deterministic given
// fixed inputs.
func Encode(commitHash string, evs []events.Event, createdAt time.Time) (string, error) {
	sorted := sortedEvents(evs)
	payload := Payload{
		SchemaVersion:  SchemaVersion,
		CommitHash:     commitHash,
		CreatedAt:      createdAt.UTC().Format(time.RFC3339),
		SemanticEvents: sorted,
	}

	// encoding/json emits struct fields in declaration order but map keys in
	// sorted order, so the payload is round-tripped through a generic value
	// to get sorted object keys at every level.
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode notes payload for %s: %w", commitHash, err)
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("encode notes payload for %s: %w", commitHash, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return "", fmt.Errorf("encode notes payload for %s: %w", commitHash, err)
	}
	return buf.String(), nil
}

// Decode parses a note payload previously produced by Encode (or a peer
// SVCS's equivalent encoder). An incoming event with a missing or empty
// event_id (a malformed or foreign-tool-authored note) is assigned a fresh
// UUID rather than rejected outright, so one bad id doesn't cost the whole
// commit's event set; P2/P3 equality-by-event_id still holds for every event
// that arrived with one.
func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("decode notes payload: %w", err)
	}
	for i := range p.SemanticEvents {
		if p.SemanticEvents[i].EventID == "" {
			p.SemanticEvents[i].EventID = uuid.NewString()
		}
	}
	return p, nil
}

// sortedEvents returns evs ordered by (node_id, event_type, event_id), the
// canonical order spec §6.1 requires for a note's event list.
func sortedEvents(evs []events.Event) []events.Event {
	out := make([]events.Event, len(evs))
	copy(out, evs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		if out[i].EventType != out[j].EventType {
			return out[i].EventType < out[j].EventType
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// Merge reconciles two payloads for the same commit into the union of their
// events, de-duplicated by event_id (spec §4.8 "Fetch/merge protocol": "take
// the union of their semantic_events, de-duplicated by event_id"). createdAt
// becomes the merged payload's timestamp.
func Merge(a, b Payload, createdAt time.Time) Payload {
	byID := make(map[string]events.Event)
	for _, e := range a.SemanticEvents {
		byID[e.EventID] = e
	}
	for _, e := range b.SemanticEvents {
		if _, exists := byID[e.EventID]; !exists {
			byID[e.EventID] = e
		}
	}
	merged := make([]events.Event, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, e)
	}
	commitHash := a.CommitHash
	if commitHash == "" {
		commitHash = b.CommitHash
	}
	return Payload{
		SchemaVersion:  SchemaVersion,
		CommitHash:     commitHash,
		CreatedAt:      createdAt.UTC().Format(time.RFC3339),
		SemanticEvents: sortedEvents(merged),
	}
}
