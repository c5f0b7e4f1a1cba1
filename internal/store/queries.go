package store

import (
	"database/sql"
	"fmt"

	"github.com/svcs-project/svcs/internal/events"
)

// CommitRow is the row recorded in the commits table for one analyzed commit.
type CommitRow struct {
	Hash      string
	Author    string
	Branch    string
	Message   string
	Timestamp int64
}

// EnsureCommit idempotently records c and advances its branch's head pointer
// (spec §4.7 "ensure_commit": safe to call more than once for the same hash).
func (s *Store) EnsureCommit(c CommitRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin ensure_commit transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO commits (hash, author, branch, message, timestamp)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		c.Hash, c.Author, c.Branch, c.Message, c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert commit %s: %w", c.Hash, err)
	}

	_, err = tx.Exec(
		`INSERT INTO branches (name, last_commit_hash, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(name) DO UPDATE SET last_commit_hash = excluded.last_commit_hash, updated_at = excluded.updated_at`,
		c.Branch, c.Hash,
	)
	if err != nil {
		return fmt.Errorf("update branch head %s: %w", c.Branch, err)
	}
	return tx.Commit()
}

// InsertEvents atomically inserts every event for a single commit (spec
// §4.7 "insert_events": all-or-nothing per commit, P6). Re-running for a
// commit whose events are already stored is a no-op per event (event_id is
// deterministic, so ON CONFLICT(event_id) DO NOTHING makes the whole call
// idempotent, P3).
func (s *Store) InsertEvents(evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin insert_events transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO semantic_events (
			event_id, commit_hash, branch, author, timestamp, event_type,
			node_id, location, details, layer, layer_description,
			confidence, reasoning, impact, merge_parent_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert_events statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range evs {
		var confidence sql.NullFloat64
		if e.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
		}
		var reasoning sql.NullString
		if e.Reasoning != nil {
			reasoning = sql.NullString{String: *e.Reasoning, Valid: true}
		}
		var impact sql.NullString
		if e.Impact != nil {
			impact = sql.NullString{String: string(*e.Impact), Valid: true}
		}
		var mergeParentIndex sql.NullInt64
		if e.MergeParentIndex != nil {
			mergeParentIndex = sql.NullInt64{Int64: int64(*e.MergeParentIndex), Valid: true}
		}

		_, err := stmt.Exec(
			e.EventID, e.CommitHash, e.Branch, e.Author, e.Timestamp, string(e.EventType),
			e.NodeID, e.Location, e.Details, string(e.Layer), e.LayerDescription,
			confidence, reasoning, impact, mergeParentIndex,
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.EventID, err)
		}
	}
	return tx.Commit()
}

// UpdateBranchHead records that branch's working tree is now at commitHash,
// without requiring a corresponding commits row — used to record a plain
// branch switch (spec §4.9 post-checkout: "record branch switch in branches
// table") where no new commit was necessarily analyzed.
func (s *Store) UpdateBranchHead(branch, commitHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(
		`INSERT INTO branches (name, last_commit_hash, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(name) DO UPDATE SET last_commit_hash = excluded.last_commit_hash, updated_at = excluded.updated_at`,
		branch, commitHash,
	)
	if err != nil {
		return fmt.Errorf("update branch head %s: %w", branch, err)
	}
	return nil
}

func scanEvent(row rowScanner) (events.Event, error) {
	var e events.Event
	var eventType, layer string
	var confidence sql.NullFloat64
	var reasoning, impact sql.NullString
	var mergeParentIndex sql.NullInt64

	err := row.Scan(
		&e.EventID, &e.CommitHash, &e.Branch, &e.Author, &e.Timestamp, &eventType,
		&e.NodeID, &e.Location, &e.Details, &layer, &e.LayerDescription,
		&confidence, &reasoning, &impact, &mergeParentIndex,
	)
	if err != nil {
		return events.Event{}, err
	}
	e.EventType = events.Type(eventType)
	e.Layer = events.Layer(layer)
	if confidence.Valid {
		e.Confidence = &confidence.Float64
	}
	if reasoning.Valid {
		e.Reasoning = &reasoning.String
	}
	if impact.Valid {
		impactVal := events.Impact(impact.String)
		e.Impact = &impactVal
	}
	if mergeParentIndex.Valid {
		idx := int(mergeParentIndex.Int64)
		e.MergeParentIndex = &idx
	}
	return e, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const eventColumns = `event_id, commit_hash, branch, author, timestamp, event_type,
	node_id, location, details, layer, layer_description,
	confidence, reasoning, impact, merge_parent_index`
