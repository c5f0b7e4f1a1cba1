package store

import "fmt"

// PruneOrphans deletes every commit (and, via ON DELETE CASCADE, every event
// attached to it) whose hash is not present in reachable, then drops any
// branch whose head no longer resolves (spec §4.7 "prune_orphans", P4: "no
// semantic event survives for a commit unreachable from any branch/tag").
// reachable is produced by walking the repository's ref graph
// (gitrepo.ReachableCommits) — the store has no notion of git history itself.
func (s *Store) PruneOrphans(reachable map[string]struct{}) (prunedCommits, prunedEvents int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin prune transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT hash FROM commits")
	if err != nil {
		return 0, 0, fmt.Errorf("list commits: %w", err)
	}
	var orphans []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan commit hash: %w", err)
		}
		if _, ok := reachable[hash]; !ok {
			orphans = append(orphans, hash)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate commits: %w", err)
	}

	for _, hash := range orphans {
		var eventCount int
		if err := tx.QueryRow("SELECT COUNT(*) FROM semantic_events WHERE commit_hash = ?", hash).Scan(&eventCount); err != nil {
			return 0, 0, fmt.Errorf("count events for orphan commit %s: %w", hash, err)
		}
		if _, err := tx.Exec("DELETE FROM commits WHERE hash = ?", hash); err != nil {
			return 0, 0, fmt.Errorf("delete orphan commit %s: %w", hash, err)
		}
		prunedCommits++
		prunedEvents += eventCount
	}

	if _, err := tx.Exec(
		"DELETE FROM branches WHERE last_commit_hash IS NOT NULL AND last_commit_hash NOT IN (SELECT hash FROM commits)",
	); err != nil {
		return 0, 0, fmt.Errorf("prune stale branch heads: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit prune transaction: %w", err)
	}
	return prunedCommits, prunedEvents, nil
}
