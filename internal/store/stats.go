package store

import "fmt"

// GroupBy selects the grouping dimension for Stats (spec §4.7 "stats").
type GroupBy string

const (
	GroupByEventType GroupBy = "event_type"
	GroupByLayer     GroupBy = "layer"
	GroupByAuthor    GroupBy = "author"
	GroupByLocation  GroupBy = "location"
)

func groupColumn(g GroupBy) (string, error) {
	switch g {
	case GroupByEventType, GroupByLayer, GroupByAuthor, GroupByLocation:
		return string(g), nil
	default:
		return "", fmt.Errorf("unsupported group_by %q", g)
	}
}

// StatBucket is one row of a Stats result: how many events fell under key.
type StatBucket struct {
	Key   string
	Count int
}

// Stats aggregates semantic_events counts grouped by groupBy, restricted to
// the time window [since, until) when those are non-nil (spec §4.7
// "stats(group_by, time_window)").
func (s *Store) Stats(groupBy GroupBy, since, until *int64) ([]StatBucket, error) {
	col, err := groupColumn(groupBy)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM semantic_events", col)
	var clauses []string
	var args []interface{}
	if since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *since)
	}
	if until != nil {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, *until)
	}
	if len(clauses) > 0 {
		query += " WHERE "
		for i, c := range clauses {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}
	query += fmt.Sprintf(" GROUP BY %s ORDER BY COUNT(*) DESC, %s ASC", col, col)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	var out []StatBucket
	for rows.Next() {
		var b StatBucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("scan stat bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
