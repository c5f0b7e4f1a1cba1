package store

import (
	"fmt"
	"strings"

	"github.com/svcs-project/svcs/internal/events"
)

// OrderField is a column query_events may sort by (spec §4.7 "query_events").
type OrderField string

const (
	OrderByTimestamp  OrderField = "timestamp"
	OrderByConfidence OrderField = "confidence"
	OrderByEventType  OrderField = "event_type"
	OrderByAuthor     OrderField = "author"
)

// Filters narrows query_events (spec §4.7). Zero-value fields are ignored.
type Filters struct {
	Authors         []string
	EventTypes      []events.Type
	Layers          []events.Layer
	LocationPattern string // SQL LIKE pattern, e.g. "internal/%"
	MinConfidence   *float64
	MaxConfidence   *float64
	SinceTimestamp  *int64
	UntilTimestamp  *int64
	NodeID          string
	Branch          string

	OrderBy   OrderField
	OrderDesc bool
	Limit     int
	Offset    int
}

// build renders f into a WHERE clause (without the "WHERE" keyword) plus its
// positional arguments, and a trailing ORDER BY / LIMIT / OFFSET clause.
func (f Filters) build() (where string, args []interface{}, tail string) {
	var clauses []string

	if len(f.Authors) > 0 {
		clauses = append(clauses, "author IN ("+placeholders(len(f.Authors))+")")
		for _, a := range f.Authors {
			args = append(args, a)
		}
	}
	if len(f.EventTypes) > 0 {
		clauses = append(clauses, "event_type IN ("+placeholders(len(f.EventTypes))+")")
		for _, t := range f.EventTypes {
			args = append(args, string(t))
		}
	}
	if len(f.Layers) > 0 {
		clauses = append(clauses, "layer IN ("+placeholders(len(f.Layers))+")")
		for _, l := range f.Layers {
			args = append(args, string(l))
		}
	}
	if f.LocationPattern != "" {
		clauses = append(clauses, "location LIKE ?")
		args = append(args, f.LocationPattern)
	}
	if f.MinConfidence != nil {
		clauses = append(clauses, "confidence >= ?")
		args = append(args, *f.MinConfidence)
	}
	if f.MaxConfidence != nil {
		clauses = append(clauses, "confidence <= ?")
		args = append(args, *f.MaxConfidence)
	}
	if f.SinceTimestamp != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *f.SinceTimestamp)
	}
	if f.UntilTimestamp != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, *f.UntilTimestamp)
	}
	if f.NodeID != "" {
		clauses = append(clauses, "node_id = ?")
		args = append(args, f.NodeID)
	}
	if f.Branch != "" {
		clauses = append(clauses, "branch = ?")
		args = append(args, f.Branch)
	}

	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	orderBy := f.OrderBy
	if orderBy == "" {
		orderBy = OrderByTimestamp
	}
	dir := "ASC"
	if f.OrderDesc {
		dir = "DESC"
	}
	tail = fmt.Sprintf(" ORDER BY %s %s, event_type ASC, event_id ASC", sqlColumn(orderBy), dir)
	if f.Limit > 0 {
		tail += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			tail += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	}
	return where, args, tail
}

// sqlColumn guards against injecting an arbitrary OrderField into the SQL
// text; only the four named fields are accepted.
func sqlColumn(f OrderField) string {
	switch f {
	case OrderByTimestamp, OrderByConfidence, OrderByEventType, OrderByAuthor:
		return string(f)
	default:
		return string(OrderByTimestamp)
	}
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ", ")
}

// QueryEvents returns every semantic_events row matching f, ordered per f.
func (s *Store) QueryEvents(f Filters) ([]events.Event, error) {
	where, args, tail := f.build()
	query := "SELECT " + eventColumns + " FROM semantic_events"
	if where != "" {
		query += " WHERE " + where
	}
	query += tail

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query_events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NodeEvolution returns every event recorded against nodeID across history,
// ordered oldest-first regardless of f.OrderBy (spec §4.7 "node_evolution":
// "the full history of a node across commits"), with any other filters in f
// still applied.
func (s *Store) NodeEvolution(nodeID string, f Filters) ([]events.Event, error) {
	f.NodeID = nodeID
	f.OrderBy = OrderByTimestamp
	f.OrderDesc = false
	return s.QueryEvents(f)
}
