package store

import (
	"fmt"

	"github.com/svcs-project/svcs/internal/events"
)

// BranchComparisonKey groups events for compare_branches (spec §4.7
// "compare_branches(a, b)": "grouped by (node_id, event_type)").
type BranchComparisonKey struct {
	NodeID    string
	EventType events.Type
}

// BranchComparison is the result of comparing two branches' event history.
type BranchComparison struct {
	OnlyInA       map[BranchComparisonKey][]events.Event
	OnlyInB       map[BranchComparisonKey][]events.Event
	CommonWithDiff map[BranchComparisonKey]BranchDiffPair
}

// BranchDiffPair holds both branches' events for a key present in both, when
// their details differ.
type BranchDiffPair struct {
	A []events.Event
	B []events.Event
}

// CompareBranches buckets every (node_id, event_type) key into "only on a",
// "only on b", or "present on both with different details" (spec §4.7).
// Keys present on both branches with identical detail sets are omitted
// entirely, since they represent no meaningful divergence.
func (s *Store) CompareBranches(a, b string) (BranchComparison, error) {
	eventsA, err := s.QueryEvents(Filters{Branch: a})
	if err != nil {
		return BranchComparison{}, fmt.Errorf("query branch %s events: %w", a, err)
	}
	eventsB, err := s.QueryEvents(Filters{Branch: b})
	if err != nil {
		return BranchComparison{}, fmt.Errorf("query branch %s events: %w", b, err)
	}

	groupedA := groupByNodeAndType(eventsA)
	groupedB := groupByNodeAndType(eventsB)

	result := BranchComparison{
		OnlyInA:        make(map[BranchComparisonKey][]events.Event),
		OnlyInB:        make(map[BranchComparisonKey][]events.Event),
		CommonWithDiff: make(map[BranchComparisonKey]BranchDiffPair),
	}

	for key, aEvents := range groupedA {
		bEvents, ok := groupedB[key]
		if !ok {
			result.OnlyInA[key] = aEvents
			continue
		}
		if !sameDetailSet(aEvents, bEvents) {
			result.CommonWithDiff[key] = BranchDiffPair{A: aEvents, B: bEvents}
		}
	}
	for key, bEvents := range groupedB {
		if _, ok := groupedA[key]; !ok {
			result.OnlyInB[key] = bEvents
		}
	}
	return result, nil
}

func groupByNodeAndType(evs []events.Event) map[BranchComparisonKey][]events.Event {
	out := make(map[BranchComparisonKey][]events.Event)
	for _, e := range evs {
		key := BranchComparisonKey{NodeID: e.NodeID, EventType: e.EventType}
		out[key] = append(out[key], e)
	}
	return out
}

func sameDetailSet(a, b []events.Event) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, e := range a {
		counts[e.Details]++
	}
	for _, e := range b {
		counts[e.Details]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}
